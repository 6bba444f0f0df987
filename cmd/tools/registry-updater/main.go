// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"workflow-content/internal/models"
	"workflow-content/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd} {
		fs.StringVar(&registryPath, "path", "configs/step-registry.json", "Path to the registry overlay file")
	}

	// Add command flags
	stepType := addCmd.String("type", "", "Step type (e.g., email)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Email)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (e.g., channel)")
	controlSchemaFile := addCmd.String("controlSchema", "", "Path to a JSON file holding the control schema")

	// Update command flags
	typeUpdate := updateCmd.String("type", "", "Step type to update")
	field := updateCmd.String("field", "", "Field to update (displayName, description, category, controlSchema, uiSchema, outputSchema)")
	value := updateCmd.String("value", "", "New value, or a JSON file path for schema fields")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *stepType == "" || *displayName == "" || *category == "" {
			fmt.Println("Error: type, displayName, and category are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		def := registry.StepDefinition{
			Type:        models.StepType(*stepType),
			DisplayName: *displayName,
			Description: *description,
			Category:    *category,
			Tags:        []string{},
		}
		if *controlSchemaFile != "" {
			s, err := readSchema(*controlSchemaFile)
			if err != nil {
				fmt.Printf("Error reading control schema: %v\n", err)
				os.Exit(1)
			}
			def.ControlSchema = s
		}
		if err := addStep(&def); err != nil {
			fmt.Printf("Error adding step: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added step: %s\n", *stepType)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *typeUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: type, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateStep(*typeUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating step: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated step %s, field %s\n", *typeUpdate, *field)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func loadOverlay(path string) (*registry.StepRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg registry.StepRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &reg, nil
}

func addStep(def *registry.StepDefinition) error {
	reg, err := loadOverlay(registryPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.StepRegistry{Version: "1.0.0", Steps: []registry.StepDefinition{}}
	}

	for _, existing := range reg.Steps {
		if existing.Type == def.Type {
			return fmt.Errorf("step %s already exists", def.Type)
		}
	}

	reg.Steps = append(reg.Steps, *def)
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, registryPath)
}

func updateStep(stepType, field, value string) error {
	reg, err := loadOverlay(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	idx := -1
	for i := range reg.Steps {
		if string(reg.Steps[i].Type) == stepType {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("step %s not found", stepType)
	}

	def := &reg.Steps[idx]
	switch field {
	case "displayName":
		def.DisplayName = value
	case "description":
		def.Description = value
	case "category":
		def.Category = value
	case "controlSchema", "uiSchema", "outputSchema":
		s, err := readSchema(value)
		if err != nil {
			return err
		}
		switch field {
		case "controlSchema":
			def.ControlSchema = s
		case "uiSchema":
			def.UISchema = s
		default:
			def.OutputSchema = s
		}
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, registryPath)
}

// validateRegistry checks that every schema in the overlay compiles and that
// the overlay merges over the built-in steps.
func validateRegistry() error {
	reg, err := loadOverlay(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if len(reg.Steps) == 0 {
		return fmt.Errorf("registry contains no steps")
	}

	seen := make(map[models.StepType]bool)
	for _, def := range reg.Steps {
		if def.Type == "" {
			return fmt.Errorf("step missing required field: type")
		}
		if seen[def.Type] {
			return fmt.Errorf("duplicate step type: %s", def.Type)
		}
		seen[def.Type] = true

		for name, s := range map[string]map[string]interface{}{
			"controlSchema": def.ControlSchema,
			"outputSchema":  def.OutputSchema,
		} {
			if s == nil {
				continue
			}
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s)); err != nil {
				return fmt.Errorf("step %s has an invalid %s: %w", def.Type, name, err)
			}
		}
	}

	merged, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return err
	}
	fmt.Printf("Registry validation passed. Found %d steps, version %s.\n", len(reg.Steps), merged.Version())
	return nil
}

func readSchema(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s map[string]interface{}
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", path, err)
	}
	return s, nil
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.StepRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a step definition to the overlay
  update   Update a field of an overlay step
  validate Check that the overlay schemas compile
  help     Show this help message

Examples:
  registry-updater add -type webhook -displayName "Webhook" -category action -controlSchema webhook.json
  registry-updater update -type email -field controlSchema -value email-controls.json
  registry-updater validate -path configs/step-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}

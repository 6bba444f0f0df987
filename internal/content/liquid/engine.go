// Package liquid builds the Liquid engine shared by the content pipeline.
//
// The engine is constructed once with the custom filters registered and is then
// passed explicitly to the components that need it. Nothing here is global.
package liquid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/osteele/liquid"
)

var simplePathPattern = regexp.MustCompile(`^[A-Za-z_][\w-]*(\.[\w-]+|\[\d+\])*$`)

// Engine wraps a configured Liquid engine. It is safe for concurrent use once built.
type Engine struct {
	engine *liquid.Engine
}

// NewEngine returns an engine with the notification filters registered.
func NewEngine() *Engine {
	e := liquid.NewEngine()
	e.RegisterFilter("toSentence", toSentence)
	e.RegisterFilter("pluralize", pluralize)
	e.RegisterFilter("digest", digest)
	return &Engine{engine: e}
}

// ValidateOutput checks that expression parses as the body of a {{ }} output.
func (e *Engine) ValidateOutput(expression string) error {
	if _, err := e.engine.ParseString("{{" + expression + "}}"); err != nil {
		return err
	}
	return nil
}

// Render parses and renders source against data.
func (e *Engine) Render(source string, data map[string]interface{}) (string, error) {
	out, err := e.engine.ParseAndRenderString(source, data)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Truthy evaluates a condition expression against data. Bare variable paths follow
// JavaScript truthiness so that empty strings and zero hide conditional content.
func (e *Engine) Truthy(expression string, data map[string]interface{}) (bool, error) {
	expression = strings.TrimSpace(expression)
	expression = strings.TrimSuffix(strings.TrimPrefix(expression, "{{"), "}}")
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false, nil
	}

	out, err := e.Render("{% if "+expression+" %}1{% endif %}", data)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", expression, err)
	}
	if out != "1" {
		return false, nil
	}

	if simplePathPattern.MatchString(expression) {
		val, _ := e.Render("{{ "+expression+" }}", data)
		switch strings.TrimSpace(val) {
		case "", "0", "false":
			return false, nil
		}
	}
	return true, nil
}

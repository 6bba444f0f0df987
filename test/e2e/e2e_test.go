// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-content/internal/common/config"
	"workflow-content/internal/common/database"
	"workflow-content/internal/common/logger"
	"workflow-content/internal/content/controls"
	"workflow-content/internal/content/liquid"
	"workflow-content/internal/content/pipeline"
	"workflow-content/internal/content/placeholders"
	"workflow-content/internal/content/schema"
	"workflow-content/internal/content/variables"
	"workflow-content/internal/models"
	"workflow-content/internal/store"
	validatestepcontent "workflow-content/internal/workers/content/validate-step-content"
	"workflow-content/pkg/registry"
)

var zeebeClient zbc.Client

func TestMain(m *testing.M) {
	if os.Getenv("E2E") == "" {
		fmt.Println("E2E not set, skipping end-to-end tests")
		os.Exit(0)
	}

	var err error
	zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         getEnv("ZEEBE_ADDRESS", "localhost:26500"),
		UsePlaintextConnection: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect to Zeebe: %v", err))
	}

	code := m.Run()

	zeebeClient.Close()
	os.Exit(code)
}

func TestFullE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assertAllServicesConnectivity(t, cfg)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer pg.Close()

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	defer rdb.Close()

	createDatabaseTables(t, pg.DB)
	seedTestData(t, pg.DB)

	log := logger.NewTestLogger(t)
	reg, err := registry.Default()
	require.NoError(t, err)

	orgs := store.NewOrganizationStore(pg.DB, rdb.Client, time.Minute, log)
	defer orgs.Invalidate(context.Background(), "e2e-org")

	collector := placeholders.NewCollector(variables.NewParser(liquid.NewEngine()))
	orchestrator := pipeline.NewOrchestrator(collector, controls.NewTierChecker(orgs, cfg.Tiers.TierLimits()), log)
	handler := validatestepcontent.NewHandler(
		&validatestepcontent.Config{Timeout: 30 * time.Second},
		store.NewWorkflowStore(pg.DB), reg, schema.NewResolver(reg, collector), orchestrator, log,
	)

	t.Run("email step resolves against stored workflow", func(t *testing.T) {
		out, err := handler.Execute(context.Background(), &validatestepcontent.Input{
			OrganizationID: "e2e-org",
			WorkflowID:     "e2e-welcome",
			StepID:         "email",
		})
		require.NoError(t, err)
		assert.False(t, out.HasIssues, "unexpected issues: %v", out.Issues)
		p := out.FinalPayload["payload"].(map[string]interface{})
		assert.Equal(t, "{{payload.orderId}}", p["orderId"])
	})

	t.Run("delay beyond the free tier is flagged", func(t *testing.T) {
		out, err := handler.Execute(context.Background(), &validatestepcontent.Input{
			OrganizationID: "e2e-org",
			WorkflowID:     "e2e-welcome",
			StepID:         "wait",
		})
		require.NoError(t, err)
		require.True(t, out.HasIssues)
		require.NotEmpty(t, out.Issues["amount"])
		assert.Equal(t, models.IssueTierLimitExceeded, out.Issues["amount"][0].IssueType)
	})
}

func assertAllServicesConnectivity(t *testing.T, cfg *config.Config) {
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	assert.NoError(t, pg.Ping(context.Background()), "PostgreSQL ping failed")
	pg.Close()

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "Redis client creation failed")
	assert.NoError(t, rdb.Ping(context.Background()), "Redis ping failed")
	rdb.Close()

	_, err = zeebeClient.NewTopologyCommand().Send(context.Background())
	assert.NoError(t, err, "Zeebe topology request failed")
}

func createDatabaseTables(t *testing.T, db *sql.DB) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			api_service_level VARCHAR(50)
		)`,
		`CREATE TABLE IF NOT EXISTS workflows (
			id VARCHAR(255) PRIMARY KEY,
			workflow_id VARCHAR(255) NOT NULL,
			organization_id VARCHAR(255) NOT NULL,
			name VARCHAR(255),
			origin VARCHAR(50),
			payload_schema JSONB,
			steps JSONB
		)`,
	}
	for _, q := range queries {
		_, err := db.Exec(q)
		require.NoError(t, err)
	}
}

func seedTestData(t *testing.T, db *sql.DB) {
	steps, err := json.Marshal([]models.Step{
		{ID: "e2e-s1", StepID: "email", Type: models.StepTypeEmail, ControlValues: map[string]interface{}{
			"subject":                   "Hi {{subscriber.firstName}}",
			"body":                      "Order {{payload.orderId}}",
			"editorType":                "block",
			"disableOutputSanitization": false,
		}},
		{ID: "e2e-s2", StepID: "wait", Type: models.StepTypeDelay, ControlValues: map[string]interface{}{
			"amount": 45,
			"unit":   "days",
		}},
	})
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO organizations (id, name, api_service_level) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET api_service_level = EXCLUDED.api_service_level`,
		"e2e-org", "E2E Org", string(models.ServiceLevelFree))
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO workflows (id, workflow_id, organization_id, name, origin, steps)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET steps = EXCLUDED.steps`,
		"e2e-wf", "e2e-welcome", "e2e-org", "Welcome", string(models.OriginDashboard), steps)
	require.NoError(t, err)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

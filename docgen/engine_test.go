package docgen

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjayganvkar/adfdoc/events"
	"github.com/sanjayganvkar/adfdoc/rules"
	"github.com/sanjayganvkar/adfdoc/storage"
	"github.com/sanjayganvkar/adfdoc/types"
)

// MockGenerator is a simple ID generator for testing.
type MockGenerator struct {
	id uint64
}

func (g *MockGenerator) NextID() (uint64, error) {
	g.id++
	return g.id, nil
}

const testTemplateJSON = `{
	"parameters": {
		"factoryName": {"type": "string", "defaultValue": "etl-factory"}
	},
	"resources": [
		{
			"name": "[concat(parameters('factoryName'), '/nightly_load')]",
			"type": "Microsoft.DataFactory/factories/pipelines",
			"properties": {
				"description": "nightly ingestion",
				"parameters": {"window": {"type": "string"}},
				"activities": [
					{"name": "Notify", "type": "WebActivity",
						"dependsOn": [{"activity": "CopyRows", "dependencyConditions": ["Succeeded"]}]},
					{"name": "LookupConfig", "type": "Lookup"},
					{"name": "CopyRows", "type": "Copy",
						"dependsOn": [{"activity": "LookupConfig", "dependencyConditions": ["Succeeded"]}]}
				]
			}
		},
		{
			"name": "[concat(parameters('factoryName'), '/blob_store')]",
			"type": "Microsoft.DataFactory/factories/linkedServices",
			"properties": {"type": "AzureBlobStorage"}
		}
	]
}`

func newTestTemplate(t *testing.T, id uint64) types.Template {
	t.Helper()
	var tpl types.Template
	require.NoError(t, json.Unmarshal([]byte(testTemplateJSON), &tpl))
	tpl.ID = id
	return tpl
}

func newTestEngine(t *testing.T) *DocEngine {
	t.Helper()
	engine, err := NewDocEngine(&MockGenerator{}, storage.NewMemoryStorage(), rules.NewExprEvaluator())
	require.NoError(t, err)
	return engine
}

func TestNewDocEngineRequiresGenerator(t *testing.T) {
	_, err := NewDocEngine(nil, nil, nil)
	assert.Error(t, err)
}

func TestRegisterTemplateValidation(t *testing.T) {
	engine := newTestEngine(t)
	defer engine.Stop(context.Background())
	ctx := context.Background()

	err := engine.RegisterTemplate(ctx, types.Template{Resources: []types.Resource{{Name: "a", Type: "b"}}})
	assert.Error(t, err, "zero ID must be rejected")

	err = engine.RegisterTemplate(ctx, types.Template{ID: 1})
	assert.ErrorIs(t, err, ErrNoResources)

	err = engine.RegisterTemplate(ctx, types.Template{ID: 1, Resources: []types.Resource{{Name: "a"}}})
	assert.Error(t, err, "resource without type must be rejected")

	err = engine.RegisterTemplate(ctx, types.Template{ID: 1, Resources: []types.Resource{
		{Name: "a", Type: "t"}, {Name: "a", Type: "t"},
	}})
	assert.Error(t, err, "duplicate resource names must be rejected")
}

func TestGenerateReport(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	defer engine.Stop(ctx)

	require.NoError(t, engine.RegisterTemplate(ctx, newTestTemplate(t, 7)))

	rep, err := engine.GenerateReport(ctx, 7)
	require.NoError(t, err)
	assert.NotZero(t, rep.ID)
	assert.Equal(t, uint64(7), rep.TemplateID)
	assert.Equal(t, "etl-factory", rep.FactoryName)
	assert.NotZero(t, rep.GeneratedAt)

	// Only the pipeline resource produces a report; linked services do not.
	require.Len(t, rep.Pipelines, 1)
	pl := rep.Pipelines[0]
	assert.Equal(t, "nightly_load", pl.Name)
	assert.Equal(t, "nightly ingestion", pl.Description)
	assert.Equal(t, []string{"LookupConfig", "CopyRows", "Notify"}, sectionNames(pl.Activities))

	// The generated report is retrievable by ID.
	stored, err := engine.GetReport(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep, stored)
}

func TestGenerateReportTemplateNotFound(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	defer engine.Stop(ctx)

	_, err := engine.GenerateReport(ctx, 404)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestGenerateReportFilter(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	defer engine.Stop(ctx)

	require.NoError(t, engine.RegisterTemplate(ctx, newTestTemplate(t, 1)))
	engine.SetFilter(`Type != "WebActivity"`)

	rep, err := engine.GenerateReport(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rep.Pipelines, 1)
	assert.Equal(t, []string{"LookupConfig", "CopyRows"}, sectionNames(rep.Pipelines[0].Activities))
}

func TestGenerateReportPublishesDependencyGap(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	defer engine.Stop(ctx)

	tpl := types.Template{
		ID: 2,
		Resources: []types.Resource{{
			Name: "broken_pipeline",
			Type: types.ResourceTypePipeline,
			Properties: json.RawMessage(`{"activities": [
				{"name": "orphan", "type": "Copy", "dependsOn": [{"activity": "ghost"}]}
			]}`),
		}},
	}
	require.NoError(t, engine.RegisterTemplate(ctx, tpl))

	gaps := make(chan events.Event, 1)
	engine.SubscribeEvent(EventDependencyGap, events.EventHandlerFunc(func(ctx context.Context, event events.Event) error {
		gaps <- event
		return nil
	}))

	rep, err := engine.GenerateReport(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rep.Pipelines, 1)
	assert.Empty(t, rep.Pipelines[0].Activities.Sections, "the blocked activity is silently dropped")

	select {
	case event := <-gaps:
		assert.Equal(t, uint64(2), event.TemplateID)
		assert.Equal(t, "broken_pipeline", event.Scope)
		assert.Equal(t, "orphan", event.Data["activity"])
		assert.Equal(t, "ghost", event.Data["upstream"])
	case <-time.After(2 * time.Second):
		t.Fatal("expected a dependency_gap event")
	}
}

func TestGetTemplateCachesAfterStorageHit(t *testing.T) {
	store := storage.NewMemoryStorage()
	engine, err := NewDocEngine(&MockGenerator{}, store, nil)
	require.NoError(t, err)
	ctx := context.Background()
	defer engine.Stop(ctx)

	tpl := newTestTemplate(t, 3)
	require.NoError(t, store.SaveTemplate(ctx, tpl))

	got, err := engine.GetTemplate(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, got.ID)

	engine.mu.RLock()
	_, cached := engine.templates[3]
	engine.mu.RUnlock()
	assert.True(t, cached)
}

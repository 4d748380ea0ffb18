package docgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/songzhibin97/gkit/generator"

	"github.com/sanjayganvkar/adfdoc/events"
	"github.com/sanjayganvkar/adfdoc/rules"
	"github.com/sanjayganvkar/adfdoc/storage"
	"github.com/sanjayganvkar/adfdoc/types"
)

// Standard error definitions
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrReportNotFound   = errors.New("report not found")
	ErrNoResources      = errors.New("template has no resources")
)

// Event types published during report generation.
const (
	EventReportGenerated = "report_generated"
	EventDependencyGap   = "dependency_gap"
	EventCycleDropped    = "cycle_dropped"
	EventErrorOccurred   = "error_occurred"
)

// DocEngine registers ARM templates and generates dependency-ordered
// documentation reports from them. Templates and reports are cached in memory
// and persisted through the configured storage.
type DocEngine struct {
	templates map[uint64]types.Template
	reports   map[uint64]types.FactoryReport
	evaluator rules.Evaluator
	filter    string
	storage   storage.Storage
	eventBus  *events.EventBus
	mu        sync.RWMutex
	generate  generator.Generator
}

// NewDocEngine creates a DocEngine with the given ID generator and storage.
// A nil store falls back to in-memory storage; the evaluator may be nil when
// no activity filter is used.
func NewDocEngine(generate generator.Generator, store storage.Storage, evaluator rules.Evaluator) (*DocEngine, error) {
	if generate == nil {
		return nil, errors.New("generator is required")
	}

	if store == nil {
		store = storage.NewMemoryStorage()
	}

	return &DocEngine{
		templates: make(map[uint64]types.Template),
		reports:   make(map[uint64]types.FactoryReport),
		evaluator: evaluator,
		storage:   store,
		eventBus:  events.NewEventBus(),
		generate:  generate,
	}, nil
}

// SubscribeEvent subscribes an event handler to a specific event type.
func (e *DocEngine) SubscribeEvent(eventType string, handler events.EventHandler) {
	e.eventBus.Subscribe(eventType, handler)
}

// SetEvaluator sets a custom evaluator for filter expressions.
func (e *DocEngine) SetEvaluator(evaluator rules.Evaluator) {
	if evaluator == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluator = evaluator
}

// SetFilter sets the boolean expression that selects which activities get
// report sections. An empty expression documents every activity.
func (e *DocEngine) SetFilter(expression string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = expression
}

// GenerateID generates a unique ID using the configured generator.
func (e *DocEngine) GenerateID() (uint64, error) {
	return e.generate.NextID()
}

// RegisterTemplate validates and persists a parsed ARM template.
func (e *DocEngine) RegisterTemplate(ctx context.Context, tpl types.Template) error {
	if tpl.ID == 0 {
		return errors.New("template ID cannot be zero")
	}
	if len(tpl.Resources) == 0 {
		return ErrNoResources
	}

	seen := make(map[string]bool)
	for _, res := range tpl.Resources {
		if res.Name == "" || res.Type == "" {
			return fmt.Errorf("resource of template %d is missing name or type", tpl.ID)
		}
		if seen[res.Name] {
			return fmt.Errorf("duplicate resource name %q in template %d", res.Name, tpl.ID)
		}
		seen[res.Name] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.storage.SaveTemplate(ctx, tpl)
}

// getTemplate retrieves a template by ID, checking cache first then storage.
func (e *DocEngine) getTemplate(ctx context.Context, templateID uint64) (types.Template, error) {
	e.mu.RLock()
	tpl, ok := e.templates[templateID]
	e.mu.RUnlock()

	if ok {
		return tpl, nil
	}

	tpl, err := e.storage.GetTemplate(ctx, templateID)
	if err != nil {
		return types.Template{}, fmt.Errorf("failed to get template: %w", err)
	}

	e.mu.Lock()
	e.templates[tpl.ID] = tpl
	e.mu.Unlock()

	return tpl, nil
}

// saveReport saves a report to both cache and storage.
func (e *DocEngine) saveReport(ctx context.Context, rep types.FactoryReport) error {
	if err := e.storage.SaveReport(ctx, rep); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	e.mu.Lock()
	e.reports[rep.ID] = rep
	e.mu.Unlock()

	return nil
}

// publishEvent publishes an event asynchronously to the event bus.
func (e *DocEngine) publishEvent(ctx context.Context, eventType string, templateID uint64, scope string, data map[string]interface{}) {
	go e.eventBus.Publish(ctx, events.Event{
		Type:       eventType,
		TemplateID: templateID,
		Scope:      scope,
		Data:       data,
	})
}

// publishDiagnostics turns resolver findings into dependency_gap and
// cycle_dropped events.
func (e *DocEngine) publishDiagnostics(ctx context.Context, templateID uint64, diags []Diagnostics) {
	for _, d := range diags {
		for _, ref := range d.MissingRefs {
			e.publishEvent(ctx, EventDependencyGap, templateID, d.Scope, map[string]interface{}{
				"activity": ref.Activity,
				"upstream": ref.Upstream,
			})
		}
		if len(d.Dropped) > 0 {
			e.publishEvent(ctx, EventCycleDropped, templateID, d.Scope, map[string]interface{}{
				"dropped": d.Dropped,
			})
		}
	}
}

// GenerateReport renders every pipeline resource of the registered template
// into a dependency-ordered report, persists the result, and returns it.
// Resolution findings (missing upstream references, activities dropped from
// the order) surface as events, never as errors.
func (e *DocEngine) GenerateReport(ctx context.Context, templateID uint64) (*types.FactoryReport, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tpl, err := e.getTemplate(ctx, templateID)
	if err != nil {
		return nil, ErrTemplateNotFound
	}

	e.mu.RLock()
	renderer := Renderer{Evaluator: e.evaluator, Filter: e.filter}
	e.mu.RUnlock()

	rep := types.FactoryReport{
		TemplateID:  templateID,
		FactoryName: tpl.FactoryName(),
	}

	for _, res := range tpl.Resources {
		if res.Type != types.ResourceTypePipeline {
			continue
		}

		name := types.ExtractResourceName(res.Name)
		pl, err := res.Pipeline()
		if err != nil {
			e.publishEvent(ctx, EventErrorOccurred, templateID, name, map[string]interface{}{
				"error": err.Error(),
			})
			return nil, fmt.Errorf("failed to decode pipeline %q: %w", name, err)
		}

		activities, diags, err := renderer.Render(name, pl.Activities)
		if err != nil {
			e.publishEvent(ctx, EventErrorOccurred, templateID, name, map[string]interface{}{
				"error": err.Error(),
			})
			return nil, fmt.Errorf("failed to render pipeline %q: %w", name, err)
		}
		e.publishDiagnostics(ctx, templateID, diags)

		rep.Pipelines = append(rep.Pipelines, types.PipelineReport{
			Name:        name,
			Description: pl.Description,
			Parameters:  pl.Parameters,
			Variables:   pl.Variables,
			Activities:  activities,
		})
	}

	id, err := e.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}
	rep.ID = id
	rep.GeneratedAt = time.Now().UnixMilli()

	if err := e.saveReport(ctx, rep); err != nil {
		return nil, err
	}

	e.publishEvent(ctx, EventReportGenerated, templateID, "", map[string]interface{}{
		"report_id": rep.ID,
		"pipelines": len(rep.Pipelines),
	})

	return &rep, nil
}

// getReport retrieves a report by ID, checking cache first then storage.
func (e *DocEngine) getReport(ctx context.Context, reportID uint64) (types.FactoryReport, error) {
	e.mu.RLock()
	rep, ok := e.reports[reportID]
	e.mu.RUnlock()

	if ok {
		return rep, nil
	}

	rep, err := e.storage.GetReport(ctx, reportID)
	if err != nil {
		return types.FactoryReport{}, fmt.Errorf("failed to get report: %w", err)
	}

	e.mu.Lock()
	e.reports[rep.ID] = rep
	e.mu.Unlock()

	return rep, nil
}

// GetTemplate retrieves a registered template by ID.
func (e *DocEngine) GetTemplate(ctx context.Context, templateID uint64) (*types.Template, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		tpl, err := e.getTemplate(ctx, templateID)
		if err != nil {
			return nil, err
		}
		return &tpl, nil
	}
}

// GetReport retrieves a generated report by ID.
func (e *DocEngine) GetReport(ctx context.Context, reportID uint64) (*types.FactoryReport, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		rep, err := e.getReport(ctx, reportID)
		if err != nil {
			return nil, err
		}
		return &rep, nil
	}
}

// Stop gracefully stops the engine's event bus.
func (e *DocEngine) Stop(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		e.eventBus.Stop()
		return nil
	}
}

package docgen

import (
	"fmt"

	"github.com/sanjayganvkar/adfdoc/rules"
	"github.com/sanjayganvkar/adfdoc/types"
)

// Nested scope labels, matching the keys container activities expose.
const (
	LabelIfTrue  = "If True Activities"
	LabelIfFalse = "If False Activities"
	LabelBody    = "Activities"
	labelCase    = "Case: %s"
)

// Renderer turns activity scopes into reports. The zero value renders every
// activity; setting Evaluator and Filter restricts section emission to
// activities whose field environment satisfies the filter expression.
type Renderer struct {
	Evaluator rules.Evaluator
	Filter    string
}

// Render resolves one scope and emits a section per activity in resolved
// order. Container activities get their nested scopes resolved and rendered
// depth-first before the next sibling section is produced. The returned
// diagnostics cover this scope and every nested scope beneath it.
func (r Renderer) Render(scope string, activities []types.Activity) (types.Report, []Diagnostics, error) {
	var report types.Report
	var all []Diagnostics

	ordered, diags, err := Resolve(scope, activities)
	if err != nil {
		return report, nil, err
	}
	if !diags.Empty() {
		all = append(all, diags)
	}

	for _, a := range ordered {
		include, err := r.includes(a)
		if err != nil {
			return types.Report{}, nil, fmt.Errorf("filter %q on activity %q: %w", r.Filter, a.Name, err)
		}
		if !include {
			continue
		}

		section := types.Section{
			Name:           a.Name,
			Description:    a.Description,
			Type:           a.Type,
			DependsOn:      a.DependsOn,
			UserProperties: a.UserProperties,
		}
		if a.TypeProperties != nil {
			section.TypeProperties = types.ValueOf(a.TypeProperties)
		}

		scopes, nested, err := r.renderNested(scope, a)
		if err != nil {
			return types.Report{}, nil, err
		}
		section.Scopes = scopes
		all = append(all, nested...)

		report.Sections = append(report.Sections, section)
	}

	return report, all, nil
}

// renderNested produces the labelled child scopes of a container activity.
// Leaf activities yield nothing.
func (r Renderer) renderNested(scope string, a types.Activity) ([]types.NestedScope, []Diagnostics, error) {
	var scopes []types.NestedScope
	var all []Diagnostics

	child := func(label string, activities []types.Activity) error {
		if activities == nil {
			return nil
		}
		path := fmt.Sprintf("%s/%s/%s", scope, a.Name, label)
		nested, diags, err := r.Render(path, activities)
		if err != nil {
			return err
		}
		scopes = append(scopes, types.NestedScope{Label: label, Report: nested})
		all = append(all, diags...)
		return nil
	}

	switch a.Kind {
	case types.KindIfCondition:
		if err := child(LabelIfTrue, a.If.TrueActivities); err != nil {
			return nil, nil, err
		}
		if err := child(LabelIfFalse, a.If.FalseActivities); err != nil {
			return nil, nil, err
		}
	case types.KindForEach:
		if err := child(LabelBody, a.ForEach.Activities); err != nil {
			return nil, nil, err
		}
	case types.KindSwitch:
		if err := child(LabelBody, a.Switch.DefaultActivities); err != nil {
			return nil, nil, err
		}
		for _, c := range a.Switch.Cases {
			if err := child(fmt.Sprintf(labelCase, c.Value), c.Activities); err != nil {
				return nil, nil, err
			}
		}
	}

	return scopes, all, nil
}

// includes applies the filter expression, if any, to one activity.
func (r Renderer) includes(a types.Activity) (bool, error) {
	if r.Filter == "" || r.Evaluator == nil {
		return true, nil
	}
	return r.Evaluator.Evaluate(r.Filter, activityEnv(a))
}

// activityEnv is the field environment filter expressions evaluate against.
// Keys are capitalized so they cannot shadow expr builtins.
func activityEnv(a types.Activity) map[string]interface{} {
	return map[string]interface{}{
		"Name":            a.Name,
		"Type":            a.Type,
		"Description":     a.Description,
		"Container":       a.IsContainer(),
		"DependencyCount": len(a.DependsOn),
	}
}

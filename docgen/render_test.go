package docgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjayganvkar/adfdoc/rules"
	"github.com/sanjayganvkar/adfdoc/types"
)

func sectionNames(r types.Report) []string {
	out := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		out = append(out, s.Name)
	}
	return out
}

func scopeByLabel(t *testing.T, s types.Section, label string) types.Report {
	t.Helper()
	for _, scope := range s.Scopes {
		if scope.Label == label {
			return scope.Report
		}
	}
	t.Fatalf("section %q has no scope %q", s.Name, label)
	return types.Report{}
}

func TestRenderLeafSection(t *testing.T) {
	a := act("copy", "lookup")
	a.Description = "copies staged rows"
	a.UserProperties = []types.UserProperty{{Name: "owner", Value: "etl"}}
	a.TypeProperties = map[string]interface{}{"source": map[string]interface{}{"type": "BlobSource"}}

	report, diags, err := Renderer{}.Render("pipeline", []types.Activity{act("lookup"), a})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, report.Sections, 2)

	section := report.Sections[1]
	assert.Equal(t, "copy", section.Name)
	assert.Equal(t, "copies staged rows", section.Description)
	assert.Equal(t, "Copy", section.Type)
	assert.Equal(t, []types.ActivityDependency{{Activity: "lookup", DependencyConditions: []string{"Succeeded"}}}, section.DependsOn)
	assert.Equal(t, []types.UserProperty{{Name: "owner", Value: "etl"}}, section.UserProperties)
	require.NotNil(t, section.TypeProperties)
	assert.Equal(t, types.ValueMapping, section.TypeProperties.Kind)
	assert.Empty(t, section.Scopes)
}

func TestRenderIfConditionBranches(t *testing.T) {
	// Both branches use the same activity names; each branch is its own
	// dependency namespace, so ordering is computed independently.
	cond := types.Activity{
		Name: "check",
		Type: types.TypeIfCondition,
		Kind: types.KindIfCondition,
		If: &types.IfPayload{
			TrueActivities:  []types.Activity{act("second", "first"), act("first")},
			FalseActivities: []types.Activity{act("first"), act("second", "first")},
		},
	}

	report, diags, err := Renderer{}.Render("pipeline", []types.Activity{cond})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, report.Sections, 1)

	section := report.Sections[0]
	require.Len(t, section.Scopes, 2)
	assert.Equal(t, LabelIfTrue, section.Scopes[0].Label)
	assert.Equal(t, LabelIfFalse, section.Scopes[1].Label)
	assert.Equal(t, []string{"first", "second"}, sectionNames(section.Scopes[0].Report))
	assert.Equal(t, []string{"first", "second"}, sectionNames(section.Scopes[1].Report))
}

func TestRenderIfConditionAbsentBranch(t *testing.T) {
	cond := types.Activity{
		Name: "check",
		Type: types.TypeIfCondition,
		Kind: types.KindIfCondition,
		If:   &types.IfPayload{TrueActivities: []types.Activity{act("only")}},
	}

	report, _, err := Renderer{}.Render("pipeline", []types.Activity{cond})
	require.NoError(t, err)
	require.Len(t, report.Sections, 1)
	require.Len(t, report.Sections[0].Scopes, 1)
	assert.Equal(t, LabelIfTrue, report.Sections[0].Scopes[0].Label)
}

func TestRenderForEachBody(t *testing.T) {
	loop := types.Activity{
		Name:    "perFile",
		Type:    types.TypeForEach,
		Kind:    types.KindForEach,
		ForEach: &types.ForEachPayload{Activities: []types.Activity{act("move", "stage"), act("stage")}},
	}

	report, _, err := Renderer{}.Render("pipeline", []types.Activity{loop})
	require.NoError(t, err)
	require.Len(t, report.Sections, 1)

	body := scopeByLabel(t, report.Sections[0], LabelBody)
	assert.Equal(t, []string{"stage", "move"}, sectionNames(body))
}

func TestRenderSwitchCases(t *testing.T) {
	sw := types.Activity{
		Name: "route",
		Type: types.TypeSwitch,
		Kind: types.KindSwitch,
		Switch: &types.SwitchPayload{
			Cases: []types.SwitchCase{
				{Value: "x", Activities: []types.Activity{act("x1")}},
				{Value: "y", Activities: []types.Activity{act("y1"), act("y2", "y1")}},
			},
			DefaultActivities: []types.Activity{act("fallback")},
		},
	}

	report, diags, err := Renderer{}.Render("pipeline", []types.Activity{sw})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, report.Sections, 1)

	section := report.Sections[0]
	require.Len(t, section.Scopes, 3)
	assert.Equal(t, LabelBody, section.Scopes[0].Label)
	assert.Equal(t, "Case: x", section.Scopes[1].Label)
	assert.Equal(t, "Case: y", section.Scopes[2].Label)
	assert.Equal(t, []string{"y1", "y2"}, sectionNames(section.Scopes[2].Report))
}

func TestRenderUnknownTypeIsLeaf(t *testing.T) {
	a := types.Activity{
		Name:           "custom",
		Type:           "AzureFunctionActivity",
		TypeProperties: map[string]interface{}{"activities": []interface{}{"not a scope"}},
	}

	report, _, err := Renderer{}.Render("pipeline", []types.Activity{a})
	require.NoError(t, err)
	require.Len(t, report.Sections, 1)
	assert.Empty(t, report.Sections[0].Scopes)
}

func TestRenderNestedDiagnostics(t *testing.T) {
	loop := types.Activity{
		Name:    "perFile",
		Type:    types.TypeForEach,
		Kind:    types.KindForEach,
		ForEach: &types.ForEachPayload{Activities: []types.Activity{act("inner", "ghost")}},
	}

	report, diags, err := Renderer{}.Render("pipeline", []types.Activity{loop})
	require.NoError(t, err)
	require.Len(t, report.Sections, 1)

	require.Len(t, diags, 1)
	assert.Equal(t, "pipeline/perFile/Activities", diags[0].Scope)
	assert.Equal(t, []string{"inner"}, diags[0].Dropped)
	assert.Equal(t, []MissingRef{{Activity: "inner", Upstream: "ghost"}}, diags[0].MissingRefs)

	// The dropped inner activity leaves an empty nested report behind.
	assert.Empty(t, scopeByLabel(t, report.Sections[0], LabelBody).Sections)
}

func TestRenderFilterExpression(t *testing.T) {
	r := Renderer{
		Evaluator: rules.NewExprEvaluator(),
		Filter:    `Type != "Wait"`,
	}

	wait := types.Activity{Name: "pause", Type: "Wait"}
	report, _, err := r.Render("pipeline", []types.Activity{act("lookup"), wait, act("copy", "lookup")})
	require.NoError(t, err)
	assert.Equal(t, []string{"lookup", "copy"}, sectionNames(report))
}

func TestRenderFilterError(t *testing.T) {
	r := Renderer{
		Evaluator: rules.NewExprEvaluator(),
		Filter:    `Name +`,
	}

	_, _, err := r.Render("pipeline", []types.Activity{act("a")})
	assert.Error(t, err)
}

package types

import (
	"fmt"
	"sort"
	"strconv"
)

// ValueKind discriminates the shapes a rendered property value can take.
type ValueKind int

const (
	ValueScalar ValueKind = iota
	ValueMapping
	ValueSequence
)

// Value is a display-ready tree built from arbitrary decoded JSON: mappings
// become one row per key, sequences one row per position, scalars their
// textual form.
type Value struct {
	Kind   ValueKind  `json:"kind"`
	Scalar string     `json:"scalar,omitempty"`
	Rows   []ValueRow `json:"rows,omitempty"`
}

// ValueRow is one key/value row of a mapping or sequence Value.
type ValueRow struct {
	Key   string `json:"key"`
	Value *Value `json:"value,omitempty"`
}

// ValueOf converts a decoded JSON value into its display tree. Mapping keys
// are emitted in sorted order so the result is deterministic; sequence rows
// are keyed "Item i" with 1-based positions.
func ValueOf(v interface{}) *Value {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([]ValueRow, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, ValueRow{Key: k, Value: ValueOf(t[k])})
		}
		return &Value{Kind: ValueMapping, Rows: rows}
	case []interface{}:
		rows := make([]ValueRow, 0, len(t))
		for i, item := range t {
			rows = append(rows, ValueRow{
				Key:   fmt.Sprintf("Item %d", i+1),
				Value: ValueOf(item),
			})
		}
		return &Value{Kind: ValueSequence, Rows: rows}
	default:
		return &Value{Kind: ValueScalar, Scalar: formatScalar(v)}
	}
}

// formatScalar renders a scalar JSON value without the exponent notation %v
// would use for large decoded numbers.
func formatScalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Report is the ordered documentation of one activity scope.
type Report struct {
	Sections []Section `json:"sections,omitempty"`
}

// Section documents a single activity, in resolved order within its report.
// Scopes holds the fully rendered nested reports of a container activity.
type Section struct {
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Type           string               `json:"type"`
	DependsOn      []ActivityDependency `json:"dependsOn,omitempty"`
	UserProperties []UserProperty       `json:"userProperties,omitempty"`
	TypeProperties *Value               `json:"typeProperties,omitempty"`
	Scopes         []NestedScope        `json:"scopes,omitempty"`
}

// NestedScope is one labelled child scope of a container section, e.g.
// "If True Activities" or "Case: x".
type NestedScope struct {
	Label  string `json:"label"`
	Report Report `json:"report"`
}

// PipelineReport is the documentation of one pipeline resource.
type PipelineReport struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Parameters  map[string]ParameterSpec `json:"parameters,omitempty"`
	Variables   map[string]ParameterSpec `json:"variables,omitempty"`
	Activities  Report                   `json:"activities"`
}

// FactoryReport is one generated documentation run over a template.
type FactoryReport struct {
	ID          uint64           `json:"id"`
	TemplateID  uint64           `json:"template_id"`
	FactoryName string           `json:"factory_name"`
	GeneratedAt int64            `json:"generated_at"`
	Pipelines   []PipelineReport `json:"pipelines,omitempty"`
}

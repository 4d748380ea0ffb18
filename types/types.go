package types

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ARM resource type identifiers used by Data Factory factories.
const (
	ResourceTypePipeline           = "Microsoft.DataFactory/factories/pipelines"
	ResourceTypeTrigger            = "Microsoft.DataFactory/factories/triggers"
	ResourceTypeDataset            = "Microsoft.DataFactory/factories/datasets"
	ResourceTypeLinkedService      = "Microsoft.DataFactory/factories/linkedServices"
	ResourceTypeDataFlow           = "Microsoft.DataFactory/factories/dataflows"
	ResourceTypeIntegrationRuntime = "Microsoft.DataFactory/factories/integrationRuntimes"
)

// Activity type strings that introduce nested activity scopes.
const (
	TypeIfCondition = "IfCondition"
	TypeForEach     = "ForEach"
	TypeSwitch      = "Switch"
)

// ActivityKind classifies an activity once at parse time so that rendering
// never has to re-inspect the type string.
type ActivityKind int

const (
	KindLeaf ActivityKind = iota
	KindIfCondition
	KindForEach
	KindSwitch
)

// Template is a parsed ARM template for a Data Factory. ID is assigned at
// registration time; it is not part of the ARM document itself.
type Template struct {
	ID             uint64                       `json:"id,omitempty"`
	Schema         string                       `json:"$schema,omitempty"`
	ContentVersion string                       `json:"contentVersion,omitempty"`
	Parameters     map[string]TemplateParameter `json:"parameters,omitempty"`
	Resources      []Resource                   `json:"resources"`
}

// TemplateParameter is a top-level ARM template parameter.
type TemplateParameter struct {
	Type         string      `json:"type,omitempty"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
}

// FactoryName returns the factoryName parameter's default value, or "Unknown"
// when the template does not declare one.
func (t Template) FactoryName() string {
	if p, ok := t.Parameters["factoryName"]; ok {
		if s, ok := p.DefaultValue.(string); ok && s != "" {
			return s
		}
	}
	return "Unknown"
}

// Resource is one entry of the template's resources collection. Properties is
// kept raw; callers decode it into the shape their resource type expects.
type Resource struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// Kind returns the last path segment of the resource type, e.g. "pipelines".
func (r Resource) Kind() string {
	i := strings.LastIndex(r.Type, "/")
	return r.Type[i+1:]
}

// Pipeline decodes the resource properties as a pipeline definition.
func (r Resource) Pipeline() (Pipeline, error) {
	var p Pipeline
	if len(r.Properties) == 0 {
		return p, nil
	}
	err := json.Unmarshal(r.Properties, &p)
	return p, err
}

// GenericProperties decodes the resource properties into a plain map for
// display-oriented consumers.
func (r Resource) GenericProperties() (map[string]interface{}, error) {
	if len(r.Properties) == 0 {
		return nil, nil
	}
	var m map[string]interface{}
	err := json.Unmarshal(r.Properties, &m)
	return m, err
}

// ARM templates name resources as [concat(parameters('factoryName'), '/Name')];
// resourceNameRe pulls out the trailing Name.
var resourceNameRe = regexp.MustCompile(`/([^/]+)'\)\]$`)

// ExtractResourceName returns the plain resource name from an ARM concat
// expression, or the input unchanged when it does not match.
func ExtractResourceName(name string) string {
	if m := resourceNameRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// Pipeline holds the properties of a pipeline resource.
type Pipeline struct {
	Description string                   `json:"description,omitempty"`
	Parameters  map[string]ParameterSpec `json:"parameters,omitempty"`
	Variables   map[string]ParameterSpec `json:"variables,omitempty"`
	Activities  []Activity               `json:"activities,omitempty"`
	Annotations []interface{}            `json:"annotations,omitempty"`
}

// ParameterSpec declares a pipeline parameter or variable.
type ParameterSpec struct {
	Type         string      `json:"type,omitempty"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
}

// Activity is one node of a pipeline's activity graph. Name is the vertex
// identity within its sibling list; DependsOn edges never cross scopes.
//
// Kind and the payload pointers are derived from Type and typeProperties
// during unmarshalling. Exactly one payload is non-nil for a container
// activity; all are nil for a leaf.
type Activity struct {
	Name           string                 `json:"name"`
	Type           string                 `json:"type"`
	Description    string                 `json:"description,omitempty"`
	DependsOn      []ActivityDependency   `json:"dependsOn,omitempty"`
	UserProperties []UserProperty         `json:"userProperties,omitempty"`
	TypeProperties map[string]interface{} `json:"typeProperties,omitempty"`

	Kind    ActivityKind    `json:"-"`
	If      *IfPayload      `json:"-"`
	ForEach *ForEachPayload `json:"-"`
	Switch  *SwitchPayload  `json:"-"`
}

// IsContainer reports whether the activity institutes nested scopes.
func (a Activity) IsContainer() bool {
	return a.Kind != KindLeaf
}

// ActivityDependency is one dependsOn edge to an upstream activity in the
// same scope.
type ActivityDependency struct {
	Activity             string   `json:"activity"`
	DependencyConditions []string `json:"dependencyConditions,omitempty"`
}

// UserProperty is a display-only key/value record attached to an activity.
type UserProperty struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value,omitempty"`
}

// IfPayload holds the nested scopes of an IfCondition activity. Either branch
// may be absent.
type IfPayload struct {
	TrueActivities  []Activity `json:"ifTrueActivities,omitempty"`
	FalseActivities []Activity `json:"ifFalseActivities,omitempty"`
}

// ForEachPayload holds the loop body of a ForEach activity.
type ForEachPayload struct {
	Activities []Activity `json:"activities,omitempty"`
}

// SwitchPayload holds the case scopes of a Switch activity. DefaultActivities
// comes from the generic activities key, mirroring the loop body convention.
type SwitchPayload struct {
	Cases             []SwitchCase `json:"cases,omitempty"`
	DefaultActivities []Activity   `json:"activities,omitempty"`
}

// SwitchCase is one named case scope of a Switch activity.
type SwitchCase struct {
	Value      string     `json:"value"`
	Activities []Activity `json:"activities,omitempty"`
}

// UnmarshalJSON decodes an activity and classifies it. Container payloads are
// decoded from the raw typeProperties document, so nested activities get
// classified recursively; the generic TypeProperties map is retained for
// display. Unknown type strings classify as leaf.
func (a *Activity) UnmarshalJSON(data []byte) error {
	type activityAlias Activity
	aux := struct {
		*activityAlias
		RawTypeProperties json.RawMessage `json:"typeProperties"`
	}{activityAlias: (*activityAlias)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.RawTypeProperties) > 0 {
		if err := json.Unmarshal(aux.RawTypeProperties, &a.TypeProperties); err != nil {
			return err
		}
	}

	a.Kind = KindLeaf
	a.If, a.ForEach, a.Switch = nil, nil, nil
	if len(aux.RawTypeProperties) == 0 {
		return nil
	}

	switch a.Type {
	case TypeIfCondition:
		var p IfPayload
		if err := json.Unmarshal(aux.RawTypeProperties, &p); err != nil {
			return err
		}
		a.Kind = KindIfCondition
		a.If = &p
	case TypeForEach:
		var p ForEachPayload
		if err := json.Unmarshal(aux.RawTypeProperties, &p); err != nil {
			return err
		}
		a.Kind = KindForEach
		a.ForEach = &p
	case TypeSwitch:
		var p SwitchPayload
		if err := json.Unmarshal(aux.RawTypeProperties, &p); err != nil {
			return err
		}
		a.Kind = KindSwitch
		a.Switch = &p
	}
	return nil
}

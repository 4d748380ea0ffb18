package htmldoc

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/sanjayganvkar/adfdoc/types"
)

// displayProperty maps a resource property key to its section label.
type displayProperty struct {
	Key   string
	Label string
}

// resourceSection describes one "Artifact Details" section.
type resourceSection struct {
	Title   string
	TypeID  string
	Display []displayProperty
}

// The resource kinds documented with a per-kind property whitelist.
var resourceSections = []resourceSection{
	{
		Title:  "Integration Runtimes",
		TypeID: types.ResourceTypeIntegrationRuntime,
		Display: []displayProperty{
			{Key: "parameters", Label: "Parameters"},
			{Key: "typeProperties", Label: "Type Properties"},
		},
	},
	{
		Title:  "Datasets",
		TypeID: types.ResourceTypeDataset,
		Display: []displayProperty{
			{Key: "linkedServiceName", Label: "Linked Service Name"},
			{Key: "parameters", Label: "Parameters"},
			{Key: "typeProperties", Label: "Type Properties"},
		},
	},
	{
		Title:  "Linked Services",
		TypeID: types.ResourceTypeLinkedService,
		Display: []displayProperty{
			{Key: "type", Label: "Type"},
			{Key: "typeProperties", Label: "Type Properties"},
			{Key: "connectVia", Label: "Connect Via"},
		},
	},
	{
		Title:  "Data Flows",
		TypeID: types.ResourceTypeDataFlow,
		Display: []displayProperty{
			{Key: "type", Label: "Type"},
			{Key: "typeProperties", Label: "Type Properties"},
		},
	},
}

const pageStyle = `<style>
body { font-family: Arial, sans-serif; margin-left: 10px; margin-right: 10px; }
h2, h3, h4 { color: #333; }
table { width: 100%; border-collapse: collapse; margin-bottom: 1px; }
th, td { padding: 8px; text-align: left; border: 1px solid #ccc; }
th { background-color: #f9f9f9; }
ul { list-style-type: none; padding: 0; }
ul li { margin: 2px 0; }
ul li a { text-decoration: none; }
ul li a:hover { text-decoration: underline; }
.nested-table { width: 100%; border-collapse: separate; border-spacing: 0; background-color: #FFFFFF; border-radius: 8px; box-shadow: 0 2px 5px rgba(0, 0, 0, 0.1); overflow: hidden; }
.activity-table { width: 100%; border-collapse: collapse; }
.activity-table th, .activity-table td { padding: 1px; border: 1px solid #ddd; }
details summary { display: flex; align-items: center; cursor: pointer; }
.pipeline-name { color: #1b4f72; }
.toc-table td { vertical-align: top; padding-right: 1px; background-color: #f9faf5; }
.float-right { float: right; }
.button-link { text-decoration: none; font-size: 16px; color: #000; padding: 5px 10px; border: 1px solid #000; border-radius: 5px; background-color: #f0f0f0; }
</style>`

// triggerRow is one flattened row of the trigger summary table.
type triggerRow struct {
	Name              string
	RuntimeState      string
	Frequency         string
	Interval          string
	StartTime         string
	TimeZone          string
	PipelineReference string
}

// triggerProperties is the subset of trigger resource properties the summary
// table shows.
type triggerProperties struct {
	RuntimeState   string `json:"runtimeState"`
	TypeProperties struct {
		Recurrence struct {
			Frequency string      `json:"frequency"`
			Interval  interface{} `json:"interval"`
			StartTime string      `json:"startTime"`
			TimeZone  string      `json:"timeZone"`
		} `json:"recurrence"`
	} `json:"typeProperties"`
	Pipelines []struct {
		PipelineReference struct {
			ReferenceName string `json:"referenceName"`
		} `json:"pipelineReference"`
	} `json:"pipelines"`
}

// Document serializes a factory report, together with the non-pipeline
// resources of its template, into a standalone HTML page: header, table of
// contents, resource detail sections, trigger summary, and the dependency-
// ordered pipeline documentation. All user-controlled text is escaped.
func Document(tpl types.Template, rep types.FactoryReport) (string, error) {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<title>ADF Artifacts</title>\n")
	b.WriteString(pageStyle)
	b.WriteString("\n</head>\n<body>\n")
	fmt.Fprintf(&b, "<h2>Azure DataFactory Artifacts : %s</h2>\n", esc(rep.FactoryName))
	b.WriteString("<div id=\"top\"></div>\n")

	writeTOC(&b, tpl.Resources)

	b.WriteString("<hr><h2>Artifact Details</h2><hr>\n")
	for _, section := range resourceSections {
		if err := writeResourceSection(&b, section, tpl.Resources); err != nil {
			return "", err
		}
	}

	if err := writeTriggers(&b, tpl.Resources); err != nil {
		return "", err
	}

	writePipelines(&b, rep)

	b.WriteString("</body></html>\n")
	return b.String(), nil
}

// writeTOC emits a three-column table of contents, resources grouped by the
// last path segment of their type in first-seen order, names alphabetical.
func writeTOC(b *strings.Builder, resources []types.Resource) {
	var groupOrder []string
	grouped := make(map[string][]string)
	for _, res := range resources {
		kind := res.Kind()
		if _, ok := grouped[kind]; !ok {
			groupOrder = append(groupOrder, kind)
		}
		grouped[kind] = append(grouped[kind], types.ExtractResourceName(res.Name))
	}

	b.WriteString("<h3>Table of Contents</h3>\n<table class='toc-table'>\n<tr>\n")
	for i, kind := range groupOrder {
		if i > 0 && i%3 == 0 {
			b.WriteString("</tr><tr>\n")
		}
		fmt.Fprintf(b, "<td><h4>%s</h4><ul>", esc(capitalize(kind)))
		names := grouped[kind]
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(b, "<li><a href='#%s'>%s</a></li>", esc(name), esc(name))
		}
		b.WriteString("</ul></td>\n")
	}
	b.WriteString("</tr>\n</table>\n")
}

// writeResourceSection emits one resource kind's details, restricted to the
// section's display-property whitelist.
func writeResourceSection(b *strings.Builder, section resourceSection, resources []types.Resource) error {
	fmt.Fprintf(b, "<h3>%s</h3><table>\n", esc(section.Title))
	for _, res := range resources {
		if res.Type != section.TypeID {
			continue
		}
		name := types.ExtractResourceName(res.Name)
		props, err := res.GenericProperties()
		if err != nil {
			return fmt.Errorf("failed to decode properties of %q: %w", name, err)
		}

		description, _ := props["description"].(string)

		var details strings.Builder
		for _, dp := range section.Display {
			value, ok := props[dp.Key]
			if !ok {
				continue
			}
			fmt.Fprintf(&details, "<tr><td>%s</td><td>", esc(dp.Label))
			writeValue(&details, types.ValueOf(value))
			details.WriteString("</td></tr>")
		}

		fmt.Fprintf(b, "<tr id='%s'><th colspan='2'><details><summary><strong>%s</strong>"+
			"<span class=\"float-right\"><a href=\"#top\" class=\"button-link\">Go to Top</a></span>"+
			"</summary></details></th></tr>\n", esc(name), esc(name))
		fmt.Fprintf(b, "<tr><td colspan='2'><p>%s</p><table>%s</table></td></tr>\n",
			esc(description), details.String())
	}
	b.WriteString("</table>\n")
	return nil
}

// writeTriggers emits the flat trigger summary table, sorted by trigger name.
func writeTriggers(b *strings.Builder, resources []types.Resource) error {
	var rows []triggerRow
	for _, res := range resources {
		if res.Type != types.ResourceTypeTrigger {
			continue
		}
		name := types.ExtractResourceName(res.Name)

		var props triggerProperties
		if len(res.Properties) > 0 {
			if err := json.Unmarshal(res.Properties, &props); err != nil {
				return fmt.Errorf("failed to decode trigger %q: %w", name, err)
			}
		}

		row := triggerRow{
			Name:              name,
			RuntimeState:      orUnknown(props.RuntimeState),
			Frequency:         orUnknown(props.TypeProperties.Recurrence.Frequency),
			Interval:          orUnknown(scalarText(props.TypeProperties.Recurrence.Interval)),
			StartTime:         orUnknown(props.TypeProperties.Recurrence.StartTime),
			TimeZone:          orUnknown(props.TypeProperties.Recurrence.TimeZone),
			PipelineReference: "Unknown",
		}
		if len(props.Pipelines) > 0 && props.Pipelines[0].PipelineReference.ReferenceName != "" {
			row.PipelineReference = props.Pipelines[0].PipelineReference.ReferenceName
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	b.WriteString("<p><h3 style=\"display: inline;\">Triggers</h3>" +
		"<span class=\"float-right\"><a href=\"#top\" class=\"button-link\">Go to Top</a></span>\n")
	b.WriteString("<table>\n<tr><th>Trigger Name</th><th>Runtime State</th><th>Frequency</th>" +
		"<th>Interval</th><th>Start Time</th><th>Time Zone</th><th>Pipeline Reference</th></tr>\n")
	for _, row := range rows {
		fmt.Fprintf(b, "<tr id='%s'><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			esc(row.Name), esc(row.Name), esc(row.RuntimeState), esc(row.Frequency),
			esc(row.Interval), esc(row.StartTime), esc(row.TimeZone), esc(row.PipelineReference))
	}
	b.WriteString("</table>\n")
	return nil
}

// writePipelines emits one section per pipeline report: description,
// parameter and variable signatures, then the recursive activity report.
func writePipelines(b *strings.Builder, rep types.FactoryReport) {
	b.WriteString("<h3>Pipelines</h3><table>\n")
	for _, pl := range rep.Pipelines {
		fmt.Fprintf(b, "<tr id='%s'><th colspan='2'><details><summary class='pipeline-name'>"+
			"<strong>%s</strong><span class=\"float-right\"><a href=\"#top\" class=\"button-link\">Go to Top</a></span>"+
			"</summary></details></th></tr>\n", esc(pl.Name), esc(pl.Name))
		fmt.Fprintf(b, "<tr><td colspan='2'>%s</td></tr>\n", esc(pl.Description))

		b.WriteString("<tr><td>Parameters</td><td>")
		writeSignatures(b, pl.Parameters)
		b.WriteString("</td></tr>\n<tr><td>Variables</td><td>")
		writeSignatures(b, pl.Variables)
		b.WriteString("</td></tr>\n<tr><td>Activities</td><td>")
		writeReport(b, pl.Activities)
		b.WriteString("</td></tr>\n")
	}
	b.WriteString("</table>\n")
}

// writeSignatures emits "< name : type >" pairs in sorted name order.
func writeSignatures(b *strings.Builder, specs map[string]types.ParameterSpec) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(b, "&lt;&nbsp;%s : %s&nbsp;&gt; ", esc(name), esc(specs[name].Type))
	}
}

// writeReport emits one collapsible block per section, nested scopes
// rendered recursively in place.
func writeReport(b *strings.Builder, report types.Report) {
	for _, section := range report.Sections {
		fmt.Fprintf(b, "<details><summary><table><tr><td style=\"width: 250px;\">%s</td><td>%s</td></tr></table></summary>\n",
			esc(section.Name), esc(section.Description))
		b.WriteString("<table class='activity-table'>\n<tr><th>Attribute</th><th>Details</th></tr>\n")
		fmt.Fprintf(b, "<tr><td>Type</td><td>%s</td></tr>\n", esc(section.Type))

		if len(section.DependsOn) > 0 {
			b.WriteString("<tr><td>Depends On</td><td><ul>")
			for _, dep := range section.DependsOn {
				fmt.Fprintf(b, "<li>Activity: %s (Conditions: %s)</li>",
					esc(dep.Activity), esc(strings.Join(dep.DependencyConditions, ", ")))
			}
			b.WriteString("</ul></td></tr>\n")
		}

		if len(section.UserProperties) > 0 {
			b.WriteString("<tr><td>User Properties</td><td><table><tr><th>name</th><th>value</th></tr>")
			for _, up := range section.UserProperties {
				fmt.Fprintf(b, "<tr><td>%s</td><td>%s</td></tr>", esc(up.Name), esc(scalarText(up.Value)))
			}
			b.WriteString("</table></td></tr>\n")
		}

		if section.TypeProperties != nil {
			b.WriteString("<tr><td>Type Properties</td><td>")
			writeValue(b, section.TypeProperties)
			b.WriteString("</td></tr>\n")
		}

		for _, scope := range section.Scopes {
			fmt.Fprintf(b, "<tr><td>%s</td><td>", esc(scope.Label))
			writeReport(b, scope.Report)
			b.WriteString("</td></tr>\n")
		}

		b.WriteString("</table></details>\n")
	}
}

// writeValue emits a value tree as nested tables.
func writeValue(b *strings.Builder, v *types.Value) {
	if v == nil {
		return
	}
	if v.Kind == types.ValueScalar {
		b.WriteString(esc(v.Scalar))
		return
	}
	b.WriteString("<table class='nested-table'>")
	for _, row := range v.Rows {
		fmt.Fprintf(b, "<tr><td>%s</td><td>", esc(row.Key))
		writeValue(b, row.Value)
		b.WriteString("</td></tr>")
	}
	b.WriteString("</table>")
}

// scalarText renders a decoded JSON scalar for table cells.
func scalarText(v interface{}) string {
	val := types.ValueOf(v)
	if val.Kind == types.ValueScalar {
		return val.Scalar
	}
	return fmt.Sprintf("%v", v)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func esc(s string) string {
	return html.EscapeString(s)
}

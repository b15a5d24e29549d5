// internal/quality/markdown.go
package quality

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/valpere/StoreScrapexter/internal/hours"
)

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Data Quality Report - %s\n\n", r.Source)
	fmt.Fprintf(&b, "Generated on: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Source File**: %s\n", r.Source)
	fmt.Fprintf(&b, "- **Total Records**: %d\n\n", r.Total)

	b.WriteString("## Missing Fields\n\n")
	if len(r.MissingAll) > 0 {
		b.WriteString("Missing in all records: " + strings.Join(r.MissingAll, ", ") + "\n\n")
	}
	if len(r.MissingSome) > 0 {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Field", "Missing", "Percent"})
		for _, gap := range r.MissingSome {
			t.AppendRow(table.Row{gap.Field, gap.Missing, fmt.Sprintf("%.1f%%", gap.Percent)})
		}
		b.WriteString(t.RenderMarkdown() + "\n\n")
		for _, gap := range r.MissingSome {
			fmt.Fprintf(&b, "### %s\n\nSample record:\n\n", gap.Field)
			writeJSON(&b, gap.Sample)
		}
	}
	if len(r.MissingAll) == 0 && len(r.MissingSome) == 0 {
		b.WriteString("Every record has every field.\n\n")
	}

	b.WriteString("## Falsy Values\n\n")
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Records"})
	for _, field := range r.FalsyFields() {
		t.AppendRow(table.Row{field, r.Falsy[field].Count})
	}
	t.AppendRow(table.Row{"location (invalid)", r.InvalidLocations.Count})
	t.AppendRow(table.Row{"hours (invalid)", r.InvalidHours.Count})
	b.WriteString(t.RenderMarkdown() + "\n\n")

	for _, field := range r.FalsyFields() {
		writeSamples(&b, field, r.Falsy[field])
	}
	writeSamples(&b, "location", &r.InvalidLocations)
	writeSamples(&b, "hours", &r.InvalidHours)

	b.WriteString("## Hours by Day\n\n")
	days := table.NewWriter()
	days.AppendHeader(table.Row{"Day", "Incomplete"})
	for _, day := range hours.Week {
		days.AppendRow(table.Row{day, r.IncompleteDays[day]})
	}
	b.WriteString(days.RenderMarkdown() + "\n")
	return b.String()
}

func writeSamples(b *strings.Builder, field string, f *Finding) {
	if f == nil || len(f.Samples) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\nFound %d records, showing %d:\n\n", field, f.Count, len(f.Samples))
	for _, sample := range f.Samples {
		writeJSON(b, sample)
	}
}

func writeJSON(b *strings.Builder, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = []byte(err.Error())
	}
	b.WriteString("```json\n")
	b.Write(data)
	b.WriteString("\n```\n\n")
}

// Summary aggregates the reports of several sources.
type Summary []*Report

// Markdown renders one row per source and a total.
func (s Summary) Markdown() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Source File", "Record Count", "Invalid Locations", "Invalid Hours"})
	total := 0
	for _, r := range s {
		t.AppendRow(table.Row{r.Source, r.Total, r.InvalidLocations.Count, r.InvalidHours.Count})
		total += r.Total
	}
	t.AppendFooter(table.Row{"Total", total, "", ""})
	return "# Data Quality Summary Report\n\n" + t.RenderMarkdown() + "\n"
}

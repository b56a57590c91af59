package reporter

import (
	"bytes"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

const markdownTemplate = `# Molecule Test Execution Report

**Generated:** {{ .Timestamp }}

{{ if not .Rows -}}
No scenario results to report.
{{ else -}}
## Summary

- **Total Scenarios:** {{ .Summary.Total }}
- **Passed:** {{ .Summary.Passed }} ✅
- **Failed:** {{ .Summary.Failed }} ❌
- **Skipped:** {{ .Summary.Skipped }} ⏭️
- **Error:** {{ .Summary.Errored }} 💥
- **Total Execution Time:** {{ .Duration }}s

## Scenario Details

| Scenario ID | Status | Duration (s) |
|---|---|---|
{{- range .Rows }}
| {{ .ID | replace "|" "\\|" }} | {{ .Symbol }} {{ .Status }} | {{ .Duration }} |
{{- end }}
| **Total** | **{{ .Summary.Total }} {{ if eq .Summary.Total 1 }}scenario{{ else }}scenarios{{ end }}** | **{{ .Duration }}** |
{{ end -}}
`

var markdownTmpl = template.Must(template.New("markdown").Funcs(sprig.TxtFuncMap()).Parse(markdownTemplate))

type markdownRow struct {
	ID       string
	Symbol   string
	Status   string
	Duration string
}

// WriteMarkdown writes the human-readable tabular report.
func WriteMarkdown(w io.Writer, r Result) error {
	rows := make([]markdownRow, len(r.Outcomes))
	for i, o := range r.Outcomes {
		rows[i] = markdownRow{
			ID:       o.ID,
			Symbol:   statusSymbol(o.Status),
			Status:   statusTitle(o.Status),
			Duration: formatSeconds(o.Duration, 2),
		}
	}

	var buf bytes.Buffer
	err := markdownTmpl.Execute(&buf, map[string]interface{}{
		"Timestamp": r.Timestamp.UTC().Format(time.RFC3339),
		"Summary":   r.Summary(),
		"Duration":  formatSeconds(r.Duration, 2),
		"Rows":      rows,
	})
	if err != nil {
		return fmt.Errorf("failed to render Markdown report: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

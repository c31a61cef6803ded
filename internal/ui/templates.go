package ui

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/relay/pkg/model"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"ago": func(t time.Time) string {
		return humanize.Time(t)
	},
	"durationMs": func(ms int64) string {
		if ms <= 0 {
			return "-"
		}
		return (time.Duration(ms) * time.Millisecond).String()
	},
	"resultClass": func(r *model.Result) string {
		if r == nil {
			return "pending"
		}
		return string(*r)
	},
	"resultText": func(r *model.Result) string {
		if r == nil {
			return "-"
		}
		return string(*r)
	},
	"dash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}

// renderTemplate renders the named page inside the layout.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(templates["layout"])
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}
	if _, err := tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return tmpl.Execute(w, data)
}

var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: sans-serif; margin: 2em; color: #222; }
        table { border-collapse: collapse; }
        th, td { padding: 4px 12px; text-align: left; border-bottom: 1px solid #ddd; }
        .passed { color: #15803d; }
        .failed { color: #b45309; }
        .fatal, .interrupted { color: #b91c1c; }
        .pending, .running { color: #6b7280; }
    </style>
</head>
<body>
<nav><a href="/ui/">Runs</a></nav>
{{template "content" .}}
</body>
</html>`,

	"runs": `<h1>Runs</h1>
{{if .Runs}}
<table>
<tr><th>Run</th><th>Status</th><th>Units</th><th>Passed</th><th>Failed</th><th>Fatal</th><th>Started</th></tr>
{{range .Runs}}
<tr>
<td><a href="/ui/runs/{{.ID}}">{{.ID}}</a></td>
<td class="{{.Status}}">{{.Status}}</td>
<td>{{.Total}}</td><td>{{.Passed}}</td><td>{{.Failed}}</td><td>{{.Fatal}}</td>
<td title="{{formatTime .StartedAt}}">{{ago .StartedAt}}</td>
</tr>
{{end}}
</table>
<p>{{len .Runs}} of {{.Total}} runs</p>
{{else}}
<p>No runs recorded.</p>
{{end}}`,

	"run": `<h1>Run {{.Run.ID}}</h1>
<p>Status <span class="{{.Run.Status}}">{{.Run.Status}}</span>, manifest {{.Run.Manifest}},
parallel limit {{.Run.ParallelLimit}}, started {{formatTime .Run.StartedAt}}</p>
<table>
<tr><th>Unit</th><th>Status</th><th>Result</th><th>After</th><th>Delay (min)</th><th>Duration</th><th>Skipped by</th></tr>
{{range .Units}}
<tr>
<td>{{.Name}}</td>
<td>{{.Status}}</td>
<td class="{{resultClass .Result}}">{{resultText .Result}}</td>
<td>{{dash .DependsOn}}</td>
<td>{{.DelayMinutes}}</td>
<td>{{durationMs .DurationMs}}</td>
<td>{{dash .SkippedBy}}</td>
</tr>
{{end}}
</table>`,

	"error": `<h1>{{.Title}}</h1>
<p>{{.Message}}</p>`,
}

package health

import (
	"bytes"
	"html/template"
	"sort"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Autolot API · Status</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <meta http-equiv="refresh" content="30">
  <style>
    body { font-family: system-ui, sans-serif; background: #f8f9fa; color: #1f2937; margin: 40px auto; max-width: 900px; }
    h1.ok { color: #047857; } h1.issue { color: #b91c1c; }
    table { border-collapse: collapse; width: 100%; margin-bottom: 28px; background: #fff; }
    td, th { padding: 8px 12px; border-bottom: 1px solid #e5e7eb; text-align: left; }
    .pill { padding: 2px 10px; border-radius: 10px; font-size: 12px; font-weight: 700; }
    .good { background: #d1fae5; } .bad { background: #fee2e2; }
  </style>
</head>
<body>
  <h1 class="{{.Status}}">{{if eq .Status "ok"}}All Systems Operational{{else}}System Issues Detected{{end}}</h1>

  <h2>Traffic</h2>
  <table>
    <tr><td>Total requests</td><td>{{.Traffic.TotalRequests}}</td></tr>
    <tr><td>Successful</td><td>{{.Traffic.SuccessCount}}</td></tr>
    <tr><td>Failed</td><td>{{.Traffic.FailedCount}}</td></tr>
    <tr><td>Success rate</td><td>{{.Traffic.SuccessRate}}%</td></tr>
    <tr><td>Avg latency</td><td>{{.Traffic.AvgResponseTime}} ms</td></tr>
  </table>

  <h2>Dependencies</h2>
  <table>
    {{range .Deps}}<tr><td>{{.Name}}</td><td><span class="pill {{if .OK}}good{{else}}bad{{end}}">{{.Status}}</span></td><td>{{if .PingMs}}{{.PingMs}} ms{{else}}-{{end}}</td></tr>
    {{end}}
  </table>

  <h2>Status sweep</h2>
  <table>
  {{if .Sweep}}{{if .Sweep.Ran}}
    <tr><td>Last run</td><td>{{.Sweep.Report.FinishedAt.Format "2006-01-02 15:04:05Z07:00"}}</td></tr>
    <tr><td>Lots checked</td><td>{{.Sweep.Report.Lots.Checked}}</td></tr>
    <tr><td>Lots corrected</td><td>{{.Sweep.Report.Lots.Changed}}</td></tr>
    {{if .Sweep.Report.LotsError}}<tr><td>Refresh error</td><td>{{.Sweep.Report.LotsError}}</td></tr>{{end}}
    {{range .Sweep.Report.Procedures}}<tr><td>{{.Name}}()</td><td><span class="pill {{if eq .Outcome "failed"}}bad{{else}}good{{end}}">{{.Outcome}}</span></td></tr>
    {{end}}
  {{else}}<tr><td>Not run yet</td></tr>{{end}}
  {{else}}<tr><td>Sweeper disabled</td></tr>{{end}}
  </table>

  <p>Uptime {{.Runtime.UptimeSeconds}}s · {{.Runtime.Goroutines}} goroutines · {{.Runtime.Platform}} · {{.Runtime.GoVersion}} · <a href="/health/errors">error log</a></p>
</body>
</html>
`))

type depRow struct {
	Name   string
	Status string
	PingMs interface{}
	OK     bool
}

// RenderDashboardHTML returns the HTML for GET /.
func RenderDashboardHTML(health CollectResult) string {
	deps := make([]depRow, 0, len(health.Dependencies))
	for name, d := range health.Dependencies {
		deps = append(deps, depRow{
			Name:   name,
			Status: d.Status,
			PingMs: derefPing(d.PingMs),
			OK:     d.Status == "connected" || d.Status == "reachable",
		})
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	var buf bytes.Buffer
	err := dashboardTmpl.Execute(&buf, struct {
		CollectResult
		Deps []depRow
	}{health, deps})
	if err != nil {
		return "<!DOCTYPE html><html><body><h1>Status unavailable</h1></body></html>"
	}
	return buf.String()
}

func derefPing(p interface{}) interface{} {
	if ms, ok := p.(*int64); ok {
		if ms == nil {
			return nil
		}
		return *ms
	}
	return p
}

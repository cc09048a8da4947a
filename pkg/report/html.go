package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Path to write the HTML file
	EmbedAssets bool   // Embed screenshots as base64 (larger file but portable)
	Title       string // Report title (default: "Replay Report")
	ReportDir   string // Directory containing report.json (needed for asset paths)
}

// GenerateHTML generates an HTML report from the report directory.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	index, flows, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = "Replay Report"
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = reportDir
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	data := buildHTMLData(index, flows, cfg)

	html, err := renderHTML(data)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}

	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title       string
	GeneratedAt string
	Index       *Index
	Flows       []FlowHTMLData
	PassRate    float64
}

// FlowHTMLData contains flow data formatted for HTML.
type FlowHTMLData struct {
	FlowDetail
	StatusClass string
	DurationStr string
	Commands    []CommandHTMLData
}

// CommandHTMLData contains command data formatted for HTML.
type CommandHTMLData struct {
	Command
	StatusClass      string
	DurationStr      string
	ScreenshotBefore string // base64 data URI or relative path
	ScreenshotAfter  string
	DOMSnapshot      string
}

func buildHTMLData(index *Index, flows []FlowDetail, cfg HTMLConfig) HTMLData {
	statusClass := map[Status]string{
		StatusPassed:  "passed",
		StatusFailed:  "failed",
		StatusSkipped: "skipped",
		StatusRunning: "running",
		StatusPending: "pending",
	}

	flowsData := make([]FlowHTMLData, len(flows))
	for i, f := range flows {
		cmds := make([]CommandHTMLData, len(f.Commands))
		for j, c := range f.Commands {
			cmd := CommandHTMLData{
				Command:     c,
				StatusClass: statusClass[c.Status],
				DurationStr: formatDuration(c.Duration),
				DOMSnapshot: c.Artifacts.DOMSnapshot,
			}
			cmd.ScreenshotBefore = resolveAsset(cfg, c.Artifacts.ScreenshotBefore)
			cmd.ScreenshotAfter = resolveAsset(cfg, c.Artifacts.ScreenshotAfter)
			cmds[j] = cmd
		}

		flowsData[i] = FlowHTMLData{
			FlowDetail:  f,
			StatusClass: statusClass[flowStatus(index, f.ID)],
			DurationStr: formatDuration(f.Duration),
			Commands:    cmds,
		}
	}

	passRate := 0.0
	if index.Summary.Total > 0 {
		passRate = float64(index.Summary.Passed) / float64(index.Summary.Total) * 100
	}

	return HTMLData{
		Title:       cfg.Title,
		GeneratedAt: time.Now().Format(time.RFC1123),
		Index:       index,
		Flows:       flowsData,
		PassRate:    passRate,
	}
}

// flowStatus looks up a flow's status in the index.
func flowStatus(index *Index, flowID string) Status {
	for _, entry := range index.Flows {
		if entry.ID == flowID {
			return entry.Status
		}
	}
	return StatusPending
}

// resolveAsset returns either a base64 data URI or the relative path.
func resolveAsset(cfg HTMLConfig, relPath string) string {
	if relPath == "" {
		return ""
	}
	if !cfg.EmbedAssets {
		return relPath
	}
	data, err := os.ReadFile(filepath.Join(cfg.ReportDir, relPath))
	if err != nil {
		return relPath
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// formatDuration formats milliseconds for display.
func formatDuration(ms *int64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", *ms)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// renderHTML renders the report template.
func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  :root { --passed: #22a06b; --failed: #d4380d; --skipped: #8c8c8c; --running: #1677ff; --pending: #bfbfbf; }
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 0; background: #f5f5f5; color: #222; }
  header { background: #1a1a2e; color: #fff; padding: 16px 24px; }
  header h1 { margin: 0; font-size: 20px; }
  header .meta { font-size: 12px; color: #aaa; margin-top: 4px; }
  .summary { display: flex; gap: 12px; padding: 16px 24px; flex-wrap: wrap; }
  .card { background: #fff; border-radius: 6px; padding: 12px 20px; min-width: 90px; box-shadow: 0 1px 2px rgba(0,0,0,.08); }
  .card .num { font-size: 24px; font-weight: 600; }
  .card .lbl { font-size: 12px; color: #888; text-transform: uppercase; }
  .card.passed .num { color: var(--passed); }
  .card.failed .num { color: var(--failed); }
  .card.skipped .num { color: var(--skipped); }
  .flow { background: #fff; margin: 12px 24px; border-radius: 6px; box-shadow: 0 1px 2px rgba(0,0,0,.08); overflow: hidden; }
  .flow > summary { padding: 12px 16px; cursor: pointer; display: flex; align-items: center; gap: 12px; list-style: none; }
  .flow > summary::-webkit-details-marker { display: none; }
  .badge { padding: 2px 10px; border-radius: 10px; color: #fff; font-size: 12px; text-transform: uppercase; }
  .badge.passed { background: var(--passed); }
  .badge.failed { background: var(--failed); }
  .badge.skipped { background: var(--skipped); }
  .badge.running { background: var(--running); }
  .badge.pending { background: var(--pending); }
  .flow-name { font-weight: 600; flex: 1; }
  .flow-duration { color: #888; font-size: 13px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th, td { text-align: left; padding: 8px 16px; border-top: 1px solid #eee; }
  th { color: #888; font-weight: 500; font-size: 12px; text-transform: uppercase; }
  tr.failed td { background: #fff2f0; }
  tr.skipped td { color: #aaa; }
  .err { color: var(--failed); font-size: 12px; white-space: pre-wrap; }
  .shots a { margin-right: 8px; font-size: 12px; }
  .shots img { max-height: 60px; border: 1px solid #ddd; border-radius: 3px; vertical-align: middle; }
</style>
</head>
<body>
<header>
  <h1>{{.Title}}</h1>
  <div class="meta">
    {{.Index.RecorderRunner.Driver}} driver
    {{- if .Index.Browser.Name}} &middot; {{.Index.Browser.Name}} {{.Index.Browser.Version}}{{end}}
    &middot; run {{.Index.RunID}} &middot; generated {{.GeneratedAt}}
  </div>
</header>
<div class="summary">
  <div class="card"><div class="num">{{.Index.Summary.Total}}</div><div class="lbl">Flows</div></div>
  <div class="card passed"><div class="num">{{.Index.Summary.Passed}}</div><div class="lbl">Passed</div></div>
  <div class="card failed"><div class="num">{{.Index.Summary.Failed}}</div><div class="lbl">Failed</div></div>
  <div class="card skipped"><div class="num">{{.Index.Summary.Skipped}}</div><div class="lbl">Skipped</div></div>
  <div class="card"><div class="num">{{printf "%.0f%%" .PassRate}}</div><div class="lbl">Pass rate</div></div>
</div>
{{range .Flows}}
<details class="flow"{{if eq .StatusClass "failed"}} open{{end}}>
  <summary>
    <span class="badge {{.StatusClass}}">{{.StatusClass}}</span>
    <span class="flow-name">{{.Name}}</span>
    <span class="flow-duration">{{.DurationStr}}</span>
  </summary>
  <table>
    <tr><th>#</th><th>Step</th><th>Status</th><th>Duration</th><th>Artifacts</th></tr>
    {{range .Commands}}
    <tr class="{{.StatusClass}}">
      <td>{{.Index}}</td>
      <td>
        {{if .Label}}{{.Label}}{{else}}{{.Detail}}{{end}}
        {{if .Error}}<div class="err">{{.Error.Message}}</div>{{end}}
      </td>
      <td><span class="badge {{.StatusClass}}">{{.StatusClass}}</span></td>
      <td>{{.DurationStr}}</td>
      <td class="shots">
        {{if .ScreenshotBefore}}<a href="{{.ScreenshotBefore}}" target="_blank"><img src="{{.ScreenshotBefore}}" alt="before"></a>{{end}}
        {{if .ScreenshotAfter}}<a href="{{.ScreenshotAfter}}" target="_blank"><img src="{{.ScreenshotAfter}}" alt="after"></a>{{end}}
        {{if .DOMSnapshot}}<a href="{{.DOMSnapshot}}" target="_blank">DOM</a>{{end}}
      </td>
    </tr>
    {{end}}
  </table>
</details>
{{end}}
</body>
</html>
`

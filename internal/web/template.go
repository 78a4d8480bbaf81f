package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/mercer/diag-rig/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"levelClass": func(s string) string {
		return strings.ToLower(s)
	},
	"unit": func(name string) string {
		switch name {
		case "VOLTAGE":
			return "V"
		case "CURRENT":
			return "A"
		case "TEMPERATURE":
			return "°C"
		}
		return ""
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Diagnostic Rig</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.warning { color: orange; font-weight: bold; }
.critical { color: orangered; font-weight: bold; }
.emergency { color: red; font-weight: bold; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.banner { background: #c00; color: white; padding: 0.8em 1em; margin: 1em 0; font-weight: bold; }
</style>
</head>
<body>
<h1>Diagnostic Rig</h1>

{{if .Emergency}}<div class="banner">EMERGENCY STOP: {{.EmergencyReason}}</div>{{end}}

<h2>Safety</h2>
<table>
<tr><th>Overall</th><td class="{{levelClass .Overall}}">{{.Overall}}</td></tr>
{{range .Params}}<tr><th>{{.Name}}</th><td class="{{levelClass .Status}}">{{printf "%.2f" .Value}}{{with unit .Name}} {{.}}{{end}} ({{.Status}}{{if .Violations}}, {{.Violations}} violations{{end}})</td></tr>
{{end}}</table>

<h2>Channels</h2>
<table>
{{range $i, $on := .Channels}}<tr><th>Channel {{$i}}</th><td class="{{if $on}}on{{else}}off{{end}}">{{if $on}}ON{{else}}OFF{{end}}</td></tr>
{{end}}</table>

<h2>Input</h2>
<table>
<tr><th>Presses</th><td>{{.Counts.Presses}}</td></tr>
<tr><th>Releases</th><td>{{.Counts.Releases}}</td></tr>
<tr><th>Long presses</th><td>{{.Counts.LongPresses}}</td></tr>
<tr><th>Double clicks</th><td>{{.Counts.DoubleClicks}}</td></tr>
<tr><th>Commands</th><td>{{.Counts.Commands}}</td></tr>
<tr><th>Dropped</th><td>{{.Counts.Dropped}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Loop iterations</th><td>{{.LoopCount}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Safety check</th><td>{{.Config.SafetyMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Status update</th><td>{{.Config.StatusMs}}ms</td></tr>
{{if .Config.SerialDev}}<tr><th>Serial</th><td>{{.Config.SerialDev}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but the template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}

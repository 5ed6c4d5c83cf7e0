package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"strings"
	"time"

	"github.com/sweeney/peckboard/internal/logic"
	"github.com/sweeney/peckboard/internal/status"
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
	"lower": strings.ToLower,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Peckboard</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.off { color: #888; }
.blue { color: #1565c0; font-weight: bold; }
.red { color: #c62828; font-weight: bold; }
.green { color: #2e7d32; font-weight: bold; }
.all { font-weight: bold; }
.running, .connected { color: green; }
.stopped, .disconnected { color: red; }
</style>
</head>
<body>
<h1>Peckboard</h1>

<h2>Positions</h2>
<table>
<tr><th>Position</th><td><b>Color</b></td><td><b>Pecks</b></td></tr>
{{range .Positions}}<tr><th>{{.Position}}</th><td class="{{lower .Color}}">{{.Color}}</td><td>{{.Pecks}}</td></tr>
{{end}}</table>
{{with .LastPeck}}<p>Last peck: {{.Position}} {{.From}} &rarr; {{.To}} at {{.Timestamp.UTC.Format "15:04:05"}}</p>{{end}}

<h2>Monitor</h2>
<table>
<tr><th>State</th><td class="{{if .Monitor.Running}}running{{else}}stopped{{end}}">{{if .Monitor.Running}}running{{else}}stopped{{end}} ({{.Monitor.Phase}})</td></tr>
<tr><th>Restarts</th><td>{{.Monitor.Restarts}}</td></tr>
{{if .Monitor.LastError}}<tr><th>Last error</th><td>{{.Monitor.LastError}}</td></tr>{{end}}
<tr><th>Spurious edges</th><td>{{.Counts.Spurious}}</td></tr>
<tr><th>Exceptions</th><td>{{.Counts.Exceptions}}</td></tr>
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
<tr><th>Chip</th><td>{{.Config.PrimaryChip}}</td></tr>
<tr><th>Interrupt</th><td>{{.Config.Interrupt}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Restart delay</th><td>{{if eq .Config.RestartDelayMs 0}}disabled{{else}}{{.Config.RestartDelayMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">metrics</a></p>
</body>
</html>
`

type positionRow struct {
	Position string
	Color    string
	Pecks    int
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Positions []positionRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for i, p := range logic.Positions {
		data.Positions = append(data.Positions, positionRow{
			Position: p.String(),
			Color:    snap.Colors[i].String(),
			Pecks:    snap.Counts.Pecks[i],
		})
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/button-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime":     formatUptime,
	"stateClass": stateClass,
}).Parse(indexHTML))

// formatUptime renders d as "3d 4h 5m 6s", omitting leading zero units.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	units := []struct {
		n      int64
		suffix string
	}{
		{secs / 86400, "d"},
		{secs / 3600 % 24, "h"},
		{secs / 60 % 60, "m"},
	}
	out := ""
	for _, u := range units {
		if u.n > 0 || out != "" {
			out += fmt.Sprintf("%d%s ", u.n, u.suffix)
		}
	}
	return out + fmt.Sprintf("%ds", secs%60)
}

func stateClass(state string) string {
	switch state {
	case "pressed", "stuck", "released":
		return state
	case "debounce-press", "debounce-release":
		return "debounce"
	default:
		return "unknown"
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Button Sensor</title>
<style>
body { font: 14px/1.4 monospace; max-width: 40em; margin: 1.5em auto; padding: 0 1em; }
h1 { font-size: 1.3em; margin-bottom: 0.2em; }
h2 { font-size: 1.1em; border-bottom: 1px solid #ccc; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 3px 6px; text-align: left; }
th { width: 35%; font-weight: normal; color: #555; }
.pressed, .connected { color: #080; font-weight: bold; }
.released { color: #888; }
.debounce, .unknown { color: #c70; }
.stuck, .disconnected { color: #c00; font-weight: bold; }
form { display: inline; }
</style>
</head>
<body>
<h1>Button Sensor</h1>

<h2>Buttons</h2>
<table>
{{range .Buttons}}<tr><th>Button {{.Index}}</th><td class="{{stateClass .State}}">{{.State}}</td>{{if $.Simulated}}<td><form method="post" action="/buttons/{{.Index}}/press"><button>press</button></form> <form method="post" action="/buttons/{{.Index}}/release"><button>release</button></form></td>{{end}}</tr>
{{else}}<tr><td>no buttons yet</td></tr>
{{end}}</table>
<p>Scheduler: {{if .AlarmEnabled}}running{{else}}stopped <form method="post" action="/alarm/resume"><button>resume</button></form>{{end}}</p>

<h2>Connectivity</h2>
<table>
<tr><th>mqtt</th>{{if .MQTTConnected}}<td class="connected">connected</td>{{else}}<td class="disconnected">disconnected</td>{{end}}</tr>
<tr><th>broker</th><td>{{.Config.Broker}} ({{.Config.Topic}})</td></tr>
{{with .Network}}<tr><th>network</th><td>{{.Status}} {{.Type}}{{if .SSID}} {{.SSID}}{{end}}</td></tr>
<tr><th>address</th><td>{{.IP}}</td></tr>{{end}}
</table>

<h2>Events</h2>
<table>
<tr><th>pressed</th><td>{{.Counts.Pressed}}</td></tr>
<tr><th>released</th><td>{{.Counts.Released}}</td></tr>
<tr><th>stuck</th><td>{{.Counts.Stuck}}</td></tr>
<tr><th>unstuck</th><td>{{.Counts.Unstuck}}</td></tr>
<tr><th>dropped</th><td>{{.Dropped}}</td></tr>
</table>

<h2>Health</h2>
<table>
<tr><th>ticks</th><td>{{.Health.Ticks}}</td></tr>
<tr><th>lost notifications</th><td>{{.Health.Lost}}</td></tr>
<tr><th>unmatched transitions</th><td>{{.Health.Unmatched}}</td></tr>
<tr><th>unhandled events</th><td>{{.Health.Unhandled}}</td></tr>
</table>

<h2>Daemon</h2>
<table>
<tr><th>session</th><td>{{.Session}}</td></tr>
<tr><th>up</th><td>{{uptime .Uptime}} since {{.StartTime.UTC.Format "2006-01-02 15:04:05"}} UTC</td></tr>
<tr><th>input</th><td>{{.Config.Source}}, {{.Config.Buttons}} buttons</td></tr>
<tr><th>timing</th><td>tick {{.Config.TickMs}}ms, debounce {{.Config.DebounceMs}}ms, stuck {{.Config.StuckTimeoutMs}}ms</td></tr>
<tr><th>heartbeat</th><td>{{with .Config.HeartbeatMs}}{{.}}ms{{else}}off{{end}}</td></tr>
</table>

<p><a href="/index.json">index.json</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, simulated bool) error {
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Simulated bool
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Simulated: simulated,
	}
	return indexTmpl.Execute(w, data)
}

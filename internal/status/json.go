package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/peckboard/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Positions     []PositionJSON `json:"positions"`
	LastPeck      *PeckJSON      `json:"last_peck,omitempty"`
	Monitor       MonitorJSON    `json:"monitor"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Config        ConfigJSON     `json:"config"`
}

// PositionJSON is one position's rendered color and press count.
type PositionJSON struct {
	Position string `json:"position"`
	Color    string `json:"color"`
	Pecks    int    `json:"pecks"`
}

// PeckJSON is the JSON representation of a rendered key press.
type PeckJSON struct {
	Timestamp string `json:"timestamp"`
	Position  string `json:"position"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// MonitorJSON reports the monitor loop's state.
type MonitorJSON struct {
	Phase     string `json:"phase"`
	Running   bool   `json:"running"`
	Restarts  int    `json:"restarts"`
	LastError string `json:"last_error,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Pecks      int `json:"pecks"`
	Spurious   int `json:"spurious"`
	Exceptions int `json:"exceptions"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	RestartDelayMs int64  `json:"restart_delay_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	ConfigPath     string `json:"config_path,omitempty"`
	PrimaryChip    string `json:"primary_chip"`
	Interrupt      string `json:"interrupt"`
}

// NewPeckJSON converts a peck to its JSON form.
func NewPeckJSON(p logic.Peck) PeckJSON {
	return PeckJSON{
		Timestamp: p.Timestamp.UTC().Format(time.RFC3339Nano),
		Position:  p.Position.String(),
		From:      p.From.String(),
		To:        p.To.String(),
	}
}

func buildInner(snap Snapshot) StatusInner {
	positions := make([]PositionJSON, 0, logic.NumPositions)
	for i, p := range logic.Positions {
		positions = append(positions, PositionJSON{
			Position: p.String(),
			Color:    snap.Colors[i].String(),
			Pecks:    snap.Counts.Pecks[i],
		})
	}

	inner := StatusInner{
		Positions: positions,
		Monitor: MonitorJSON{
			Phase:     snap.Monitor.Phase,
			Running:   snap.Monitor.Running,
			Restarts:  snap.Monitor.Restarts,
			LastError: snap.Monitor.LastError,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Pecks:      snap.Counts.Total(),
			Spurious:   snap.Counts.Spurious,
			Exceptions: snap.Counts.Exceptions,
		},
		Config: ConfigJSON{
			HeartbeatMs:    snap.Config.HeartbeatMs,
			RestartDelayMs: snap.Config.RestartDelayMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			ConfigPath:     snap.Config.ConfigPath,
			PrimaryChip:    snap.Config.PrimaryChip,
			Interrupt:      snap.Config.Interrupt,
		},
	}
	if snap.LastPeck != nil {
		p := NewPeckJSON(*snap.LastPeck)
		inner.LastPeck = &p
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

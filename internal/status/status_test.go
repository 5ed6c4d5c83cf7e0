package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/peckboard/internal/logic"
)

type fixedBoard logic.Snapshot

func (b fixedBoard) Snapshot() logic.Snapshot { return logic.Snapshot(b) }

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg, nil)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Monitor.Running {
		t.Error("expected Running=false initially")
	}
	if snap.Monitor.Phase != "NEW" {
		t.Errorf("Phase: got %q, want NEW", snap.Monitor.Phase)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.Colors != (logic.Snapshot{}) {
		t.Errorf("Colors: got %v, want all OFF", snap.Colors)
	}
}

func TestTrackerCountsObservations(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, nil)

	tr.Peck(logic.Peck{Position: logic.PositionCenter, From: logic.ColorOff, To: logic.ColorBlue})
	tr.Peck(logic.Peck{Position: logic.PositionCenter, From: logic.ColorBlue, To: logic.ColorRed})
	tr.Peck(logic.Peck{Position: logic.PositionLeft, From: logic.ColorOff, To: logic.ColorBlue})
	tr.Spurious([]bool{false, false, false})
	tr.Exception(errors.New("events lost"))

	snap := tr.Snapshot()
	if snap.Counts.Pecks != [logic.NumPositions]int{0, 2, 1} {
		t.Errorf("Pecks: got %v", snap.Counts.Pecks)
	}
	if snap.Counts.Spurious != 1 || snap.Counts.Exceptions != 1 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
	if snap.LastPeck == nil || snap.LastPeck.Position != logic.PositionLeft {
		t.Errorf("LastPeck: got %+v", snap.LastPeck)
	}
}

func TestTrackerReadsBoard(t *testing.T) {
	board := fixedBoard{logic.ColorRed, logic.ColorOff, logic.ColorAll}
	tr := NewTracker(time.Now(), Config{}, board)

	if got := tr.Snapshot().Colors; got != logic.Snapshot(board) {
		t.Errorf("Colors: got %v", got)
	}
}

func TestMonitorLifecycle(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, nil)

	tr.MonitorStarted(func() string { return "IDLE" })
	snap := tr.Snapshot()
	if !snap.Monitor.Running || snap.Monitor.Phase != "IDLE" || snap.Monitor.Restarts != 0 {
		t.Errorf("after first start: %+v", snap.Monitor)
	}

	tr.MonitorStopped(errors.New("read keys: ioctl failed"))
	snap = tr.Snapshot()
	if snap.Monitor.Running {
		t.Error("expected Running=false after stop")
	}
	if snap.Monitor.LastError != "read keys: ioctl failed" {
		t.Errorf("LastError: got %q", snap.Monitor.LastError)
	}

	tr.MonitorStarted(func() string { return "IDLE" })
	if got := tr.Snapshot().Monitor.Restarts; got != 1 {
		t.Errorf("Restarts: got %d, want 1", got)
	}

	// A clean stop keeps the last recorded error.
	tr.MonitorStopped(nil)
	if tr.Snapshot().Monitor.LastError == "" {
		t.Error("LastError should survive a clean stop")
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, nil)

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{}, nil)

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, nil)
	tr.Peck(logic.Peck{Position: logic.PositionRight, To: logic.ColorBlue})

	snap1 := tr.Snapshot()
	tr.Peck(logic.Peck{Position: logic.PositionRight, From: logic.ColorBlue, To: logic.ColorRed})

	// snap1 should still reflect old state
	if snap1.Counts.Pecks[0] != 1 {
		t.Error("snapshot should be a copy; counts were modified")
	}
	if snap1.LastPeck.To != logic.ColorBlue {
		t.Error("snapshot should be a copy; LastPeck was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Colors:        logic.Snapshot{logic.ColorOff, logic.ColorBlue, logic.ColorGreen},
		Counts:        logic.Counts{Pecks: [logic.NumPositions]int{0, 1, 3}, Spurious: 2},
		Monitor:       Monitor{Phase: "IDLE", Running: true},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80", PrimaryChip: "gpiochip4", Interrupt: "gpiochip2:25"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	want := []PositionJSON{
		{Position: "RIGHT", Color: "OFF", Pecks: 0},
		{Position: "CENTER", Color: "BLUE", Pecks: 1},
		{Position: "LEFT", Color: "GREEN", Pecks: 3},
	}
	if len(parsed.Status.Positions) != len(want) {
		t.Fatalf("Positions: got %d, want %d", len(parsed.Status.Positions), len(want))
	}
	for i, w := range want {
		if parsed.Status.Positions[i] != w {
			t.Errorf("Positions[%d]: got %+v, want %+v", i, parsed.Status.Positions[i], w)
		}
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if parsed.Status.MQTT.Connected != true {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Pecks != 4 || parsed.Status.Counts.Spurious != 2 {
		t.Errorf("Counts: got %+v", parsed.Status.Counts)
	}
	if parsed.Status.Monitor.Phase != "IDLE" || !parsed.Status.Monitor.Running {
		t.Errorf("Monitor: got %+v", parsed.Status.Monitor)
	}
	if parsed.Status.Config.Interrupt != "gpiochip2:25" {
		t.Errorf("Config.Interrupt: got %q", parsed.Status.Config.Interrupt)
	}
	if parsed.Status.LastPeck != nil {
		t.Error("expected no last_peck")
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONLastPeck(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)
	snap := Snapshot{
		LastPeck:  &logic.Peck{Timestamp: at, Position: logic.PositionRight, From: logic.ColorAll, To: logic.ColorOff},
		StartTime: at,
		Now:       at,
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	want := PeckJSON{Timestamp: "2026-01-01T00:00:05Z", Position: "RIGHT", From: "ALL", To: "OFF"}
	if parsed.Status.LastPeck == nil || *parsed.Status.LastPeck != want {
		t.Errorf("LastPeck: got %+v, want %+v", parsed.Status.LastPeck, want)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Colors:        logic.Snapshot{logic.ColorRed},
		Counts:        logic.Counts{Pecks: [logic.NumPositions]int{3}},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.Positions[0].Color != "RED" {
		t.Errorf("right color: got %q, want RED", parsed.Status.Positions[0].Color)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	// Verify "reason" is not in the raw JSON output
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	board := logic.NewBoard()
	tr := NewTracker(time.Now(), Config{}, board)
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if tn, ok := board.Advance(logic.PositionCenter); ok {
				board.Commit(tn)
				tr.Peck(logic.Peck{Position: logic.PositionCenter, From: tn.From, To: tn.To})
			}
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}

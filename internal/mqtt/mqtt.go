// Package mqtt publishes engine notifications to an MQTT broker.
package mqtt

import (
	"encoding/json"

	"github.com/roach88/triggersim/internal/engine"
)

// Topic suffixes below the configured prefix.
const (
	TopicLog    = "log"
	TopicState  = "state"
	TopicFlash  = "flash"
	TopicStatus = "status"
)

// Publisher sends raw messages to the broker.
type Publisher interface {
	// Publish sends payload on topic. Returns error if publishing fails
	// (should not crash the process).
	Publish(topic string, retained bool, payload []byte) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// LogPayload is published on <prefix>/log for every log line.
type LogPayload struct {
	Text     string  `json:"text"`
	Emphasis bool    `json:"emphasis"`
	Kind     string  `json:"kind"`
	Seq      int64   `json:"seq"`
	Time     float64 `json:"time"`
	RunID    string  `json:"run_id,omitempty"`
}

// StatePayload is published retained on <prefix>/state/<id>.
type StatePayload struct {
	Trigger string `json:"trigger"`
	Active  bool   `json:"active"`
}

// FlashPayload is published on <prefix>/flash.
type FlashPayload struct {
	Trigger string `json:"trigger"`
	Cue     string `json:"cue"`
}

// Topic joins prefix and the given segments with '/'.
func Topic(prefix string, segments ...string) string {
	topic := prefix
	for _, s := range segments {
		if topic == "" {
			topic = s
			continue
		}
		topic += "/" + s
	}
	return topic
}

// FormatLogPayload creates the JSON payload for a log line.
func FormatLogPayload(line engine.LogLine) ([]byte, error) {
	return json.Marshal(LogPayload{
		Text:     line.Text,
		Emphasis: line.Emphasis,
		Kind:     string(line.Entry.Kind),
		Seq:      line.Entry.Seq,
		Time:     line.Entry.Time,
		RunID:    line.Entry.RunID,
	})
}

// FormatStatePayload creates the JSON payload for a state change.
func FormatStatePayload(id string, active bool) ([]byte, error) {
	return json.Marshal(StatePayload{Trigger: id, Active: active})
}

// FormatFlashPayload creates the JSON payload for a flash cue.
func FormatFlashPayload(id string, cue engine.FlashCue) ([]byte, error) {
	return json.Marshal(FlashPayload{Trigger: id, Cue: string(cue)})
}

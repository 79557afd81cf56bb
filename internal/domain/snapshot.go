package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// snapshotMessage is the published shape of a Snapshot.
type snapshotMessage struct {
	Report string `json:"report"`
	Snapshot
	Improving  bool   `json:"improving"`
	DaysToZero int    `json:"days_to_zero,omitempty"`
	ZeroDate   string `json:"zero_date,omitempty"`
	Label      string `json:"label,omitempty"`
}

// SerializeSnapshot encodes a report snapshot for publishing. The key is
// "<report>/<parent>/<name>" so a geography's snapshots land on one partition.
func SerializeSnapshot(report string, s Snapshot) (OutputEvent, error) {
	msg := snapshotMessage{
		Report:     report,
		Snapshot:   s,
		Improving:  s.Trend.Improving,
		DaysToZero: s.Trend.DaysToZero,
		Label:      s.Trend.Label,
	}
	if s.Trend.Improving {
		msg.ZeroDate = s.Trend.ZeroDate.Format(DateLayout)
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("marshal snapshot %s: %w", s.Name, err)
	}

	return OutputEvent{
		Key:   []byte(strings.Join([]string{report, s.Parent, s.Name}, "/")),
		Value: value,
		Headers: map[string]string{
			"report": report,
			"kind":   s.Kind,
			"date":   s.Date.Format(DateLayout),
		},
	}, nil
}

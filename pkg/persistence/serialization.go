package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalSigningRecord serializes a SigningRecord to JSON bytes.
func MarshalSigningRecord(sr *SigningRecord) ([]byte, error) {
	if sr == nil {
		return nil, fmt.Errorf("cannot marshal nil SigningRecord")
	}

	data, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SigningRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSigningRecord deserializes a SigningRecord from JSON bytes.
func UnmarshalSigningRecord(data []byte) (*SigningRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var sr SigningRecord
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to SigningRecord: %w", err)
	}
	if sr.Id == "" {
		return nil, fmt.Errorf("SigningRecord has no id")
	}

	return &sr, nil
}

// MarshalMonitorState serializes MonitorState to JSON bytes.
func MarshalMonitorState(ms *MonitorState) ([]byte, error) {
	if ms == nil {
		return nil, fmt.Errorf("cannot marshal nil MonitorState")
	}

	return json.Marshal(ms)
}

// UnmarshalMonitorState deserializes MonitorState from JSON bytes.
func UnmarshalMonitorState(data []byte) (*MonitorState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var ms MonitorState
	if err := json.Unmarshal(data, &ms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to MonitorState: %w", err)
	}

	return &ms, nil
}

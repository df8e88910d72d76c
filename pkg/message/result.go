package message

import (
	"fmt"
	"time"
)

// Status is the outcome of processing one message.
type Status int

const (
	StatusSuccess Status = iota
	StatusWarning
	StatusError
	StatusValidationFailed
)

var statusNames = map[Status]string{
	StatusSuccess:          "SUCCESS",
	StatusWarning:          "WARNING",
	StatusError:            "ERROR",
	StatusValidationFailed: "VALIDATION_FAILED",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for st, name := range statusNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// ProcessingResult is the aggregated outcome of one processing attempt.
// It is assembled once after validation and not modified afterwards.
type ProcessingResult struct {
	Status         Status            `json:"status"`
	MessageID      string            `json:"messageId"`
	MessageType    string            `json:"messageType"`
	Errors         []ValidationError `json:"errors"`
	Warnings       []string          `json:"warnings"`
	ProcessingTime time.Duration     `json:"processingTime"`
}

// HasErrors reports whether any defect was recorded.
func (r *ProcessingResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Successful reports whether the message passed validation.
func (r *ProcessingResult) Successful() bool {
	return r.Status == StatusSuccess
}

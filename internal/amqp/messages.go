package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
)

var ErrInvalidMessage = errors.New("invalid message")

// ReportRequestMessage asks a worker to run the analyzer for a date range.
// From and To are yyyy-MM-dd, both included.
type ReportRequestMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// ReportResultMessage carries the outcome of one request. Exactly one of
// Result and Error is set.
type ReportResultMessage struct {
	RequestID string                `json:"request_id"`
	From      string                `json:"from"`
	To        string                `json:"to"`
	Result    *core.AnalyticsResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	Kind      string                `json:"kind,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// NewReportRequestMessage creates a request with a fresh ID.
func NewReportRequestMessage(from, to core.Date) *ReportRequestMessage {
	return &ReportRequestMessage{
		ID:        uuid.NewString(),
		From:      from.String(),
		To:        to.String(),
		Timestamp: time.Now(),
	}
}

// Range parses and validates the requested dates.
func (m *ReportRequestMessage) Range() (core.Date, core.Date, error) {
	from, err := core.ParseDate(m.From)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: from: %v", ErrInvalidMessage, err)
	}
	to, err := core.ParseDate(m.To)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: to: %v", ErrInvalidMessage, err)
	}
	if err := core.ValidateRange(from, to); err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return from, to, nil
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON decodes a request and checks it has an ID.
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	return &msg, nil
}

// NewReportResultMessage builds the reply to req. A non-nil err takes
// precedence over res; kind classifies err for consumers.
func NewReportResultMessage(req *ReportRequestMessage, res *core.AnalyticsResult, err error, kind string) *ReportResultMessage {
	msg := &ReportResultMessage{
		RequestID: req.ID,
		From:      req.From,
		To:        req.To,
		Timestamp: time.Now(),
	}
	if err != nil {
		msg.Error = err.Error()
		msg.Kind = kind
		return msg
	}
	msg.Result = res
	return msg
}

// Failed reports whether the request did not produce a result.
func (m *ReportResultMessage) Failed() bool {
	return m.Error != ""
}

// ToJSON converts the message to JSON bytes
func (m *ReportResultMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportResultMessageFromJSON creates a message from JSON bytes
func ReportResultMessageFromJSON(data []byte) (*ReportResultMessage, error) {
	var msg ReportResultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Result != nil {
		msg.Result.Normalize()
	}
	return &msg, nil
}

// Package message defines the calculation request and result messages that
// flow through the pipeline, and their JSON wire format.
//
// Both message types serialize as flat JSON objects. The same encoding is
// used for the in-process queue (where it never leaves the process) and for
// the durable broker queues, so either transport can feed either consumer.
package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/calcq/id"
)

// CalculationRequest asks for an aggregate over one column of one asset.
// It is created by the producer, owned by the queue or broker until dequeued,
// and consumed exactly once. There is no retry of the request itself: a
// failed attempt produces a result carrying the error instead.
type CalculationRequest struct {
	RequestID  id.RequestID `json:"requestId"`
	AssetID    string       `json:"assetId"`
	ColumnName string       `json:"columnName"`
	UserID     string       `json:"userId,omitempty"`
	UserName   string       `json:"userName,omitempty"`
	EnqueuedAt time.Time    `json:"enqueuedAtUtc"`
}

// NewRequest creates a CalculationRequest with a fresh RequestID and
// enqueue timestamp.
func NewRequest(assetID, columnName, userID, userName string) *CalculationRequest {
	return &CalculationRequest{
		RequestID:  id.NewRequestID(),
		AssetID:    assetID,
		ColumnName: columnName,
		UserID:     userID,
		UserName:   userName,
		EnqueuedAt: time.Now().UTC(),
	}
}

// CalculationResult is the outcome of exactly one CalculationRequest.
// Average is 0.0 when the target scope had no matching rows (a defined
// value, not an error) and when Error is set. A result is never mutated
// after creation.
type CalculationResult struct {
	RequestID   id.RequestID `json:"requestId"`
	AssetID     string       `json:"assetId"`
	ColumnName  string       `json:"columnName"`
	Average     float64      `json:"average"`
	Error       string       `json:"error,omitempty"`
	UserID      string       `json:"userId,omitempty"`
	UserName    string       `json:"userName,omitempty"`
	CompletedAt time.Time    `json:"completedAtUtc"`
}

// NewResult creates a CalculationResult correlated with req, stamping the
// completion time. Average and Error are filled in by the caller.
func NewResult(req *CalculationRequest) *CalculationResult {
	return &CalculationResult{
		RequestID:   req.RequestID,
		AssetID:     req.AssetID,
		ColumnName:  req.ColumnName,
		UserID:      req.UserID,
		UserName:    req.UserName,
		CompletedAt: time.Now().UTC(),
	}
}

// Failed reports whether the result carries a computation error.
func (r *CalculationResult) Failed() bool { return r.Error != "" }

// Text renders the human-readable notification message for this result.
func (r *CalculationResult) Text() string {
	return fmt.Sprintf("The average for column %s is %g", r.ColumnName, r.Average)
}

// EncodeRequest serializes a request for the broker wire.
func EncodeRequest(req *CalculationRequest) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("message: encode request: %w", err)
	}
	return data, nil
}

// DecodeRequest deserializes a request from the broker wire. A missing
// RequestID is backfilled so correlation always holds downstream.
func DecodeRequest(data []byte) (*CalculationRequest, error) {
	var req CalculationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("message: decode request: %w", err)
	}
	if req.RequestID.IsNil() {
		req.RequestID = id.NewRequestID()
	}
	return &req, nil
}

// EncodeResult serializes a result for the broker wire.
func EncodeResult(res *CalculationResult) ([]byte, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("message: encode result: %w", err)
	}
	return data, nil
}

// DecodeResult deserializes a result from the broker wire.
func DecodeResult(data []byte) (*CalculationResult, error) {
	var res CalculationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("message: decode result: %w", err)
	}
	return &res, nil
}

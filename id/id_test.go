package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/calcq/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"RequestID", id.NewRequestID, "req_"},
		{"ResultID", id.NewResultID, "res_"},
		{"NotificationID", id.NewNotificationID, "ntf_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := id.NewRequestID()

	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Fatalf("round trip mismatch: %q != %q", parsed.String(), orig.String())
	}
	if parsed.Prefix() != id.PrefixRequest {
		t.Fatalf("expected prefix %q, got %q", id.PrefixRequest, parsed.Prefix())
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestParseWithPrefix_Mismatch(t *testing.T) {
	reqID := id.NewRequestID()
	if _, err := id.ParseNotificationID(reqID.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero value should be nil")
	}
	if i.String() != "" {
		t.Fatalf("nil ID should stringify empty, got %q", i.String())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := id.NewNotificationID()

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var back id.ID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.String() != orig.String() {
		t.Fatalf("JSON round trip mismatch: %q != %q", back.String(), orig.String())
	}
}

func TestScanValue(t *testing.T) {
	orig := id.NewWorkerID()

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var back id.ID
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if back.String() != orig.String() {
		t.Fatalf("Scan round trip mismatch: %q != %q", back.String(), orig.String())
	}

	var nilID id.ID
	if err := nilID.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !nilID.IsNil() {
		t.Fatal("Scan(nil) should produce the Nil ID")
	}
}

package message

import (
	"strings"
	"testing"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest("asset-1", "Strength", "user-1", "alice")

	if req.RequestID.IsNil() {
		t.Fatal("expected a generated RequestID")
	}
	if req.EnqueuedAt.IsZero() {
		t.Fatal("expected EnqueuedAt to be stamped")
	}
	if req.AssetID != "asset-1" || req.ColumnName != "Strength" {
		t.Fatalf("unexpected request fields: %+v", req)
	}
}

func TestNewResult_Correlation(t *testing.T) {
	req := NewRequest("asset-1", "Strength", "user-1", "alice")
	res := NewResult(req)

	if res.RequestID != req.RequestID {
		t.Fatal("result must correlate 1:1 with the originating request")
	}
	if res.AssetID != req.AssetID || res.ColumnName != req.ColumnName {
		t.Fatal("result must copy asset and column from the request")
	}
	if res.UserID != req.UserID || res.UserName != req.UserName {
		t.Fatal("result must copy delivery targeting from the request")
	}
	if res.CompletedAt.IsZero() {
		t.Fatal("expected CompletedAt to be stamped")
	}
	if res.Failed() {
		t.Fatal("fresh result should not carry an error")
	}
}

func TestRequestWire_BackfillsID(t *testing.T) {
	// A producer that never set requestId still yields a correlatable request.
	req, err := DecodeRequest([]byte(`{"assetId":"a","columnName":"Strength"}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.RequestID.IsNil() {
		t.Fatal("expected DecodeRequest to backfill a RequestID")
	}
}

func TestRequestWire_RoundTrip(t *testing.T) {
	orig := NewRequest("asset-9", "Strength", "user-9", "bob")

	data, err := EncodeRequest(orig)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if !strings.Contains(string(data), `"columnName":"Strength"`) {
		t.Fatalf("unexpected wire format: %s", data)
	}

	back, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if back.RequestID != orig.RequestID || back.AssetID != orig.AssetID {
		t.Fatalf("round trip mismatch: %+v != %+v", back, orig)
	}
}

func TestDecodeRequest_Garbage(t *testing.T) {
	if _, err := DecodeRequest([]byte("not json")); err == nil {
		t.Fatal("expected decode error for garbage payload")
	}
}

func TestResultWire_ErrorOmitted(t *testing.T) {
	res := NewResult(NewRequest("a", "Strength", "", ""))
	res.Average = 20

	data, err := EncodeResult(res)
	if err != nil {
		t.Fatalf("EncodeResult: %v", err)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Fatalf("empty error should be omitted from the wire: %s", data)
	}

	back, err := DecodeResult(data)
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if back.Average != 20 || back.Failed() {
		t.Fatalf("unexpected decoded result: %+v", back)
	}
}

func TestResultText(t *testing.T) {
	res := NewResult(NewRequest("a", "Strength", "", ""))
	res.Average = 20

	if got := res.Text(); got != "The average for column Strength is 20" {
		t.Fatalf("unexpected message text: %q", got)
	}
}

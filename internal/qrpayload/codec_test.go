package qrpayload

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance-api/internal/geo"
)

func TestEncodeDecodeSelfContainedRoundTrip(t *testing.T) {
	original := Payload{
		Kind:           KindSelfContained,
		Token:          "b7f1c2aa",
		ExpiresAt:      time.UnixMilli(1766000000000).UTC(),
		IssuerIdentity: "teacher@classtrack.example",
		Anchor:         &geo.Point{Lat: 12.9716, Lng: 77.5946},
	}

	raw, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if raw != "b7f1c2aa|1766000000000|teacher@classtrack.example|12.9716|77.5946" {
		t.Fatalf("unexpected wire form: %s", raw)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.Kind != KindSelfContained {
		t.Fatalf("unexpected kind %q", decoded.Kind)
	}
	if decoded.Token != original.Token || decoded.IssuerIdentity != original.IssuerIdentity {
		t.Fatalf("decoded fields differ: %+v", decoded)
	}
	if !decoded.ExpiresAt.Equal(original.ExpiresAt) {
		t.Fatalf("expiry differs: %v vs %v", decoded.ExpiresAt, original.ExpiresAt)
	}
	if decoded.Anchor == nil || decoded.Anchor.Lat != 12.9716 || decoded.Anchor.Lng != 77.5946 {
		t.Fatalf("anchor differs: %+v", decoded.Anchor)
	}
}

func TestEncodeDecodeStaticAnchorVariant(t *testing.T) {
	original := Payload{
		Kind:           KindSelfContained,
		Token:          "tok-1",
		ExpiresAt:      time.UnixMilli(1766000000000).UTC(),
		IssuerIdentity: "teacher@classtrack.example",
	}

	raw, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if raw != "tok-1|1766000000000|teacher@classtrack.example" {
		t.Fatalf("unexpected wire form: %s", raw)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.Anchor != nil {
		t.Fatalf("static variant should carry no anchor, got %+v", decoded.Anchor)
	}
}

func TestEncodeDecodeSessionRefRoundTrip(t *testing.T) {
	id := uuid.New()
	original := Payload{
		Kind:      KindSessionRef,
		SessionID: id,
		EmittedAt: time.UnixMilli(1766000012345).UTC(),
		Nonce:     "481265",
	}

	raw, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.Kind != KindSessionRef {
		t.Fatalf("unexpected kind %q", decoded.Kind)
	}
	if decoded.SessionID != id {
		t.Fatalf("session id differs: %s vs %s", decoded.SessionID, id)
	}
	if !decoded.EmittedAt.Equal(original.EmittedAt) {
		t.Fatalf("emission time differs: %v vs %v", decoded.EmittedAt, original.EmittedAt)
	}
	if decoded.Nonce != "481265" {
		t.Fatalf("nonce differs: %q", decoded.Nonce)
	}
}

func TestDecodeRejectsWrongFieldCount(t *testing.T) {
	cases := []string{
		"only|two",
		"a|b|c|d",
		"a|b|c|d|e|f",
		"",
		"   ",
	}
	for _, raw := range cases {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestDecodeRejectsUnparsableNumbers(t *testing.T) {
	cases := []string{
		"tok|not-a-number|teacher@x",
		"tok|1766000000000|teacher@x|abc|77.59",
		"tok|1766000000000|teacher@x|12.97|east",
		"tok|-5|teacher@x",
		"tok|1766000000000|teacher@x|95.0|77.59",
	}
	for _, raw := range cases {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestDecodeRejectsBadSessionRef(t *testing.T) {
	cases := []string{
		`{"session_id":"not-a-uuid","t":1766000000000}`,
		`{"session_id":"` + uuid.NewString() + `"}`,
		`{"session_id":`,
	}
	for _, raw := range cases {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestEncodeRejectsDelimiterInFields(t *testing.T) {
	_, err := Encode(Payload{
		Kind:           KindSelfContained,
		Token:          "bad|token",
		ExpiresAt:      time.UnixMilli(1766000000000),
		IssuerIdentity: "teacher@x",
	})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

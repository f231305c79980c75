// Package qrpayload encodes and decodes the string carried by the scannable
// artifact. The codec is pure (no clock, no network, no store lookups):
// decoding either recovers every field of a known shape or fails.
package qrpayload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance-api/internal/geo"
)

// ErrMalformed covers every decode failure: unknown shape, wrong field
// count, or a field that does not parse.
var ErrMalformed = errors.New("qrpayload: malformed payload")

type Kind string

const (
	// KindSelfContained payloads carry everything needed to verify them:
	// token, expiry, issuer identity and (optionally) the anchor.
	KindSelfContained Kind = "self-contained"
	// KindSessionRef payloads name a live session; anchor and expiry are
	// resolved by looking the session up. Rotation re-emits them with a
	// fresh timestamp and nonce.
	KindSessionRef Kind = "session-ref"
)

// Payload is the tagged union of the two wire shapes. Fields outside the
// active variant are zero.
type Payload struct {
	Kind Kind

	// Self-contained variant.
	Token          string
	ExpiresAt      time.Time
	IssuerIdentity string
	Anchor         *geo.Point

	// Session-reference variant.
	SessionID uuid.UUID
	EmittedAt time.Time
	Nonce     string
}

// Format names for the two wire shapes, shared by configuration and the
// issuer service so their switches cannot drift.
const (
	FormatDelimited  = "delimited"
	FormatSessionRef = "session-ref"
)

const delimiter = "|"

type sessionRefJSON struct {
	SessionID string `json:"session_id"`
	T         int64  `json:"t"`
	N         string `json:"n,omitempty"`
}

// Encode serializes a payload into its canonical wire form.
//
// Self-contained payloads are pipe-delimited:
//
//	token|expiresAtEpochMillis|issuerIdentity|anchorLat|anchorLng
//
// or three fields when the deployment uses a static anchor. Session
// references are a compact JSON object so the issuer can re-emit them
// without growing the artifact.
func Encode(p Payload) (string, error) {
	switch p.Kind {
	case KindSelfContained:
		if p.Token == "" || p.IssuerIdentity == "" || p.ExpiresAt.IsZero() {
			return "", fmt.Errorf("%w: missing self-contained fields", ErrMalformed)
		}
		if strings.Contains(p.Token, delimiter) || strings.Contains(p.IssuerIdentity, delimiter) {
			return "", fmt.Errorf("%w: field contains delimiter", ErrMalformed)
		}
		fields := []string{
			p.Token,
			strconv.FormatInt(p.ExpiresAt.UnixMilli(), 10),
			p.IssuerIdentity,
		}
		if p.Anchor != nil {
			fields = append(fields,
				strconv.FormatFloat(p.Anchor.Lat, 'f', -1, 64),
				strconv.FormatFloat(p.Anchor.Lng, 'f', -1, 64),
			)
		}
		return strings.Join(fields, delimiter), nil

	case KindSessionRef:
		if p.SessionID == uuid.Nil || p.EmittedAt.IsZero() {
			return "", fmt.Errorf("%w: missing session-reference fields", ErrMalformed)
		}
		out, err := json.Marshal(sessionRefJSON{
			SessionID: p.SessionID.String(),
			T:         p.EmittedAt.UnixMilli(),
			N:         p.Nonce,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return "", fmt.Errorf("%w: unknown payload kind %q", ErrMalformed, p.Kind)
}

// Decode recovers a payload from its wire form. The shape is detected from
// the leading byte: JSON objects are session references, everything else is
// parsed as the delimited self-contained form.
func Decode(raw string) (Payload, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Payload{}, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	if strings.HasPrefix(trimmed, "{") {
		return decodeSessionRef(trimmed)
	}
	return decodeDelimited(trimmed)
}

func decodeSessionRef(raw string) (Payload, error) {
	var ref sessionRefJSON
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		return Payload{}, fmt.Errorf("%w: invalid json: %v", ErrMalformed, err)
	}
	id, err := uuid.Parse(ref.SessionID)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: session_id is not a UUID", ErrMalformed)
	}
	if ref.T <= 0 {
		return Payload{}, fmt.Errorf("%w: missing emission timestamp", ErrMalformed)
	}
	return Payload{
		Kind:      KindSessionRef,
		SessionID: id,
		EmittedAt: time.UnixMilli(ref.T).UTC(),
		Nonce:     ref.N,
	}, nil
}

func decodeDelimited(raw string) (Payload, error) {
	fields := strings.Split(raw, delimiter)
	if len(fields) != 3 && len(fields) != 5 {
		return Payload{}, fmt.Errorf("%w: expected 3 or 5 fields, got %d", ErrMalformed, len(fields))
	}
	if fields[0] == "" || fields[2] == "" {
		return Payload{}, fmt.Errorf("%w: empty token or issuer", ErrMalformed)
	}

	millis, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || millis <= 0 {
		return Payload{}, fmt.Errorf("%w: invalid expiry %q", ErrMalformed, fields[1])
	}

	p := Payload{
		Kind:           KindSelfContained,
		Token:          fields[0],
		ExpiresAt:      time.UnixMilli(millis).UTC(),
		IssuerIdentity: fields[2],
	}

	if len(fields) == 5 {
		lat, latErr := strconv.ParseFloat(fields[3], 64)
		lng, lngErr := strconv.ParseFloat(fields[4], 64)
		if latErr != nil || lngErr != nil {
			return Payload{}, fmt.Errorf("%w: invalid anchor coordinates", ErrMalformed)
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return Payload{}, fmt.Errorf("%w: anchor out of bounds", ErrMalformed)
		}
		p.Anchor = &geo.Point{Lat: lat, Lng: lng}
	}
	return p, nil
}

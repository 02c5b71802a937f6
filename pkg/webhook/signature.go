package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxClockSkew bounds the replay window. Events whose signature
// timestamp differs from the verifier's clock by more than this are
// rejected even when the MAC matches.
const MaxClockSkew = 5 * time.Minute

// SignatureHeader is the parsed form of the provider's signature header.
type SignatureHeader struct {
	Timestamp int64  // unix seconds from the ts/t pair
	MAC       string // hex-encoded HMAC-SHA256 from the h1/v1 pair
}

// ParseSignatureHeader splits a "ts=...;h1=..." header into its parts.
// Both ";" and "," are accepted as pair delimiters, and the ts/t and
// h1/v1 key aliases are recognized. Parsing fails closed: a missing or
// unparsable key yields an error, never a zero-value header.
func ParseSignatureHeader(header string) (SignatureHeader, error) {
	if header == "" {
		return SignatureHeader{}, ErrMissingSignature
	}

	pairs := strings.FieldsFunc(header, func(r rune) bool {
		return r == ';' || r == ','
	})

	kv := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		kv[k] = v
	}

	ts := kv["ts"]
	if ts == "" {
		ts = kv["t"]
	}
	mac := kv["h1"]
	if mac == "" {
		mac = kv["v1"]
	}
	if ts == "" || mac == "" {
		return SignatureHeader{}, fmt.Errorf("%w: missing ts or h1 pair", ErrMalformedHeader)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return SignatureHeader{}, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedHeader, ts)
	}

	return SignatureHeader{Timestamp: unix, MAC: mac}, nil
}

// Verify checks that payload was signed with secret at a time within
// MaxClockSkew of now. The expected MAC is
// HMAC-SHA256(secret, "<ts>:<payload>") and the comparison is
// constant-time; a MAC that is not valid hex counts as a mismatch.
func Verify(secret string, payload []byte, hdr SignatureHeader, now time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	skew := now.Sub(time.Unix(hdr.Timestamp, 0))
	if skew > MaxClockSkew || skew < -MaxClockSkew {
		return fmt.Errorf("%w: skew %v", ErrTimestampOutOfRange, skew)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:%s", hdr.Timestamp, payload)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(hdr.MAC)
	if err != nil {
		return ErrSignatureMismatch
	}
	if !hmac.Equal(expected, got) {
		return ErrSignatureMismatch
	}

	return nil
}

// VerifyHeader is a convenience wrapper combining ParseSignatureHeader
// and Verify for callers holding the raw header value.
func VerifyHeader(secret string, payload []byte, rawHeader string, now time.Time) error {
	hdr, err := ParseSignatureHeader(rawHeader)
	if err != nil {
		return err
	}
	return Verify(secret, payload, hdr, now)
}

// Sign produces a header value for the given payload and timestamp.
// It exists for tests and local tooling that need to emit deliveries
// indistinguishable from the provider's.
func Sign(secret string, payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:%s", at.Unix(), payload)
	return fmt.Sprintf("ts=%d;h1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

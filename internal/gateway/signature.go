package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSignatureInvalid = errors.New("webhook signature invalid")
)

// SignatureHeader is the HTTP header carrying the webhook signature.
const SignatureHeader = "Gateway-Signature"

// DefaultTolerance bounds how stale a signed timestamp may be before the
// delivery is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

// SignPayload produces the signature header value for a raw payload:
// "t=<unix>,v1=<hex hmac-sha256>" where the MAC covers "<unix>.<payload>".
// Used by tests and the simulation's stub provider.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature(payload, secret, ts))
}

// VerifySignature checks a signature header against the raw request body.
// The header may carry several v1 candidates (key rotation); any single match
// passes. Fails closed: a missing element, a MAC mismatch, or a timestamp
// outside the tolerance window all return ErrSignatureInvalid.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	if header == "" {
		return fmt.Errorf("%w: missing signature header", ErrSignatureInvalid)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	var ts int64 = -1
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: malformed timestamp", ErrSignatureInvalid)
			}
			ts = parsed
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}

	if ts < 0 || len(candidates) == 0 {
		return fmt.Errorf("%w: header missing timestamp or signature", ErrSignatureInvalid)
	}

	age := time.Since(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	expected := computeSignature(payload, secret, ts)
	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", ErrSignatureInvalid)
}

func computeSignature(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

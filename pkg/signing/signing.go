// Package signing implements the HMAC request-signing envelope shared by
// the agent HTTP surface and the controller's operator surface: a
// timestamp header bounding clock skew, and (when a secret is
// configured) a base64 HMAC-SHA256 signature over method, path, body and
// timestamp.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/cuemby/tugtainer/pkg/engineerr"
)

// Header names used on both sides of the envelope.
const (
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// Sign returns the base64-encoded HMAC-SHA256 signature for one request.
// path must begin with exactly one leading slash; body may be nil for
// requests without a body.
func Sign(method, path string, body []byte, ts int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonicalize(method, path, body, ts))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func canonicalize(method, path string, body []byte, ts int64) []byte {
	buf := make([]byte, 0, len(method)+len(path)+len(body)+20)
	buf = append(buf, method...)
	buf = append(buf, path...)
	buf = append(buf, body...)
	buf = append(buf, strconv.FormatInt(ts, 10)...)
	return buf
}

// Verify checks the timestamp against ttl and, when secret is non-empty,
// verifies the signature in constant time. headerSig is the raw
// X-Signature header value; it may be empty when secret is empty, per
// spec ("signature headers accepted missing" when no secret is
// configured on the peer).
func Verify(method, path string, body []byte, ts int64, secret, headerSig string, ttl time.Duration, now time.Time) error {
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > ttl {
		return engineerr.New(engineerr.KindUnauthorized, "timestamp outside allowed skew")
	}

	if secret == "" {
		return nil
	}

	want := Sign(method, path, body, ts, secret)
	if !hmac.Equal([]byte(want), []byte(headerSig)) {
		return engineerr.New(engineerr.KindUnauthorized, "signature mismatch")
	}
	return nil
}

package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	now := time.Now()
	ts := now.Unix()
	body := []byte(`{"all":true}`)

	sig := Sign("POST", "/container/list", body, ts, "s3cr3t")

	err := Verify("POST", "/container/list", body, ts, "s3cr3t", sig, 10*time.Second, now)
	require.NoError(t, err)
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	now := time.Now()
	ts := now.Add(-20 * time.Second).Unix()
	body := []byte(`{}`)

	sig := Sign("GET", "/public/health", body, ts, "s3cr3t")

	err := Verify("GET", "/public/health", body, ts, "s3cr3t", sig, 10*time.Second, now)
	assert.Error(t, err)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	now := time.Now()
	ts := now.Unix()

	err := Verify("GET", "/public/health", nil, ts, "s3cr3t", "bogus", 10*time.Second, now)
	assert.Error(t, err)
}

func TestVerifyAllowsMissingSignatureWhenNoSecret(t *testing.T) {
	now := time.Now()
	ts := now.Unix()

	err := Verify("GET", "/public/health", nil, ts, "", "", 10*time.Second, now)
	assert.NoError(t, err)
}

func TestVerifyStillBoundsTimestampWithoutSecret(t *testing.T) {
	now := time.Now()
	ts := now.Add(-1 * time.Hour).Unix()

	err := Verify("GET", "/public/health", nil, ts, "", "", 10*time.Second, now)
	assert.Error(t, err)
}

func TestSignDifferentBodyDifferentSignature(t *testing.T) {
	now := time.Now()
	ts := now.Unix()

	a := Sign("POST", "/container/create", []byte(`{"a":1}`), ts, "secret")
	b := Sign("POST", "/container/create", []byte(`{"a":2}`), ts, "secret")

	assert.NotEqual(t, a, b)
}

package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SignedURLSigner creates and validates signed download tokens. The token is
// an HMAC over the job id, the stored file path and the expiry, carried as
// separate query parameters so the URL stays readable.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Sign returns the download token and its expiry for the given job and file.
func (s *SignedURLSigner) Sign(jobID, relPath string) (string, int64, error) {
	if jobID == "" || relPath == "" {
		return "", 0, fmt.Errorf("jobID and relPath required")
	}
	if len(s.secret) == 0 {
		return "", 0, fmt.Errorf("signing secret missing")
	}
	expires := time.Now().Add(s.ttl).Unix()
	return s.compute(jobID, relPath, expires), expires, nil
}

// Verify checks a token against the job, file path and expiry it was issued
// for. The signature is checked before the clock so a tampered expiry cannot
// pass.
func (s *SignedURLSigner) Verify(jobID, relPath, token string, expires int64) error {
	if len(s.secret) == 0 {
		return fmt.Errorf("signing secret missing")
	}
	expected := s.compute(jobID, relPath, expires)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return fmt.Errorf("invalid token signature")
	}
	if time.Now().Unix() > expires {
		return fmt.Errorf("token expired")
	}
	return nil
}

func (s *SignedURLSigner) compute(jobID, relPath string, expires int64) string {
	payload := fmt.Sprintf("%s|%s|%d", jobID, relPath, expires)
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

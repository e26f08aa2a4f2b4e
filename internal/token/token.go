// Package token issues contract verification tokens and content hashes.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
)

const prefix = "MR3X"

var (
	kindPattern  = regexp.MustCompile(`^[A-Z]{2,8}$`)
	tokenPattern = regexp.MustCompile(`^MR3X-[A-Z]{2,8}-\d{4}-\d{5}-\d{5}$`)
	fiveDigits   = big.NewInt(100000)
)

// Generate returns MR3X-<KIND>-<YEAR>-<NNNNN>-<NNNNN>.
func Generate(kind string, now time.Time) (string, error) {
	kind = strings.ToUpper(strings.TrimSpace(kind))
	if !kindPattern.MatchString(kind) {
		return "", fmt.Errorf("invalid token kind %q", kind)
	}
	a, err := rand.Int(rand.Reader, fiveDigits)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	b, err := rand.Int(rand.Reader, fiveDigits)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return fmt.Sprintf("%s-%s-%04d-%05d-%05d", prefix, kind, now.Year(), a.Int64(), b.Int64()), nil
}

func Valid(token string) bool {
	return tokenPattern.MatchString(token)
}

// ContentHash is the SHA-256 of the canonical JSON of data followed by the
// requesting IP and the generation instant. It records a generation event,
// so the same data hashed at another instant yields a different digest.
func ContentHash(data any, ip string, at time.Time) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal hash input: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize hash input: %w", err)
	}
	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte(ip))
	h.Write([]byte(at.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Digest is the lowercase hex SHA-256 of s.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// VerifyContentHash recomputes the digest from the stored ip and instant.
func VerifyContentHash(expected string, data any, ip string, at time.Time) (bool, error) {
	actual, err := ContentHash(data, ip, at)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(expected)), []byte(actual)) == 1, nil
}

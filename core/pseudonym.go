package core

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// PseudoKeyEnv is the environment variable holding the pseudonymization key
const PseudoKeyEnv = "FIELDVEIL_PSEUDO_KEY"

// ErrMissingKey means no pseudonymization key is configured. There is no
// built-in fallback key: a default would silently produce output that looks
// pseudonymized but is reproducible by anyone with the source.
var ErrMissingKey = errors.New("pseudonymization key is not configured")

// KeySource defines where the pseudonymization key is loaded from
type KeySource string

const (
	// KeySourceEnv retrieves the key from an environment variable
	KeySourceEnv KeySource = "env"

	// KeySourceFile retrieves the key from a file
	KeySourceFile KeySource = "file"
)

// KeyConfig specifies how to load the pseudonymization key
type KeyConfig struct {
	// Key source (env, file). Empty means env.
	Source KeySource

	// Environment variable name when Source is env. Empty means
	// PseudoKeyEnv.
	EnvVar string

	// Key file path when Source is file
	Path string
}

// ssnShaped matches 9-digit grouped numbers as they appear in free text,
// with or without separators
var ssnShaped = regexp.MustCompile(`\b\d{3}[ -]?\d{2}[ -]?\d{4}\b`)

// Pseudonymizer replaces the digits of identifier-shaped values with a
// keyed deterministic stream. The same value under the same key always maps
// to the same output, so joins across documents keep working; without the
// key the mapping is not recoverable, and there is no reverse mapping at
// all. Non-digit characters (dashes, spaces, letters) stay where they are,
// so the output keeps the exact shape and length of the input.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer loads the key per the config and returns a ready engine.
// A missing or empty key is a hard configuration error.
func NewPseudonymizer(cfg KeyConfig) (*Pseudonymizer, error) {
	key, err := loadKey(cfg)
	if err != nil {
		return nil, err
	}
	return &Pseudonymizer{key: key}, nil
}

// NewPseudonymizerWithKey wraps an already-obtained key, for callers that
// manage key material themselves
func NewPseudonymizerWithKey(key []byte) (*Pseudonymizer, error) {
	if len(bytes.TrimSpace(key)) == 0 {
		return nil, ErrMissingKey
	}
	return &Pseudonymizer{key: key}, nil
}

// loadKey resolves key material from the configured source. The key is
// returned to the engine and nowhere else; it must never reach logs or
// audit events.
func loadKey(cfg KeyConfig) ([]byte, error) {
	switch cfg.Source {
	case KeySourceFile:
		data, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		key := bytes.TrimSpace(data)
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: key file %s is empty", ErrMissingKey, cfg.Path)
		}
		return key, nil

	case KeySourceEnv, "":
		name := cfg.EnvVar
		if name == "" {
			name = PseudoKeyEnv
		}
		value := os.Getenv(name)
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: set %s", ErrMissingKey, name)
		}
		return []byte(value), nil

	default:
		return nil, fmt.Errorf("unsupported key source: %s", cfg.Source)
	}
}

// KeyFingerprint identifies the active key era for audit trails without
// exposing key material: the first 8 hex characters of SHA-256(key).
func (p *Pseudonymizer) KeyFingerprint() string {
	sum := sha256.Sum256(p.key)
	return hex.EncodeToString(sum[:])[:8]
}

// Pseudonymize maps the digits of value to new digits deterministically,
// preserving separators and optionally the last preserveLast digits. Works
// for "563 73 6000", "563-73-6000", "563736000" and anything else
// digit-bearing. Values with no digits are returned unchanged. The tail is
// preserved only when 0 < preserveLast < the digit count; asking to
// preserve the whole value would leak it, so in that case every digit is
// replaced.
func (p *Pseudonymizer) Pseudonymize(value string, preserveLast int) string {
	digits := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			digits = append(digits, value[i])
		}
	}
	if len(digits) == 0 {
		return value
	}

	keep := 0
	if preserveLast > 0 && preserveLast < len(digits) {
		keep = preserveLast
	}

	stream := digitStream(p.key, string(digits), len(digits)-keep)
	next := make([]byte, 0, len(digits))
	for _, d := range stream {
		next = append(next, '0'+d)
	}
	next = append(next, digits[len(digits)-keep:]...)

	// Reinsert into the original format, keeping separators and spacing
	out := []byte(value)
	j := 0
	for i := 0; i < len(out); i++ {
		if out[i] >= '0' && out[i] <= '9' {
			out[i] = next[j]
			j++
		}
	}
	return string(out)
}

// PseudonymizeMatches rewrites every match of re inside text through
// Pseudonymize. Used for identifier shapes embedded in free-form regions.
func (p *Pseudonymizer) PseudonymizeMatches(text string, re *regexp.Regexp, preserveLast int) string {
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return p.Pseudonymize(m, preserveLast)
	})
}

// PseudonymizeInline sweeps text for SSN-shaped numbers and pseudonymizes
// each one in place
func (p *Pseudonymizer) PseudonymizeInline(text string, preserveLast int) string {
	return p.PseudonymizeMatches(text, ssnShaped, preserveLast)
}

// digitStream derives n decimal digits from the key and seed. Block i is
// HMAC-SHA256(key, seed|i); every byte reduces mod 10 and blocks chain
// until n digits exist. The seed is the value's full original digit
// sequence, so "563-73-6000" and "563736000" map identically.
func digitStream(key []byte, seed string, n int) []byte {
	out := make([]byte, 0, n+sha256.Size)
	for block := 0; len(out) < n; block++ {
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte(seed + "|" + strconv.Itoa(block)))
		for _, b := range mac.Sum(nil) {
			out = append(out, b%10)
		}
	}
	return out[:n]
}

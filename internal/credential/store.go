// Package credential holds the process-wide API key and compares presented
// keys against it in constant time.
package credential

import (
	"crypto/subtle"
	"errors"
	"strings"
)

const redacted = "[REDACTED]"

// ErrMissing is returned by Load when no API key is configured. The server
// must not start without one.
var ErrMissing = errors.New("API_KEY environment variable not set")

// envKeys are consulted in order; MCP_API_KEY is the legacy name.
var envKeys = []string{"API_KEY", "MCP_API_KEY"}

// Store holds the expected credential. It is immutable after Load and safe
// for concurrent use.
type Store struct {
	expected []byte
}

// Load reads the expected credential through getenv. A missing, empty or
// whitespace-only value is ErrMissing.
func Load(getenv func(string) string) (*Store, error) {
	for _, key := range envKeys {
		v := getenv(key)
		if strings.TrimSpace(v) == "" {
			continue
		}
		return &Store{expected: []byte(v)}, nil
	}
	return nil, ErrMissing
}

// Matches reports whether the x-api-key header values carry the expected
// credential. No value is an empty credential; more than one value is
// malformed. Both are non-matches, never errors.
func (s *Store) Matches(values []string) bool {
	if s == nil || len(s.expected) == 0 {
		return false
	}
	var presented string
	switch len(values) {
	case 0:
	case 1:
		presented = values[0]
	default:
		return false
	}
	return Equal([]byte(presented), s.expected)
}

// Equal compares presented against expected. Unequal lengths are rejected
// before the constant-time comparison, so the length of the expected key is
// observable through timing; the position of the first mismatching byte is not.
func Equal(presented, expected []byte) bool {
	if len(presented) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(presented, expected) == 1
}

func (s *Store) String() string   { return redacted }
func (s *Store) GoString() string { return redacted }

func (s *Store) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

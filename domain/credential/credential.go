// Package credential provides API key value types and pure parsing functions.
// This package has NO dependencies on I/O or external packages.
package credential

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// KeyType identifies the key family.
type KeyType string

const (
	TypePublishable KeyType = "publishable"
	TypeSecret      KeyType = "secret"
)

// Environment identifies the key environment.
type Environment string

const (
	EnvTest Environment = "test"
	EnvLive Environment = "live"
)

// Family prefixes encode (type, environment) in the first characters of a
// raw key, Stripe-style. The set is closed: anything else is malformed.
const (
	PrefixPublishableTest = "pk_test_"
	PrefixPublishableLive = "pk_live_"
	PrefixSecretTest      = "sk_test_"
	PrefixSecretLive      = "sk_live_"
)

// LookupPrefixLen is the number of leading characters stored in clear for
// candidate scoping: the 8-char family prefix plus 8 random chars. The
// lookup prefix is not secret; the remainder is verified against the hash.
const LookupPrefixLen = 16

// Key represents an API key record (immutable value type).
type Key struct {
	ID            string
	AccountID     string
	Type          KeyType
	Environment   Environment
	Prefix        string // First LookupPrefixLen chars, for candidate lookup
	Hash          []byte // bcrypt hash of the full raw key
	Name          string
	Permissions   []string // Empty = all permissions
	RatePerMinute int      // 0 = use tier default
	RequestsToday int64
	Active        bool
	LastUsed      *time.Time
	CreatedAt     time.Time
}

// ParseBearer extracts the raw credential from an Authorization header
// value. The only recognized scheme is Bearer.
func ParseBearer(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, scheme))
	if raw == "" {
		return "", false
	}
	return raw, true
}

// ParseFamily derives (type, environment) from a raw key's family prefix.
// This is a PURE function.
func ParseFamily(raw string) (KeyType, Environment, bool) {
	switch {
	case strings.HasPrefix(raw, PrefixPublishableTest):
		return TypePublishable, EnvTest, true
	case strings.HasPrefix(raw, PrefixPublishableLive):
		return TypePublishable, EnvLive, true
	case strings.HasPrefix(raw, PrefixSecretTest):
		return TypeSecret, EnvTest, true
	case strings.HasPrefix(raw, PrefixSecretLive):
		return TypeSecret, EnvLive, true
	}
	return "", "", false
}

// LookupPrefix returns the non-secret candidate-scoping token of a raw key.
// Keys shorter than the minimum length have no valid lookup prefix.
func LookupPrefix(raw string) (string, bool) {
	if _, _, ok := ParseFamily(raw); !ok {
		return "", false
	}
	if len(raw) < MinRawLen {
		return "", false
	}
	return raw[:LookupPrefixLen], true
}

// MinRawLen is the minimum length of a well-formed raw key:
// 8-char family prefix + 64 hex chars of randomness.
const MinRawLen = 8 + 64

// FamilyPrefix returns the literal prefix for a (type, environment) pair.
func FamilyPrefix(t KeyType, env Environment) string {
	switch {
	case t == TypePublishable && env == EnvTest:
		return PrefixPublishableTest
	case t == TypePublishable && env == EnvLive:
		return PrefixPublishableLive
	case t == TypeSecret && env == EnvTest:
		return PrefixSecretTest
	default:
		return PrefixSecretLive
	}
}

// Generate creates a new API key for the given family.
// Returns the raw key (shown to the holder exactly once) and the Key record
// to store. The raw key is: family prefix + 64 hex chars. The record carries
// no hash; the caller derives it from the raw key through its Hasher before
// persisting.
func Generate(t KeyType, env Environment) (rawKey string, k Key) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}

	rawKey = FamilyPrefix(t, env) + hex.EncodeToString(randomBytes)

	idBytes := make([]byte, 8)
	if _, err := rand.Read(idBytes); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}

	k = Key{
		ID:          "key_" + hex.EncodeToString(idBytes),
		Type:        t,
		Environment: env,
		Prefix:      rawKey[:LookupPrefixLen],
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}

	return rawKey, k
}

// WithAccountID returns a copy of the key with the AccountID set.
func (k Key) WithAccountID(accountID string) Key {
	k.AccountID = accountID
	return k
}

// WithName returns a copy of the key with the Name set.
func (k Key) WithName(name string) Key {
	k.Name = name
	return k
}

// HasPermission checks if the key grants a given permission.
// Empty permissions means full access. This is a PURE function.
func (k Key) HasPermission(required string) bool {
	if len(k.Permissions) == 0 {
		return true
	}
	for _, p := range k.Permissions {
		if p == required || p == "*" {
			return true
		}
	}
	return false
}

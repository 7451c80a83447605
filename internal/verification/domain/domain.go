package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/corvusHold/courier/internal/platform/cache"
)

// Cache namespaces. Full Redis keys are "<namespace>:<bizKey>:<destination>"; external
// verifiers read the same keys, so these must not change.
const (
	NamespaceCode   = "verify_code"
	NamespaceRepeat = "verify_code_repeat"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

var (
	ErrCodeExpired   = errors.New("verification code expired or not issued")
	ErrCodeMismatch  = errors.New("verification code mismatch")
	ErrResendTooSoon = errors.New("verification code requested again within the cooldown window")
)

// Cache is the TTL key-value store backing verification codes.
type Cache interface {
	Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error
	Get(ctx context.Context, namespace, key string) (string, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	Delete(ctx context.Context, entries ...cache.Entry) error
}

// Service issues and validates one-time verification codes.
type Service interface {
	GenerateCode() string
	Issue(ctx context.Context, bizKey, destination, code string, validSeconds int) error
	CheckResend(ctx context.Context, bizKey, destination string) error
	Verify(ctx context.Context, bizKey, destination, supplied string) error
}

// CodeKey is the cache key (without namespace) for a (bizKey, destination) pair.
func CodeKey(bizKey, destination string) string {
	return bizKey + ":" + NormalizeDestination(destination)
}

// NormalizeDestination trims the destination and lower-cases email addresses,
// so a code issued to A@x.com verifies as a@x.com. Mobile numbers are only trimmed.
func NormalizeDestination(destination string) string {
	d := strings.TrimSpace(destination)
	if strings.Contains(d, "@") {
		return strings.ToLower(d)
	}
	return d
}

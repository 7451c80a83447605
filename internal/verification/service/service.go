package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	evdomain "github.com/corvusHold/courier/internal/events/domain"
	"github.com/corvusHold/courier/internal/metrics"
	"github.com/corvusHold/courier/internal/platform/cache"
	vdomain "github.com/corvusHold/courier/internal/verification/domain"
)

var _ vdomain.Service = (*Store)(nil)

// Store keeps verification codes in the cache with a separate short-lived repeat guard.
type Store struct {
	cache    vdomain.Cache
	guardTTL time.Duration
	pub      evdomain.Publisher
	log      zerolog.Logger
}

func New(c vdomain.Cache, guardTTL time.Duration, pub evdomain.Publisher, log zerolog.Logger) *Store {
	if guardTTL <= 0 {
		guardTTL = time.Minute
	}
	return &Store{cache: c, guardTTL: guardTTL, pub: pub, log: log}
}

// GenerateCode returns CodeLength ASCII digits.
func (s *Store) GenerateCode() string {
	var b strings.Builder
	b.Grow(vdomain.CodeLength)
	ten := big.NewInt(10)
	for i := 0; i < vdomain.CodeLength; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			// crypto/rand does not fail on supported platforms; keep the code well-formed anyway
			b.WriteByte('0')
			continue
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String()
}

func (s *Store) Issue(ctx context.Context, bizKey, destination, code string, validSeconds int) error {
	if validSeconds <= 0 {
		return fmt.Errorf("verification code validity must be positive, got %d", validSeconds)
	}
	key := vdomain.CodeKey(bizKey, destination)
	if err := s.cache.Set(ctx, vdomain.NamespaceCode, key, code, time.Duration(validSeconds)*time.Second); err != nil {
		return fmt.Errorf("cache verification code: %w", err)
	}
	if err := s.cache.Set(ctx, vdomain.NamespaceRepeat, key, "1", s.guardTTL); err != nil {
		return fmt.Errorf("cache repeat guard: %w", err)
	}
	s.log.Debug().Str("biz_key", bizKey).Str("destination", destination).Int("valid_seconds", validSeconds).Msg("verification code issued")
	return nil
}

func (s *Store) CheckResend(ctx context.Context, bizKey, destination string) error {
	exists, err := s.cache.Exists(ctx, vdomain.NamespaceRepeat, vdomain.CodeKey(bizKey, destination))
	if err != nil {
		return fmt.Errorf("check repeat guard: %w", err)
	}
	if exists {
		return vdomain.ErrResendTooSoon
	}
	return nil
}

func (s *Store) Verify(ctx context.Context, bizKey, destination, supplied string) (err error) {
	defer func() {
		switch {
		case err == nil:
			metrics.IncVerification("success")
		case errors.Is(err, vdomain.ErrCodeExpired):
			metrics.IncVerification("expired")
		case errors.Is(err, vdomain.ErrCodeMismatch):
			metrics.IncVerification("mismatch")
		default:
			metrics.IncVerification("error")
		}
	}()
	key := vdomain.CodeKey(bizKey, destination)
	cached, err := s.cache.Get(ctx, vdomain.NamespaceCode, key)
	if errors.Is(err, cache.ErrMiss) {
		return vdomain.ErrCodeExpired
	}
	if err != nil {
		return fmt.Errorf("load verification code: %w", err)
	}
	if !strings.EqualFold(cached, strings.TrimSpace(supplied)) {
		return vdomain.ErrCodeMismatch
	}
	if err := s.cache.Delete(ctx,
		cache.Entry{Namespace: vdomain.NamespaceCode, Key: key},
		cache.Entry{Namespace: vdomain.NamespaceRepeat, Key: key},
	); err != nil {
		return fmt.Errorf("consume verification code: %w", err)
	}
	if s.pub != nil {
		_ = s.pub.Publish(ctx, evdomain.Event{
			Type: "verification.code.verified",
			Meta: map[string]string{"biz_key": bizKey, "destination": destination},
			Time: time.Now(),
		})
	}
	return nil
}

package otp

import (
	"context"
	"errors"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/liminara/storefront/pkg/config"
	"github.com/liminara/storefront/pkg/enums"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
	"github.com/liminara/storefront/pkg/metrics"
	"github.com/liminara/storefront/pkg/security"
)

type codeStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Del(ctx context.Context, keys ...string) error
	OTPCodeKey(identifier string) string
	OTPAttemptsKey(identifier string) string
	OTPCooldownKey(identifier string) string
}

// Issued describes a passcode that was just sent.
type Issued struct {
	Channel   enums.OTPChannel `json:"channel"`
	ExpiresIn int              `json:"expiresIn"`
}

// ServiceParams groups dependencies for the passcode service.
type ServiceParams struct {
	Store    codeStore
	Sender   Sender
	Config   config.OTPConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
	Metrics  *metrics.Storefront
}

// Service issues and checks one-time passcodes. Only an argon2id hash of the
// code is kept, under a TTL; failed checks are counted against the pending
// code and exhausting them discards it.
type Service struct {
	store    codeStore
	sender   Sender
	cfg      config.OTPConfig
	password config.PasswordConfig
	logg     *logger.Logger
	metrics  *metrics.Storefront
}

// NewService validates dependencies and applies config fallbacks.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "otp store is required")
	}
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "otp sender is required")
	}
	cfg := params.Config
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		store:    params.Store,
		sender:   params.Sender,
		cfg:      cfg,
		password: params.Password,
		logg:     logg,
		metrics:  params.Metrics,
	}, nil
}

// NormalizeIdentifier trims the identifier and lowercases email addresses.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if enums.ChannelForIdentifier(identifier) == enums.OTPChannelEmail {
		return strings.ToLower(identifier)
	}
	return strings.ReplaceAll(identifier, " ", "")
}

// Request generates a fresh code for identifier, replacing any pending one.
func (s *Service) Request(ctx context.Context, identifier string) (*Issued, error) {
	identifier = NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identifier is required")
	}
	channel := enums.ChannelForIdentifier(identifier)

	if s.cfg.Resend > 0 {
		ok, err := s.store.SetNX(ctx, s.store.OTPCooldownKey(identifier), "1", s.cfg.Resend)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check otp cooldown")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "a code was sent recently, try again shortly")
		}
	}

	code, err := security.GenerateNumericCode(s.cfg.Length)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}
	hash, err := security.HashSecret(code, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash otp")
	}
	if err := s.store.Set(ctx, s.store.OTPCodeKey(identifier), hash, s.cfg.TTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp")
	}
	if err := s.store.Del(ctx, s.store.OTPAttemptsKey(identifier)); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "otp.reset_attempts_failed")
	}

	if err := s.sender.Send(ctx, channel, identifier, code); err != nil {
		_ = s.store.Del(context.WithoutCancel(ctx), s.store.OTPCodeKey(identifier), s.store.OTPCooldownKey(identifier))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver otp")
	}

	s.metrics.IncOTPRequested(channel.String())
	return &Issued{Channel: channel, ExpiresIn: int(s.cfg.TTL / time.Second)}, nil
}

// Verify consumes the pending code when it matches.
func (s *Service) Verify(ctx context.Context, identifier, code string) error {
	identifier = NormalizeIdentifier(identifier)
	code = strings.TrimSpace(code)
	if identifier == "" || code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "identifier and code are required")
	}

	codeKey := s.store.OTPCodeKey(identifier)
	attemptsKey := s.store.OTPAttemptsKey(identifier)

	hash, err := s.store.Get(ctx, codeKey)
	if errors.Is(err, redislib.Nil) {
		s.metrics.IncOTPVerified("expired")
		return pkgerrors.New(pkgerrors.CodeExpired, "code expired or was never requested")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}

	attempts, err := s.store.IncrWithTTL(ctx, attemptsKey, s.cfg.TTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count otp attempt")
	}
	if attempts > int64(s.cfg.MaxAttempts) {
		_ = s.store.Del(ctx, codeKey, attemptsKey)
		s.metrics.IncOTPVerified("locked")
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, request a new code")
	}

	ok, err := security.VerifySecret(code, hash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify otp")
	}
	if !ok {
		s.metrics.IncOTPVerified("invalid")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid code")
	}

	if err := s.store.Del(ctx, codeKey, attemptsKey); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "otp.consume_failed")
	}
	s.metrics.IncOTPVerified("ok")
	return nil
}

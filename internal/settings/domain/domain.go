package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service provides typed access to settings with tenant override of global values.
type Service interface {
	GetString(ctx context.Context, key string, tenantID *uuid.UUID, def string) (string, error)
	GetDuration(ctx context.Context, key string, tenantID *uuid.UUID, def time.Duration) (time.Duration, error)
	GetInt(ctx context.Context, key string, tenantID *uuid.UUID, def int) (int, error)
}

// Repository abstracts storage of app settings.
type Repository interface {
	// Get returns (value, found, err) for a key, preferring the tenant row over the global one.
	Get(ctx context.Context, key string, tenantID *uuid.UUID) (string, bool, error)
	// Upsert stores a key for an optional tenant.
	Upsert(ctx context.Context, key string, tenantID *uuid.UUID, value string, secret bool) error
}

// Email transport keys
const (
	KeyEmailProvider      = "email.provider" // values: smtp | brevo
	KeyEmailSubjectPrefix = "email.subject_prefix"
	KeySMTPHost           = "email.smtp.host"
	KeySMTPPort           = "email.smtp.port"
	KeySMTPUsername       = "email.smtp.username"
	KeySMTPPassword       = "email.smtp.password"
	KeySMTPFrom           = "email.smtp.from"
	KeyBrevoAPIKey        = "email.brevo.api_key"
	KeyBrevoSender        = "email.brevo.sender"
)

// SMS transport keys
const (
	KeySMSProvider      = "sms.provider" // values: gateway | twilio
	KeySMSGatewayURL    = "sms.gateway.url"
	KeySMSGatewayAPIKey = "sms.gateway.api_key"
	KeySMSGatewaySender = "sms.gateway.sender"
	KeyTwilioAccountSID = "sms.twilio.account_sid"
	KeyTwilioAuthToken  = "sms.twilio.auth_token"
	KeyTwilioFrom       = "sms.twilio.from"
)

// Verification and send-endpoint keys. Windows are Go duration strings, limits are integers.
const (
	KeyVerifyCodeTTL  = "verify.code_ttl"
	KeyRLSendLimit    = "messages.ratelimit.send.limit"
	KeyRLSendWindow   = "messages.ratelimit.send.window"
	KeyRLVerifyLimit  = "verify.ratelimit.limit"
	KeyRLVerifyWindow = "verify.ratelimit.window"
)

// Secret reports whether the key holds a credential that must be masked on read.
func Secret(key string) bool {
	switch key {
	case KeySMTPPassword, KeyBrevoAPIKey, KeySMSGatewayAPIKey, KeyTwilioAuthToken:
		return true
	}
	return false
}

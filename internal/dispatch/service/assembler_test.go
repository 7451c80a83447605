package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/corvusHold/courier/internal/dispatch/domain"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
)

type mapSettings map[string]string

func (s mapSettings) GetString(_ context.Context, key string, _ *uuid.UUID, def string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return def, nil
}

func (s mapSettings) GetDuration(_ context.Context, key string, _ *uuid.UUID, def time.Duration) (time.Duration, error) {
	if v, ok := s[key]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return def, nil
		}
		return d, nil
	}
	return def, nil
}

func (s mapSettings) GetInt(_ context.Context, _ string, _ *uuid.UUID, def int) (int, error) {
	return def, nil
}

type fixedCodes struct{ code string }

func (f fixedCodes) GenerateCode() string                                   { return f.code }
func (fixedCodes) CheckResend(context.Context, string, string) error        { return nil }
func (fixedCodes) Issue(context.Context, string, string, string, int) error { return nil }

func TestAssembler_ValidSecondsOrder(t *testing.T) {
	ctx := context.Background()
	a := NewAssembler(fixedCodes{}, mapSettings{sdomain.KeyVerifyCodeTTL: "10m"}, 5*time.Minute, "")

	assert.Equal(t, 30, a.ValidSeconds(ctx, &domain.Message{ValidSeconds: 30}, domain.Template{CodeValiditySeconds: 90}))
	assert.Equal(t, 90, a.ValidSeconds(ctx, &domain.Message{}, domain.Template{CodeValiditySeconds: 90}))
	assert.Equal(t, 600, a.ValidSeconds(ctx, &domain.Message{}, domain.Template{}))

	bare := NewAssembler(fixedCodes{}, nil, 0, "")
	assert.Equal(t, 300, bare.ValidSeconds(ctx, &domain.Message{}, domain.Template{}))
}

func TestAssembler_Verification(t *testing.T) {
	a := NewAssembler(fixedCodes{code: "123456"}, nil, 5*time.Minute, "")
	m := &domain.Message{Channel: domain.ChannelSMS, VerificationCode: true, TemplateCode: "LOGIN"}
	a.Assemble(context.Background(), domain.ChannelConfig{}, domain.Template{CodeValiditySeconds: 61}, m)

	assert.Equal(t, "123456", m.Code)
	assert.Equal(t, 61, m.ValidSeconds)
	assert.Equal(t, "123456", m.Params[ParamCode])
	assert.Equal(t, "2", m.Params[ParamValidMinutes])

	// a caller-supplied code is kept
	m = &domain.Message{Channel: domain.ChannelSMS, VerificationCode: true, Code: "000111"}
	a.Assemble(context.Background(), domain.ChannelConfig{}, domain.Template{}, m)
	assert.Equal(t, "000111", m.Params[ParamCode])
	assert.Equal(t, "5", m.Params[ParamValidMinutes])
}

func TestAssembler_EmailSubject(t *testing.T) {
	ctx := context.Background()
	tpl := domain.Template{Subject: "Welcome"}

	a := NewAssembler(fixedCodes{}, nil, 0, "[Env] ")
	m := &domain.Message{Channel: domain.ChannelEmail}
	a.Assemble(ctx, domain.ChannelConfig{From: "ops@x.com"}, tpl, m)
	assert.Equal(t, "[Env] Welcome", m.Subject)
	assert.Equal(t, "ops@x.com", m.From)

	// running again does not stack the prefix
	a.Assemble(ctx, domain.ChannelConfig{}, tpl, m)
	assert.Equal(t, "[Env] Welcome", m.Subject)

	m = &domain.Message{Channel: domain.ChannelEmail, Subject: "Hi", From: "me@x.com"}
	a.Assemble(ctx, domain.ChannelConfig{SubjectPrefix: "[Cfg] ", From: "ops@x.com"}, tpl, m)
	assert.Equal(t, "[Cfg] Hi", m.Subject)
	assert.Equal(t, "me@x.com", m.From)

	withSetting := NewAssembler(fixedCodes{}, mapSettings{sdomain.KeyEmailSubjectPrefix: "[Tenant] "}, 0, "[Env] ")
	m = &domain.Message{Channel: domain.ChannelEmail, Subject: "Hi"}
	withSetting.Assemble(ctx, domain.ChannelConfig{}, tpl, m)
	assert.Equal(t, "[Tenant] Hi", m.Subject)

	sms := &domain.Message{Channel: domain.ChannelSMS}
	a.Assemble(ctx, domain.ChannelConfig{}, tpl, sms)
	assert.Empty(t, sms.Subject)
}

func TestAssembler_BatchAndTestChannel(t *testing.T) {
	ctx := context.Background()
	a := NewAssembler(fixedCodes{}, nil, 0, "")

	m := &domain.Message{Channel: domain.ChannelEmail, Batch: true, Body: "b"}
	a.Assemble(ctx, domain.ChannelConfig{}, domain.Template{}, m)
	assert.True(t, m.Batch)

	m = &domain.Message{Channel: domain.ChannelEmail, Batch: true, TemplateCode: "X"}
	a.Assemble(ctx, domain.ChannelConfig{}, domain.Template{}, m)
	assert.False(t, m.Batch)

	m = &domain.Message{Channel: domain.ChannelEmail, Batch: true, Body: "b", Receive: &domain.Receive{ObjectType: domain.ObjectAll}}
	a.Assemble(ctx, domain.ChannelConfig{}, domain.Template{}, m)
	assert.False(t, m.Batch)

	m = &domain.Message{Channel: domain.ChannelEmail, Test: true, Body: "b"}
	a.Assemble(ctx, domain.ChannelConfig{Name: "backup"}, domain.Template{}, m)
	assert.Equal(t, "backup", m.Params[ParamTestChannel])
}

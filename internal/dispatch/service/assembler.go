package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/corvusHold/courier/internal/dispatch/domain"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
)

// Parameters injected into the template by the assembler.
const (
	ParamTestChannel  = "test_channel"
	ParamCode         = "code"
	ParamValidMinutes = "valid_minutes"
)

// Assembler fills in the parts of a unit the caller may leave out.
type Assembler struct {
	codes         domain.CodeStore
	settings      sdomain.Service
	defaultTTL    time.Duration
	subjectPrefix string
}

func NewAssembler(codes domain.CodeStore, settings sdomain.Service, defaultTTL time.Duration, subjectPrefix string) *Assembler {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Assembler{codes: codes, settings: settings, defaultTTL: defaultTTL, subjectPrefix: subjectPrefix}
}

// ValidSeconds picks the code validity: caller value, then template default, then the
// tenant's verify.code_ttl setting, then the configured default.
func (a *Assembler) ValidSeconds(ctx context.Context, m *domain.Message, tpl domain.Template) int {
	if m.ValidSeconds > 0 {
		return m.ValidSeconds
	}
	if tpl.CodeValiditySeconds > 0 {
		return tpl.CodeValiditySeconds
	}
	ttl := a.defaultTTL
	if a.settings != nil {
		tid := m.TenantID
		if d, err := a.settings.GetDuration(ctx, sdomain.KeyVerifyCodeTTL, &tid, a.defaultTTL); err == nil && d > 0 {
			ttl = d
		}
	}
	return int(ttl / time.Second)
}

func (a *Assembler) prefix(ctx context.Context, cfg domain.ChannelConfig, m *domain.Message) string {
	if cfg.SubjectPrefix != "" {
		return cfg.SubjectPrefix
	}
	if a.settings == nil {
		return a.subjectPrefix
	}
	tid := m.TenantID
	p, _ := a.settings.GetString(ctx, sdomain.KeyEmailSubjectPrefix, &tid, a.subjectPrefix)
	return p
}

// Assemble mutates m in place. Running it again on the same unit is a no-op apart from
// re-deriving the injected parameters.
func (a *Assembler) Assemble(ctx context.Context, cfg domain.ChannelConfig, tpl domain.Template, m *domain.Message) {
	if m.Params == nil {
		m.Params = map[string]string{}
	}
	if m.From == "" {
		m.From = cfg.From
	}
	if m.Channel == domain.ChannelEmail {
		if m.Subject == "" {
			m.Subject = tpl.Subject
		}
		if p := a.prefix(ctx, cfg, m); p != "" && !strings.HasPrefix(m.Subject, p) {
			m.Subject = p + m.Subject
		}
	}
	if m.Test {
		m.Params[ParamTestChannel] = cfg.Name
	}
	if m.VerificationCode {
		if m.Code == "" {
			m.Code = a.codes.GenerateCode()
		}
		m.ValidSeconds = a.ValidSeconds(ctx, m, tpl)
		m.Params[ParamCode] = m.Code
		m.Params[ParamValidMinutes] = strconv.Itoa((m.ValidSeconds + 59) / 60)
	}
	if m.TemplateCode != "" || (!m.Receive.Empty() && m.Receive.ObjectType == domain.ObjectAll) {
		m.Batch = false
	}
}

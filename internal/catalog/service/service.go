package service

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"

	cdomain "github.com/corvusHold/courier/internal/catalog/domain"
	ddomain "github.com/corvusHold/courier/internal/dispatch/domain"
)

var providers = map[ddomain.ChannelType][]string{
	ddomain.ChannelEmail: {"", "smtp", "brevo"},
	ddomain.ChannelSMS:   {"", "gateway", "twilio"},
}

type service struct {
	repo cdomain.Repository
}

func New(repo cdomain.Repository) cdomain.Service {
	return &service{repo: repo}
}

func normalize(opts cdomain.ListOptions) (cdomain.ListOptions, int, int) {
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 20
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Enabled != -1 && opts.Enabled != 0 && opts.Enabled != 1 {
		opts.Enabled = -1
	}
	opts.Query = strings.TrimSpace(opts.Query)
	return opts, opts.PageSize, (opts.Page - 1) * opts.PageSize
}

func page[T any](items []T, total int64, opts cdomain.ListOptions) cdomain.Page[T] {
	pages := int(total) / opts.PageSize
	if int(total)%opts.PageSize != 0 {
		pages++
	}
	return cdomain.Page[T]{Items: items, Total: total, Page: opts.Page, PageSize: opts.PageSize, TotalPages: pages}
}

func validProvider(ch ddomain.ChannelType, p string) bool {
	for _, v := range providers[ch] {
		if v == p {
			return true
		}
	}
	return false
}

func (s *service) CreateConfig(ctx context.Context, c ddomain.ChannelConfig) (ddomain.ChannelConfig, error) {
	ch, ok := ddomain.ParseChannel(string(c.Channel))
	if !ok {
		return c, ddomain.Invalid("channel", "must be email or sms")
	}
	c.Channel = ch
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return c, ddomain.Invalid("name", "is required")
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if !validProvider(ch, c.Provider) {
		return c, ddomain.Invalid("provider", fmt.Sprintf("unsupported %s provider %q", ch, c.Provider))
	}
	if c.Settings == nil {
		c.Settings = map[string]string{}
	}
	c.ID = uuid.New()
	if err := s.repo.CreateConfig(ctx, c); err != nil {
		return c, err
	}
	return s.repo.GetConfig(ctx, c.TenantID, c.ID)
}

func (s *service) GetConfig(ctx context.Context, tenantID, id uuid.UUID) (ddomain.ChannelConfig, error) {
	return s.repo.GetConfig(ctx, tenantID, id)
}

func (s *service) ListConfigs(ctx context.Context, tenantID uuid.UUID, opts cdomain.ListOptions) (cdomain.Page[ddomain.ChannelConfig], error) {
	opts, limit, offset := normalize(opts)
	items, total, err := s.repo.ListConfigs(ctx, tenantID, opts, limit, offset)
	if err != nil {
		return cdomain.Page[ddomain.ChannelConfig]{}, err
	}
	return page(items, total, opts), nil
}

func (s *service) SetConfigEnabled(ctx context.Context, tenantID, id uuid.UUID, enabled bool) error {
	return s.repo.SetConfigEnabled(ctx, tenantID, id, enabled)
}

// CreateTemplate rejects content that would fail to parse at send time.
func (s *service) CreateTemplate(ctx context.Context, t ddomain.Template) (ddomain.Template, error) {
	ch, ok := ddomain.ParseChannel(string(t.Channel))
	if !ok {
		return t, ddomain.Invalid("channel", "must be email or sms")
	}
	t.Channel = ch
	t.Code = strings.TrimSpace(t.Code)
	if t.Code == "" {
		return t, ddomain.Invalid("code", "is required")
	}
	if strings.TrimSpace(t.Content) == "" {
		return t, ddomain.Invalid("content", "is required")
	}
	if t.CodeValiditySeconds < 0 {
		return t, ddomain.Invalid("code_validity_seconds", "must not be negative")
	}
	for name, text := range map[string]string{"content": t.Content, "subject": t.Subject} {
		if _, err := template.New(t.Code).Parse(text); err != nil {
			return t, ddomain.Invalid(name, err.Error())
		}
	}
	t.ID = uuid.New()
	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return t, err
	}
	return s.repo.GetTemplate(ctx, t.TenantID, t.ID)
}

func (s *service) GetTemplate(ctx context.Context, tenantID, id uuid.UUID) (ddomain.Template, error) {
	return s.repo.GetTemplate(ctx, tenantID, id)
}

func (s *service) ListTemplates(ctx context.Context, tenantID uuid.UUID, opts cdomain.ListOptions) (cdomain.Page[ddomain.Template], error) {
	opts, limit, offset := normalize(opts)
	items, total, err := s.repo.ListTemplates(ctx, tenantID, opts, limit, offset)
	if err != nil {
		return cdomain.Page[ddomain.Template]{}, err
	}
	return page(items, total, opts), nil
}

func (s *service) SetTemplateEnabled(ctx context.Context, tenantID, id uuid.UUID, enabled bool) error {
	return s.repo.SetTemplateEnabled(ctx, tenantID, id, enabled)
}

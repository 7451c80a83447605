package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvusHold/courier/internal/dispatch/domain"
	evdomain "github.com/corvusHold/courier/internal/events/domain"
	"github.com/corvusHold/courier/internal/metrics"
)

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Channels  []domain.Channel
	Configs   domain.ChannelConfigRepository
	Templates domain.TemplateRepository
	Resolver  *Resolver
	Assembler *Assembler
	Tracker   *Tracker
	Codes     domain.CodeStore
	Publisher evdomain.Publisher
	Logger    zerolog.Logger
	// PageSize is the resolver page size; zero means domain.DefaultPageSize.
	PageSize int
}

// Dispatcher runs one logical send for any channel: validation, channel and template
// resolution, recipient fan-out and the per-unit send.
type Dispatcher struct {
	channels  map[domain.ChannelType]domain.Channel
	configs   domain.ChannelConfigRepository
	templates domain.TemplateRepository
	resolver  *Resolver
	assembler *Assembler
	tracker   *Tracker
	codes     domain.CodeStore
	pub       evdomain.Publisher
	log       zerolog.Logger
	pageSize  int
	now       func() time.Time
}

func NewDispatcher(d Deps) *Dispatcher {
	ps := d.PageSize
	if ps <= 0 {
		ps = domain.DefaultPageSize
	}
	chs := make(map[domain.ChannelType]domain.Channel, len(d.Channels))
	for _, c := range d.Channels {
		chs[c.Type()] = c
	}
	return &Dispatcher{
		channels:  chs,
		configs:   d.Configs,
		templates: d.Templates,
		resolver:  d.Resolver,
		assembler: d.Assembler,
		tracker:   d.Tracker,
		codes:     d.Codes,
		pub:       d.Publisher,
		log:       d.Logger.With().Str("component", "dispatch").Logger(),
		pageSize:  ps,
		now:       time.Now,
	}
}

func cleanDestinations(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func (d *Dispatcher) validate(ctx context.Context, dc domain.DispatchContext, m *domain.Message) (domain.Channel, error) {
	if m == nil {
		return nil, domain.Invalid("message", "is required")
	}
	ch, ok := d.channels[m.Channel]
	if !ok {
		return nil, domain.Invalid("channel", fmt.Sprintf("unsupported channel %q", m.Channel))
	}
	if dc.Origin == domain.OriginScheduled && (dc.TenantID == uuid.Nil || dc.ActingUserID == uuid.Nil) {
		return nil, domain.Invalid("context", "scheduled sends require a tenant and an acting user")
	}
	dests := cleanDestinations(m.Destinations)
	if len(dests) == 0 && m.Receive.Empty() {
		return nil, domain.Invalid("destinations", "either destinations or a receive object type is required")
	}
	if len(dests) == 0 && !m.Receive.ObjectType.Valid() {
		return nil, domain.Invalid("receive.object_type", fmt.Sprintf("unknown receive object type %q", m.Receive.ObjectType))
	}
	if m.VerificationCode {
		if len(dests) == 0 {
			return nil, domain.Invalid("destinations", "a verification code needs at least one destination")
		}
		if strings.TrimSpace(m.BizKey) == "" {
			return nil, domain.Invalid("biz_key", "is required for verification codes")
		}
	}
	if strings.TrimSpace(m.TemplateCode) == "" && (m.VerificationCode || ch.RequiresTemplate() || m.Body == "") {
		return nil, domain.Invalid("template_code", "is required")
	}
	if m.Test && m.ChannelConfigID == nil {
		return nil, domain.Invalid("channel_config_id", "is required for channel tests")
	}
	if m.VerificationCode {
		for _, dest := range dests {
			if err := d.codes.CheckResend(ctx, m.BizKey, dest); err != nil {
				return nil, fmt.Errorf("%s: %w", dest, err)
			}
		}
	}
	return ch, nil
}

func (d *Dispatcher) channelConfig(ctx context.Context, tenantID uuid.UUID, m *domain.Message) (domain.ChannelConfig, error) {
	var (
		cfg domain.ChannelConfig
		err error
	)
	if m.Test {
		cfg, err = d.configs.GetByID(ctx, tenantID, *m.ChannelConfigID)
	} else {
		cfg, err = d.configs.Enabled(ctx, tenantID, m.Channel)
	}
	if err != nil {
		return cfg, err
	}
	if cfg.Channel != m.Channel {
		return cfg, domain.Invalid("channel_config_id", fmt.Sprintf("config %s is not a %s channel", cfg.ID, m.Channel))
	}
	return cfg, nil
}

func (d *Dispatcher) template(ctx context.Context, tenantID uuid.UUID, m *domain.Message) (domain.Template, error) {
	code := strings.TrimSpace(m.TemplateCode)
	if code == "" {
		return domain.Template{}, nil
	}
	tpl, err := d.templates.GetByCode(ctx, tenantID, m.Channel, code)
	if err != nil {
		return tpl, err
	}
	if !tpl.Enabled {
		return tpl, domain.Invalid("template_code", fmt.Sprintf("template %s is disabled", code))
	}
	if tpl.Channel != m.Channel {
		return tpl, domain.Invalid("template_code", fmt.Sprintf("template %s does not belong to the %s channel", code, m.Channel))
	}
	return tpl, nil
}

// Send dispatches m. Explicit destinations take precedence over the Receive fan-out.
//
// With OriginInteractive the first provider failure is returned as a *domain.DispatchFailure
// after its FAILURE row has been persisted. With OriginScheduled provider failures are
// recorded in the Report and the fan-out continues. Persistence errors always abort.
func (d *Dispatcher) Send(ctx context.Context, dc domain.DispatchContext, m *domain.Message) (domain.Report, error) {
	var report domain.Report
	ch, err := d.validate(ctx, dc, m)
	if err != nil {
		return report, err
	}
	if dc.TenantID != uuid.Nil {
		m.TenantID = dc.TenantID
	}
	if dc.ActingUserID != uuid.Nil {
		m.CreatedBy = dc.ActingUserID
	}
	cfg, err := d.channelConfig(ctx, m.TenantID, m)
	if err != nil {
		return report, err
	}
	tpl, err := d.template(ctx, m.TenantID, m)
	if err != nil {
		return report, err
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	dests := cleanDestinations(m.Destinations)
	if len(dests) > 0 {
		m.Destinations = dests
		f, err := d.sendUnit(ctx, ch, cfg, tpl, m)
		if err != nil {
			return report, err
		}
		report.Record(m, f)
		if f != nil && dc.Origin == domain.OriginInteractive {
			return report, f
		}
		return report, nil
	}

	for page := 0; ; page++ {
		addrs, err := d.resolver.Resolve(ctx, m.TenantID, ch.Address, m.Receive, page, d.pageSize)
		if errors.Is(err, domain.ErrResolutionGap) {
			metrics.IncResolutionGap(string(m.Receive.ObjectType))
			d.log.Warn().Str("object_type", string(m.Receive.ObjectType)).Str("tenant_id", m.TenantID.String()).
				Msg("no resolver for receive object type; nothing sent")
			return report, nil
		}
		if err != nil {
			return report, err
		}
		if len(addrs) == 0 {
			if page == 0 {
				d.log.Info().Str("object_type", string(m.Receive.ObjectType)).Str("tenant_id", m.TenantID.String()).
					Msg("no recipients resolved")
			}
			return report, nil
		}
		if page > 0 {
			m.Rekey()
		}
		m.Destinations = addrs
		f, err := d.sendUnit(ctx, ch, cfg, tpl, m)
		if err != nil {
			return report, err
		}
		report.Record(m, f)
		if f != nil && dc.Origin == domain.OriginInteractive {
			return report, f
		}
		if m.Receive.ObjectType == domain.ObjectUser {
			return report, nil
		}
	}
}

// sendUnit assembles and persists one unit, delivering it now when it is immediate.
func (d *Dispatcher) sendUnit(ctx context.Context, ch domain.Channel, cfg domain.ChannelConfig, tpl domain.Template, m *domain.Message) (*domain.DispatchFailure, error) {
	d.assembler.Assemble(ctx, cfg, tpl, m)
	m.RetryCount = 0
	if !m.Immediate() {
		if err := m.Transition(domain.StatusPending); err != nil {
			return nil, err
		}
		if m.ExpectedSendDate == nil {
			now := d.now().UTC()
			m.ExpectedSendDate = &now
		}
		if err := d.tracker.Record(ctx, m); err != nil {
			return nil, err
		}
		d.announce(ctx, m)
		return nil, nil
	}
	return d.complete(ctx, ch, cfg, tpl, m)
}

// complete delivers m and persists the terminal outcome.
func (d *Dispatcher) complete(ctx context.Context, ch domain.Channel, cfg domain.ChannelConfig, tpl domain.Template, m *domain.Message) (*domain.DispatchFailure, error) {
	sendErr := d.deliver(ctx, ch, cfg, tpl, m)
	if sendErr == nil {
		if err := m.Transition(domain.StatusSuccess); err != nil {
			return nil, err
		}
		now := d.now().UTC()
		m.ActualSendDate = &now
		if err := d.tracker.Record(ctx, m); err != nil {
			return nil, err
		}
		if m.VerificationCode {
			for _, dest := range m.Destinations {
				if err := d.codes.Issue(ctx, m.BizKey, dest, m.Code, m.ValidSeconds); err != nil {
					return nil, fmt.Errorf("issue verification code: %w", err)
				}
			}
		}
		d.announce(ctx, m)
		return nil, nil
	}

	if err := m.Transition(domain.StatusFailure); err != nil {
		return nil, err
	}
	kind := domain.Classify(sendErr)
	m.SetFailure(sendErr.Error())
	f := &domain.DispatchFailure{
		MessageID: m.ID.String(),
		Channel:   m.Channel,
		Kind:      kind,
		Code:      kind.Code(m.Channel),
		Reason:    m.FailureReason,
		Err:       sendErr,
	}
	if err := d.tracker.Record(ctx, m); err != nil {
		return nil, err
	}
	d.log.Warn().Err(sendErr).Str("message_id", m.ID.String()).Str("channel", string(m.Channel)).
		Str("code", f.Code).Msg("delivery failed")
	d.announce(ctx, m)
	return f, nil
}

// deliver calls the provider. Verification sends and non-batch sends on per-destination
// channels make one call per destination; the returned error is that of the last call.
func (d *Dispatcher) deliver(ctx context.Context, ch domain.Channel, cfg domain.ChannelConfig, tpl domain.Template, m *domain.Message) error {
	perDestination := m.VerificationCode || (ch.PerDestination() && !m.Batch)
	if !perDestination || len(m.Destinations) == 1 {
		return d.call(ctx, ch, cfg, tpl, m, len(m.ParamSets) > 1)
	}
	var last error
	for i, dest := range m.Destinations {
		u := m.Clone()
		u.Destinations = []string{dest}
		u.ParamSets = nil
		if i < len(m.ParamSets) {
			if u.Params == nil {
				u.Params = make(map[string]string, len(m.ParamSets[i]))
			}
			for k, v := range m.ParamSets[i] {
				u.Params[k] = v
			}
		}
		last = d.call(ctx, ch, cfg, tpl, u, false)
		if last != nil {
			d.log.Debug().Err(last).Str("message_id", m.ID.String()).Str("destination", dest).Msg("destination failed")
		}
	}
	return last
}

func (d *Dispatcher) call(ctx context.Context, ch domain.Channel, cfg domain.ChannelConfig, tpl domain.Template, m *domain.Message, batch bool) error {
	start := time.Now()
	var err error
	if batch {
		err = ch.SendBatchMessage(ctx, cfg, tpl, m)
	} else {
		err = ch.SendMessage(ctx, cfg, tpl, m)
	}
	outcome := "ok"
	if err != nil {
		outcome = domain.Classify(err).String()
	}
	metrics.ObserveProviderCall(string(m.Channel), outcome, time.Since(start).Seconds())
	return err
}

// Deliver sends a persisted PENDING unit through the same path as an immediate send.
func (d *Dispatcher) Deliver(ctx context.Context, m *domain.Message) (*domain.DispatchFailure, error) {
	if m.Status != domain.StatusPending {
		return nil, domain.ErrTerminalStatus
	}
	ch, ok := d.channels[m.Channel]
	if !ok {
		return nil, domain.Invalid("channel", fmt.Sprintf("unsupported channel %q", m.Channel))
	}
	var (
		cfg domain.ChannelConfig
		err error
	)
	if m.ChannelConfigID != nil {
		cfg, err = d.configs.GetByID(ctx, m.TenantID, *m.ChannelConfigID)
	} else {
		cfg, err = d.configs.Enabled(ctx, m.TenantID, m.Channel)
	}
	if err != nil {
		return nil, err
	}
	tpl, err := d.template(ctx, m.TenantID, m)
	if err != nil {
		return nil, err
	}
	return d.complete(ctx, ch, cfg, tpl, m)
}

func (d *Dispatcher) announce(ctx context.Context, m *domain.Message) {
	metrics.IncDispatchUnit(string(m.Channel), strings.ToLower(string(m.Status)))
	if d.pub == nil {
		return
	}
	meta := map[string]string{
		"message_id":   m.ID.String(),
		"channel":      string(m.Channel),
		"destinations": strconv.Itoa(len(m.Destinations)),
	}
	if m.FailureReason != "" {
		meta["reason"] = m.FailureReason
	}
	_ = d.pub.Publish(ctx, evdomain.Event{
		Type:     "dispatch.unit." + strings.ToLower(string(m.Status)),
		TenantID: m.TenantID,
		UserID:   m.CreatedBy,
		Meta:     meta,
		Time:     d.now(),
	})
}

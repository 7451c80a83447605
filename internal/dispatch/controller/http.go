package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	amw "github.com/corvusHold/courier/internal/auth/middleware"
	"github.com/corvusHold/courier/internal/dispatch/domain"
	"github.com/corvusHold/courier/internal/platform/ratelimit"
	"github.com/corvusHold/courier/internal/platform/validation"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
	vdomain "github.com/corvusHold/courier/internal/verification/domain"
)

// Sender runs one logical send.
type Sender interface {
	Send(ctx context.Context, dc domain.DispatchContext, m *domain.Message) (domain.Report, error)
}

// Store reads and cleans up persisted units.
type Store interface {
	Get(ctx context.Context, ch domain.ChannelType, id uuid.UUID) (*domain.Message, error)
	// Remove and PurgeTenantBefore only touch units owned by tenantID.
	Remove(ctx context.Context, ch domain.ChannelType, tenantID uuid.UUID, ids []uuid.UUID, hard bool) (int64, error)
	PurgeTenantBefore(ctx context.Context, ch domain.ChannelType, tenantID uuid.UUID, days int) (int64, error)
}

// Verifier checks codes issued by verification sends.
type Verifier interface {
	Verify(ctx context.Context, bizKey, destination, supplied string) error
}

// Controller exposes message sends, channel tests, code verification and unit management.
type Controller struct {
	sender   Sender
	store    Store
	verifier Verifier
	log      zerolog.Logger

	identity   echo.MiddlewareFunc
	settings   sdomain.Service
	rl         ratelimit.Store
	sendLimit  int
	sendWindow time.Duration
}

func New(sender Sender, store Store, verifier Verifier, log zerolog.Logger) *Controller {
	return &Controller{
		sender:     sender,
		store:      store,
		verifier:   verifier,
		log:        log.With().Str("component", "dispatch_http").Logger(),
		sendLimit:  60,
		sendWindow: time.Minute,
	}
}

// WithSendLimit sets the default send rate limit a tenant setting can override.
func (h *Controller) WithSendLimit(limit int, window time.Duration) *Controller {
	if limit > 0 {
		h.sendLimit = limit
	}
	if window > 0 {
		h.sendWindow = window
	}
	return h
}

// WithIdentity injects the middleware establishing the acting user and tenant.
func (h *Controller) WithIdentity(mw echo.MiddlewareFunc) *Controller { h.identity = mw; return h }

// WithRateLimit enables tenant-aware, store-backed rate limiting on send and verify routes.
func (h *Controller) WithRateLimit(settings sdomain.Service, store ratelimit.Store) *Controller {
	h.settings = settings
	h.rl = store
	return h
}

func (h *Controller) limiter(name, limKey, winKey string, defLim int, defWin time.Duration) echo.MiddlewareFunc {
	p := ratelimit.Policy{Name: name, Window: defWin, Limit: defLim, Key: ratelimit.KeyTenantOrIP(name)}
	if h.settings != nil {
		p.WindowFunc = func(c echo.Context) time.Duration {
			tid, ok := amw.TenantID(c)
			if !ok {
				return defWin
			}
			d, _ := h.settings.GetDuration(c.Request().Context(), winKey, &tid, defWin)
			return d
		}
		p.LimitFunc = func(c echo.Context) int {
			tid, ok := amw.TenantID(c)
			if !ok {
				return defLim
			}
			n, _ := h.settings.GetInt(c.Request().Context(), limKey, &tid, defLim)
			return n
		}
	}
	if h.rl != nil {
		return ratelimit.MiddlewareWithStore(p, h.rl)
	}
	return ratelimit.Middleware(p)
}

// Register mounts the dispatch routes under /api/v1.
func (h *Controller) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	if h.identity != nil {
		g.Use(h.identity)
	}
	rlSend := h.limiter("messages:send", sdomain.KeyRLSendLimit, sdomain.KeyRLSendWindow, h.sendLimit, h.sendWindow)
	rlVerify := h.limiter("verification:verify", sdomain.KeyRLVerifyLimit, sdomain.KeyRLVerifyWindow, 10, time.Minute)

	g.POST("/messages/:channel", h.send, rlSend)
	g.GET("/messages/:channel/:id", h.get)
	g.DELETE("/messages/:channel", h.remove)
	g.POST("/messages/:channel/purge", h.purge)
	g.POST("/channels/:id/test", h.testChannel, rlSend)
	g.POST("/verification/verify", h.verify, rlVerify)
}

type receiveReq struct {
	ObjectType  string   `json:"object_type" validate:"required"`
	ObjectIDs   []string `json:"object_ids" validate:"omitempty,dive,required"`
	PolicyCodes []string `json:"policy_codes" validate:"omitempty,dive,required"`
}

type sendReq struct {
	TemplateCode     string              `json:"template_code" validate:"omitempty,max=64"`
	From             string              `json:"from" validate:"omitempty,max=320"`
	Subject          string              `json:"subject" validate:"omitempty,max=255"`
	Body             string              `json:"body"`
	Destinations     []string            `json:"destinations" validate:"omitempty,max=500"`
	Params           map[string]string   `json:"params"`
	ParamSets        []map[string]string `json:"param_sets"`
	Receive          *receiveReq         `json:"receive"`
	SendNow          bool                `json:"send_now"`
	Batch            bool                `json:"batch"`
	VerificationCode bool                `json:"verification_code"`
	BizKey           string              `json:"biz_key" validate:"omitempty,biz_key"`
	Code             string              `json:"code" validate:"omitempty,max=32"`
	ValidSeconds     int                 `json:"valid_seconds" validate:"omitempty,min=1,max=86400"`
	ExpectedSendDate *time.Time          `json:"expected_send_date"`
}

func (r sendReq) message(ch domain.ChannelType) *domain.Message {
	m := &domain.Message{
		Channel:          ch,
		TemplateCode:     strings.TrimSpace(r.TemplateCode),
		From:             r.From,
		Subject:          r.Subject,
		Body:             r.Body,
		Destinations:     r.Destinations,
		Params:           r.Params,
		ParamSets:        r.ParamSets,
		SendNow:          r.SendNow,
		Batch:            r.Batch,
		VerificationCode: r.VerificationCode,
		BizKey:           r.BizKey,
		Code:             r.Code,
		ValidSeconds:     r.ValidSeconds,
		ExpectedSendDate: r.ExpectedSendDate,
	}
	if r.Receive != nil {
		m.Receive = &domain.Receive{
			ObjectType:  domain.ReceiveObjectType(strings.ToUpper(strings.TrimSpace(r.Receive.ObjectType))),
			ObjectIDs:   r.Receive.ObjectIDs,
			PolicyCodes: r.Receive.PolicyCodes,
		}
	}
	return m
}

type failureResp struct {
	MessageID string `json:"message_id"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

type reportResp struct {
	MessageIDs []string      `json:"message_ids"`
	Sent       int           `json:"sent"`
	Failed     int           `json:"failed"`
	Pending    int           `json:"pending"`
	Failures   []failureResp `json:"failures,omitempty"`
}

func toReportResp(r domain.Report) reportResp {
	out := reportResp{MessageIDs: make([]string, 0, len(r.MessageIDs)), Sent: r.Sent, Failed: r.Failed, Pending: r.Pending}
	for _, id := range r.MessageIDs {
		out.MessageIDs = append(out.MessageIDs, id.String())
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, failureResp{MessageID: f.MessageID, Code: f.Code, Reason: f.Reason})
	}
	return out
}

type messageResp struct {
	ID               string     `json:"id"`
	Channel          string     `json:"channel"`
	TemplateCode     string     `json:"template_code,omitempty"`
	Subject          string     `json:"subject,omitempty"`
	Destinations     []string   `json:"destinations"`
	Status           string     `json:"status"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	ExpectedSendDate *time.Time `json:"expected_send_date,omitempty"`
	ActualSendDate   *time.Time `json:"actual_send_date,omitempty"`
	RetryCount       int        `json:"retry_count"`
	CreatedAt        time.Time  `json:"created_at"`
}

type deleteReq struct {
	IDs  []string `json:"ids" validate:"required,min=1,dive,uuid"`
	Hard bool     `json:"hard"`
}

type purgeReq struct {
	Days int `json:"days" validate:"required,min=1"`
}

type testReq struct {
	Channel      string            `json:"channel" validate:"required,oneof=email sms"`
	Destinations []string          `json:"destinations" validate:"required,min=1,dive,required"`
	TemplateCode string            `json:"template_code" validate:"omitempty,max=64"`
	Subject      string            `json:"subject" validate:"omitempty,max=255"`
	Body         string            `json:"body"`
	Params       map[string]string `json:"params"`
}

type verifyReq struct {
	BizKey      string `json:"biz_key" validate:"required,biz_key"`
	Destination string `json:"destination" validate:"required"`
	Code        string `json:"code" validate:"required"`
}

func errJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func identity(c echo.Context) (domain.DispatchContext, bool) {
	tid, okT := amw.TenantID(c)
	uid, okU := amw.UserID(c)
	if !okT || !okU {
		return domain.DispatchContext{}, false
	}
	return domain.DispatchContext{ActingUserID: uid, TenantID: tid, Origin: domain.OriginInteractive}, true
}

func channelParam(c echo.Context) (domain.ChannelType, bool) {
	return domain.ParseChannel(c.Param("channel"))
}

// writeError maps dispatch and verification errors onto HTTP responses.
func (h *Controller) writeError(c echo.Context, err error) error {
	var (
		verr *domain.ValidationError
		fail *domain.DispatchFailure
	)
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.As(err, &fail):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": fail.Reason, "code": fail.Code, "message_id": fail.MessageID})
	case errors.Is(err, vdomain.ErrResendTooSoon):
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error(), "code": "CODE_RESEND_TOO_SOON"})
	case errors.Is(err, vdomain.ErrCodeExpired):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error(), "code": "CODE_EXPIRED"})
	case errors.Is(err, vdomain.ErrCodeMismatch):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error(), "code": "CODE_MISMATCH"})
	case errors.Is(err, domain.ErrChannelUnavailable):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error(), "code": "CHANNEL_UNAVAILABLE"})
	case errors.Is(err, domain.ErrTemplateNotFound), errors.Is(err, domain.ErrMessageNotFound):
		return errJSON(c, http.StatusNotFound, err.Error())
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return errJSON(c, http.StatusInternalServerError, "internal error")
}

func (h *Controller) send(c echo.Context) error {
	dc, ok := identity(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ch, ok := channelParam(c)
	if !ok {
		return errJSON(c, http.StatusNotFound, "unknown channel")
	}
	var req sendReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	report, err := h.sender.Send(c.Request().Context(), dc, req.message(ch))
	if err != nil {
		return h.writeError(c, err)
	}
	status := http.StatusOK
	if report.Pending > 0 && report.Sent == 0 && report.Failed == 0 {
		status = http.StatusAccepted
	}
	return c.JSON(status, toReportResp(report))
}

func (h *Controller) testChannel(c echo.Context) error {
	dc, ok := identity(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	cfgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid channel config id")
	}
	var req testReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	ch, _ := domain.ParseChannel(req.Channel)
	report, err := h.sender.Send(c.Request().Context(), dc, &domain.Message{
		Channel:         ch,
		ChannelConfigID: &cfgID,
		Test:            true,
		TemplateCode:    strings.TrimSpace(req.TemplateCode),
		Subject:         req.Subject,
		Body:            req.Body,
		Destinations:    req.Destinations,
		Params:          req.Params,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReportResp(report))
}

func (h *Controller) verify(c echo.Context) error {
	if _, ok := identity(c); !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	if err := h.verifier.Verify(c.Request().Context(), req.BizKey, strings.TrimSpace(req.Destination), req.Code); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Controller) get(c echo.Context) error {
	dc, ok := identity(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ch, ok := channelParam(c)
	if !ok {
		return errJSON(c, http.StatusNotFound, "unknown channel")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	m, err := h.store.Get(c.Request().Context(), ch, id)
	if err != nil {
		return h.writeError(c, err)
	}
	if m.TenantID != dc.TenantID {
		return h.writeError(c, domain.ErrMessageNotFound)
	}
	return c.JSON(http.StatusOK, messageResp{
		ID:               m.ID.String(),
		Channel:          string(m.Channel),
		TemplateCode:     m.TemplateCode,
		Subject:          m.Subject,
		Destinations:     m.Destinations,
		Status:           string(m.Status),
		FailureReason:    m.FailureReason,
		ExpectedSendDate: m.ExpectedSendDate,
		ActualSendDate:   m.ActualSendDate,
		RetryCount:       m.RetryCount,
		CreatedAt:        m.CreatedAt,
	})
}

func (h *Controller) remove(c echo.Context) error {
	dc, ok := identity(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ch, ok := channelParam(c)
	if !ok {
		return errJSON(c, http.StatusNotFound, "unknown channel")
	}
	var req deleteReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, s := range req.IDs {
		ids = append(ids, uuid.MustParse(s))
	}
	n, err := h.store.Remove(c.Request().Context(), ch, dc.TenantID, ids, req.Hard)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Controller) purge(c echo.Context) error {
	dc, ok := identity(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ch, ok := channelParam(c)
	if !ok {
		return errJSON(c, http.StatusNotFound, "unknown channel")
	}
	var req purgeReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	n, err := h.store.PurgeTenantBefore(c.Request().Context(), ch, dc.TenantID, req.Days)
	if err != nil {
		return h.writeError(c, err)
	}
	h.log.Info().Str("channel", string(ch)).Str("tenant_id", dc.TenantID.String()).Int("days", req.Days).Int64("deleted", n).Msg("messages purged")
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}

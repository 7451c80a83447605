package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	amw "github.com/corvusHold/courier/internal/auth/middleware"
	cdomain "github.com/corvusHold/courier/internal/catalog/domain"
	ddomain "github.com/corvusHold/courier/internal/dispatch/domain"
	"github.com/corvusHold/courier/internal/platform/validation"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
)

// Controller is the admin surface for channel configs and message templates.
type Controller struct {
	svc      cdomain.Service
	identity echo.MiddlewareFunc
	log      zerolog.Logger
}

func New(svc cdomain.Service, log zerolog.Logger) *Controller {
	return &Controller{svc: svc, log: log}
}

// WithIdentity injects the middleware establishing the acting tenant.
func (h *Controller) WithIdentity(mw echo.MiddlewareFunc) *Controller { h.identity = mw; return h }

func (h *Controller) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	if h.identity != nil {
		g.Use(h.identity)
	}
	g.POST("/channel-configs", h.createConfig)
	g.GET("/channel-configs", h.listConfigs)
	g.GET("/channel-configs/:id", h.getConfig)
	g.PATCH("/channel-configs/:id/enabled", h.setConfigEnabled)
	g.POST("/templates", h.createTemplate)
	g.GET("/templates", h.listTemplates)
	g.GET("/templates/:id", h.getTemplate)
	g.PATCH("/templates/:id/enabled", h.setTemplateEnabled)
}

type configReq struct {
	Channel       string            `json:"channel" validate:"required,oneof=email sms"`
	Name          string            `json:"name" validate:"required"`
	Provider      string            `json:"provider"`
	Enabled       *bool             `json:"enabled"`
	From          string            `json:"from"`
	SubjectPrefix string            `json:"subject_prefix"`
	Settings      map[string]string `json:"settings"`
}

type configResp struct {
	ID            string            `json:"id"`
	Channel       string            `json:"channel"`
	Name          string            `json:"name"`
	Provider      string            `json:"provider"`
	Enabled       bool              `json:"enabled"`
	From          string            `json:"from,omitempty"`
	SubjectPrefix string            `json:"subject_prefix,omitempty"`
	Settings      map[string]string `json:"settings"`
}

type templateReq struct {
	Channel             string `json:"channel" validate:"required,oneof=email sms"`
	Code                string `json:"code" validate:"required,biz_key"`
	Subject             string `json:"subject"`
	Content             string `json:"content" validate:"required"`
	CodeValiditySeconds int    `json:"code_validity_seconds" validate:"gte=0"`
	Enabled             *bool  `json:"enabled"`
}

type templateResp struct {
	ID                  string `json:"id"`
	Channel             string `json:"channel"`
	Code                string `json:"code"`
	Subject             string `json:"subject,omitempty"`
	Content             string `json:"content"`
	CodeValiditySeconds int    `json:"code_validity_seconds"`
	Enabled             bool   `json:"enabled"`
}

type enabledReq struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type listResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// mask hides credential values; only the last four characters survive.
func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func toConfigResp(c ddomain.ChannelConfig) configResp {
	settings := make(map[string]string, len(c.Settings))
	for k, v := range c.Settings {
		if sdomain.Secret(k) && v != "" {
			v = mask(v)
		}
		settings[k] = v
	}
	return configResp{
		ID: c.ID.String(), Channel: string(c.Channel), Name: c.Name, Provider: c.Provider,
		Enabled: c.Enabled, From: c.From, SubjectPrefix: c.SubjectPrefix, Settings: settings,
	}
}

func toTemplateResp(t ddomain.Template) templateResp {
	return templateResp{
		ID: t.ID.String(), Channel: string(t.Channel), Code: t.Code, Subject: t.Subject,
		Content: t.Content, CodeValiditySeconds: t.CodeValiditySeconds, Enabled: t.Enabled,
	}
}

func errJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func (h *Controller) writeError(c echo.Context, err error) error {
	var verr *ddomain.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, cdomain.ErrNotFound):
		return errJSON(c, http.StatusNotFound, "not found")
	case errors.Is(err, cdomain.ErrConflict):
		return errJSON(c, http.StatusConflict, "already exists")
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("catalog request failed")
	return errJSON(c, http.StatusInternalServerError, "internal error")
}

// listOptions reads the shared filter parameters; malformed numbers fall back to defaults.
func listOptions(c echo.Context) (cdomain.ListOptions, bool) {
	opts := cdomain.ListOptions{Enabled: -1}
	if ch := c.QueryParam("channel"); ch != "" {
		parsed, ok := ddomain.ParseChannel(ch)
		if !ok {
			return opts, false
		}
		opts.Channel = parsed
	}
	opts.Query = c.QueryParam("q")
	atoi := func(name string, dst *int) {
		if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
			*dst = v
		}
	}
	atoi("enabled", &opts.Enabled)
	atoi("page", &opts.Page)
	atoi("page_size", &opts.PageSize)
	return opts, true
}

// idParam resolves the acting tenant and the :id path parameter. A non-zero status
// reports which of the two was missing.
func idParam(c echo.Context) (tid, id uuid.UUID, status int, msg string) {
	tid, ok := amw.TenantID(c)
	if !ok {
		return tid, id, http.StatusUnauthorized, "unauthorized"
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return tid, id, http.StatusBadRequest, "invalid id"
	}
	return tid, id, 0, ""
}

func (h *Controller) createConfig(c echo.Context) error {
	tid, ok := amw.TenantID(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req configReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	cfg, err := h.svc.CreateConfig(c.Request().Context(), ddomain.ChannelConfig{
		TenantID:      tid,
		Channel:       ddomain.ChannelType(req.Channel),
		Name:          req.Name,
		Provider:      req.Provider,
		Enabled:       req.Enabled == nil || *req.Enabled,
		From:          req.From,
		SubjectPrefix: req.SubjectPrefix,
		Settings:      req.Settings,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toConfigResp(cfg))
}

func (h *Controller) listConfigs(c echo.Context) error {
	tid, ok := amw.TenantID(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	opts, ok := listOptions(c)
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid channel")
	}
	res, err := h.svc.ListConfigs(c.Request().Context(), tid, opts)
	if err != nil {
		return h.writeError(c, err)
	}
	items := make([]configResp, 0, len(res.Items))
	for _, cfg := range res.Items {
		items = append(items, toConfigResp(cfg))
	}
	return c.JSON(http.StatusOK, listResponse[configResp]{
		Items: items, Total: res.Total, Page: res.Page, PageSize: res.PageSize, TotalPages: res.TotalPages,
	})
}

func (h *Controller) getConfig(c echo.Context) error {
	tid, id, status, msg := idParam(c)
	if status != 0 {
		return errJSON(c, status, msg)
	}
	cfg, err := h.svc.GetConfig(c.Request().Context(), tid, id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, toConfigResp(cfg))
}

func (h *Controller) setConfigEnabled(c echo.Context) error {
	return h.toggle(c, h.svc.SetConfigEnabled)
}

func (h *Controller) createTemplate(c echo.Context) error {
	tid, ok := amw.TenantID(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req templateReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	tpl, err := h.svc.CreateTemplate(c.Request().Context(), ddomain.Template{
		TenantID:            tid,
		Channel:             ddomain.ChannelType(req.Channel),
		Code:                req.Code,
		Subject:             req.Subject,
		Content:             req.Content,
		CodeValiditySeconds: req.CodeValiditySeconds,
		Enabled:             req.Enabled == nil || *req.Enabled,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toTemplateResp(tpl))
}

func (h *Controller) listTemplates(c echo.Context) error {
	tid, ok := amw.TenantID(c)
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	opts, ok := listOptions(c)
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid channel")
	}
	res, err := h.svc.ListTemplates(c.Request().Context(), tid, opts)
	if err != nil {
		return h.writeError(c, err)
	}
	items := make([]templateResp, 0, len(res.Items))
	for _, t := range res.Items {
		items = append(items, toTemplateResp(t))
	}
	return c.JSON(http.StatusOK, listResponse[templateResp]{
		Items: items, Total: res.Total, Page: res.Page, PageSize: res.PageSize, TotalPages: res.TotalPages,
	})
}

func (h *Controller) getTemplate(c echo.Context) error {
	tid, id, status, msg := idParam(c)
	if status != 0 {
		return errJSON(c, status, msg)
	}
	tpl, err := h.svc.GetTemplate(c.Request().Context(), tid, id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, toTemplateResp(tpl))
}

func (h *Controller) setTemplateEnabled(c echo.Context) error {
	return h.toggle(c, h.svc.SetTemplateEnabled)
}

type toggleFunc func(ctx context.Context, tenantID, id uuid.UUID, enabled bool) error

func (h *Controller) toggle(c echo.Context, set toggleFunc) error {
	tid, id, status, msg := idParam(c)
	if status != 0 {
		return errJSON(c, status, msg)
	}
	var req enabledReq
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	if err := set(c.Request().Context(), tid, id, *req.Enabled); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

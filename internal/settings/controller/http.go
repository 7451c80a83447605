package controller

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	amw "github.com/corvusHold/courier/internal/auth/middleware"
	evdomain "github.com/corvusHold/courier/internal/events/domain"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
)

// editable lists the keys a tenant may read and override through the API.
var editable = []string{
	sdomain.KeyEmailProvider,
	sdomain.KeyEmailSubjectPrefix,
	sdomain.KeySMTPHost,
	sdomain.KeySMTPPort,
	sdomain.KeySMTPUsername,
	sdomain.KeySMTPPassword,
	sdomain.KeySMTPFrom,
	sdomain.KeyBrevoAPIKey,
	sdomain.KeyBrevoSender,
	sdomain.KeySMSProvider,
	sdomain.KeySMSGatewayURL,
	sdomain.KeySMSGatewayAPIKey,
	sdomain.KeySMSGatewaySender,
	sdomain.KeyTwilioAccountSID,
	sdomain.KeyTwilioAuthToken,
	sdomain.KeyTwilioFrom,
	sdomain.KeyVerifyCodeTTL,
	sdomain.KeyRLSendLimit,
	sdomain.KeyRLSendWindow,
	sdomain.KeyRLVerifyLimit,
	sdomain.KeyRLVerifyWindow,
}

// Controller exposes tenant-scoped transport settings.
type Controller struct {
	repo    sdomain.Repository
	service sdomain.Service
	authMW  echo.MiddlewareFunc
	pub     evdomain.Publisher
}

func New(repo sdomain.Repository, service sdomain.Service) *Controller {
	return &Controller{repo: repo, service: service}
}

// WithIdentity injects the middleware establishing the acting tenant.
func (h *Controller) WithIdentity(mw echo.MiddlewareFunc) *Controller { h.authMW = mw; return h }

// WithPublisher injects an audit event publisher.
func (h *Controller) WithPublisher(p evdomain.Publisher) *Controller { h.pub = p; return h }

// Register mounts the settings endpoints under /api/v1.
func (h *Controller) Register(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.authMW != nil {
		mw = append(mw, h.authMW)
	}
	e.GET("/api/v1/settings", h.getSettings, mw...)
	e.PUT("/api/v1/settings", h.putSettings, mw...)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func (h *Controller) getSettings(c echo.Context) error {
	tid, ok := amw.TenantID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	out := make(map[string]string, len(editable))
	for _, key := range editable {
		v, err := h.service.GetString(ctx, key, &tid, "")
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "settings unavailable"})
		}
		if sdomain.Secret(key) {
			v = mask(v)
		}
		out[key] = v
	}
	return c.JSON(http.StatusOK, out)
}

func validateValue(key, v string) bool {
	if v == "" {
		return true
	}
	switch key {
	case sdomain.KeyEmailProvider:
		return v == "smtp" || v == "brevo"
	case sdomain.KeySMSProvider:
		return v == "gateway" || v == "twilio"
	case sdomain.KeyVerifyCodeTTL, sdomain.KeyRLSendWindow, sdomain.KeyRLVerifyWindow:
		d, err := time.ParseDuration(v)
		return err == nil && d > 0
	case sdomain.KeySMSGatewayURL:
		u, err := url.Parse(v)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	}
	return true
}

func (h *Controller) putSettings(c echo.Context) error {
	tid, okT := amw.TenantID(c)
	uid, _ := amw.UserID(c)
	if !okT {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	var req map[string]string
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	allowed := make(map[string]bool, len(editable))
	for _, k := range editable {
		allowed[k] = true
	}
	keys := make([]string, 0, len(req))
	for k, v := range req {
		if !allowed[k] {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown setting " + k})
		}
		v = strings.TrimSpace(v)
		if k == sdomain.KeyEmailProvider || k == sdomain.KeySMSProvider {
			v = strings.ToLower(v)
		}
		if !validateValue(k, v) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid " + k})
		}
		req[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx := c.Request().Context()
	meta := map[string]string{}
	for _, k := range keys {
		if err := h.repo.Upsert(ctx, k, &tid, req[k], sdomain.Secret(k)); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
		}
		if sdomain.Secret(k) {
			meta[k] = "redacted"
		}
	}
	if h.pub != nil && len(keys) > 0 {
		meta["changed"] = strings.Join(keys, ",")
		_ = h.pub.Publish(ctx, evdomain.Event{Type: "settings.update.success", TenantID: tid, UserID: uid, Meta: meta, Time: time.Now()})
	}
	return c.NoContent(http.StatusNoContent)
}


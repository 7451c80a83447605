package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	amw "github.com/corvusHold/courier/internal/auth/middleware"
	"github.com/corvusHold/courier/internal/catalog"
	"github.com/corvusHold/courier/internal/dispatch"
	"github.com/corvusHold/courier/internal/logger"
	"github.com/corvusHold/courier/internal/metrics"
	"github.com/corvusHold/courier/internal/platform/validation"
	"github.com/corvusHold/courier/internal/settings"
	"github.com/corvusHold/courier/internal/version"
)

func newServeCmd() *cobra.Command {
	var (
		addr      string
		withSweep bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.AppAddr = addr
			}
			return serve(ctx, a, withSweep)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides APP_ADDR)")
	cmd.Flags().BoolVar(&withSweep, "sweep", false, "also run the deferred-send sweeper in this process")
	return cmd
}

// matchCORSOrigin reports whether origin is allowed by one of the patterns. A pattern is
// "*", an exact origin, or a scheme with a leading "*." host wildcard.
func matchCORSOrigin(origin string, patterns []string) bool {
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return false
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "*" || p == origin {
			return true
		}
		pu, err := url.Parse(strings.Replace(p, "*.", "wildcard.", 1))
		if err != nil || pu.Scheme != o.Scheme || !strings.HasPrefix(pu.Host, "wildcard.") {
			continue
		}
		suffix := strings.TrimPrefix(pu.Host, "wildcard")
		if strings.HasSuffix(o.Host, suffix) && len(o.Host) > len(suffix) {
			return true
		}
	}
	return false
}

func newEcho(a *app) (*echo.Echo, *dispatch.Module) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.HTTPMiddleware("/metrics", "/healthz"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.log.Info().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return matchCORSOrigin(origin, a.cfg.CORSAllowedOrigins), nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, amw.TenantHeader, amw.UserHeader},
	}))
	e.Validator = validation.New()

	identity := amw.NewIdentity(a.cfg.JWTSigningKey)
	deps := a.dispatchDeps()
	deps.Settings = settings.Register(e, a.pool, identity, deps.Publisher)
	catalog.Register(e, a.pool, identity, logger.Component(a.log, "catalog"))
	mod := dispatch.Register(e, deps, identity)

	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 500*time.Millisecond)
		defer cancel()
		dbOK, cacheOK := a.probe(ctx)
		status := func(ok bool) string {
			if ok {
				return "ok"
			}
			return "down"
		}
		code := http.StatusOK
		if !dbOK || !cacheOK {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]any{
			"status":  status(dbOK && cacheOK),
			"version": version.String(),
			"time":    time.Now().UTC().Format(time.RFC3339),
			"db":      status(dbOK),
			"cache":   status(cacheOK),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e, mod
}

func serve(ctx context.Context, a *app, withSweep bool) error {
	e, mod := newEcho(a)
	if withSweep && a.cfg.SweepEnabled {
		stopSweep := startSweeper(ctx, mod.Sweeper, a.cfg.SweepInterval)
		defer stopSweep()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.AppAddr).Str("version", version.String()).Msg("starting api server")
		if err := e.Start(a.cfg.AppAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("shutdown error")
	}
	a.log.Info().Msg("server stopped")
	return nil
}

package dispatch

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/corvusHold/courier/internal/config"
	ctrl "github.com/corvusHold/courier/internal/dispatch/controller"
	"github.com/corvusHold/courier/internal/dispatch/domain"
	repo "github.com/corvusHold/courier/internal/dispatch/repository"
	svc "github.com/corvusHold/courier/internal/dispatch/service"
	emailsvc "github.com/corvusHold/courier/internal/email/service"
	evdomain "github.com/corvusHold/courier/internal/events/domain"
	"github.com/corvusHold/courier/internal/platform/cache"
	"github.com/corvusHold/courier/internal/platform/ratelimit"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
	smssvc "github.com/corvusHold/courier/internal/sms/service"
	vsvc "github.com/corvusHold/courier/internal/verification/service"
)

// Module is the wired dispatch slice.
type Module struct {
	Dispatcher *svc.Dispatcher
	Tracker    *svc.Tracker
	Sweeper    *svc.Sweeper
	Codes      *vsvc.Store
}

// Deps are the shared resources the dispatch slice is built from.
type Deps struct {
	Config    config.Config
	Pool      *pgxpool.Pool
	Redis     redis.UniversalClient
	Settings  sdomain.Service
	Publisher evdomain.Publisher
	Logger    zerolog.Logger
}

// New wires repositories, channels and services without mounting routes.
func New(d Deps) *Module {
	renderer := svc.NewRenderer()
	channels := []domain.Channel{
		emailsvc.NewChannel(emailsvc.NewRouter(d.Settings, d.Config), renderer),
		smssvc.NewChannel(smssvc.NewRouter(d.Settings, d.Config), renderer),
	}
	codes := vsvc.New(cache.New(d.Redis), d.Config.VerifyRepeatGuardTTL, d.Publisher, d.Logger)
	catalog := repo.NewCatalog(d.Pool)
	tracker := svc.NewTracker(repo.NewMessages(d.Pool))
	dispatcher := svc.NewDispatcher(svc.Deps{
		Channels:  channels,
		Configs:   catalog,
		Templates: catalog,
		Resolver:  svc.NewResolver(repo.NewDirectory(d.Pool)),
		Assembler: svc.NewAssembler(codes, d.Settings, d.Config.VerifyCodeDefaultTTL, d.Config.EmailSubjectPrefix),
		Tracker:   tracker,
		Codes:     codes,
		Publisher: d.Publisher,
		Logger:    d.Logger,
		PageSize:  d.Config.DispatchPageSize,
	})
	return &Module{
		Dispatcher: dispatcher,
		Tracker:    tracker,
		Sweeper:    svc.NewSweeper(tracker, dispatcher, d.Config.SweepBatch, d.Logger),
		Codes:      codes,
	}
}

// Register wires the slice and mounts its HTTP routes.
func Register(e *echo.Echo, d Deps, identity echo.MiddlewareFunc) *Module {
	m := New(d)
	ctrl.New(m.Dispatcher, m.Tracker, m.Codes, d.Logger).
		WithIdentity(identity).
		WithRateLimit(d.Settings, ratelimit.NewRedisStore(d.Redis)).
		WithSendLimit(d.Config.SendRateLimit, d.Config.SendRateWindow).
		Register(e)
	return m
}

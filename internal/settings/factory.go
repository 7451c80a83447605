package settings

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	evdomain "github.com/corvusHold/courier/internal/events/domain"
	ctrl "github.com/corvusHold/courier/internal/settings/controller"
	repo "github.com/corvusHold/courier/internal/settings/repository"
	svc "github.com/corvusHold/courier/internal/settings/service"
)

// Register wires the settings module, mounts its routes and returns the service so other
// modules can read tenant overrides.
func Register(e *echo.Echo, pg *pgxpool.Pool, identity echo.MiddlewareFunc, pub evdomain.Publisher) *svc.Service {
	r := repo.New(pg)
	s := svc.New(r)
	ctrl.New(r, s).WithIdentity(identity).WithPublisher(pub).Register(e)
	return s
}

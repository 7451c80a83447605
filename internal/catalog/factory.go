package catalog

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	ctrl "github.com/corvusHold/courier/internal/catalog/controller"
	repo "github.com/corvusHold/courier/internal/catalog/repository"
	svc "github.com/corvusHold/courier/internal/catalog/service"
)

// Register wires the channel config and template admin API.
func Register(e *echo.Echo, pg *pgxpool.Pool, identity echo.MiddlewareFunc, log zerolog.Logger) {
	r := repo.New(pg)
	s := svc.New(r)
	ctrl.New(s, log).WithIdentity(identity).Register(e)
}

package bootstrap

import (
	"autolot-backend/internal/config"
	"autolot-backend/internal/interfaces/router"
	"autolot-backend/internal/pkg/logging"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for the serverless handler. Background workers are
// not started there; the status sweep runs in cmd/api or the database's own scheduler.
func New() (*fiber.App, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Env)
	srv, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	return srv.App, nil
}

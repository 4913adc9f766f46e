package router

import (
	"context"
	"errors"
	"net/http"

	bidsvc "autolot-backend/internal/application/bids"
	"autolot-backend/internal/application/cascade"
	healthsvc "autolot-backend/internal/application/health"
	"autolot-backend/internal/application/lotevents"
	lotsvc "autolot-backend/internal/application/lots"
	"autolot-backend/internal/application/sweeps"
	winnersvc "autolot-backend/internal/application/winners"
	"autolot-backend/internal/config"
	"autolot-backend/internal/constants"
	"autolot-backend/internal/infrastructure/database"
	"autolot-backend/internal/infrastructure/realtime"
	authhandler "autolot-backend/internal/interfaces/handlers/auth"
	carhandler "autolot-backend/internal/interfaces/handlers/cars"
	healthhandler "autolot-backend/internal/interfaces/handlers/health"
	lothandler "autolot-backend/internal/interfaces/handlers/lots"
	timehandler "autolot-backend/internal/interfaces/handlers/servertime"
	"autolot-backend/internal/middleware"
	"autolot-backend/internal/pkg/apperr"
	"autolot-backend/internal/pkg/clock"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server is the assembled API. Sweeper and Watcher are nil when their
// dependencies are not configured; callers decide whether to start them.
type Server struct {
	App     *fiber.App
	DB      *gorm.DB
	Rdb     *redis.Client
	Lots    *lotsvc.Service
	Sweeper *sweeps.Sweeper
	Watcher *realtime.Watcher
}

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) PingContext(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateApp connects the configured stores and registers every route.
func CreateApp(cfg *config.Config) (*Server, error) {
	var (
		db  *gorm.DB
		rdb *redis.Client
		err error
	)
	if cfg.DatabaseURL != "" {
		if db, err = database.Open(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}
	if cfg.RedisURL != "" {
		if rdb, err = middleware.NewRedis(cfg.RedisURL); err != nil {
			return nil, err
		}
	}
	return NewServer(cfg, db, rdb), nil
}

// NewServer builds the app on already opened stores. Either may be nil.
func NewServer(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Server {
	s := &Server{DB: db, Rdb: rdb}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:  cfg.FrontendURLEndsWith,
		DevPassword:    cfg.DevPassword,
		AllowLocalhost: cfg.AllowCrossSiteDev,
	}))
	sessionCfg := middleware.SessionConfig{
		Secret:    cfg.SessionSecret,
		Secure:    cfg.IsProduction(),
		CrossSite: cfg.AllowCrossSiteDev,
	}
	if rdb != nil {
		app.Use(middleware.Session(sessionCfg, rdb))
	}
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.Timeout(cfg.RequestTimeout))

	converter := clock.NewConverter(cfg.DisplayUTCOffsetHours, clock.System{})
	collector := &healthsvc.Collector{Rdb: rdb}
	hh := &healthhandler.Handlers{Collector: collector, Rdb: rdb, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	th := &timehandler.Handlers{Converter: converter}
	tg := app.Group("/api/v1/time")
	tg.Get("/now", th.Now)
	tg.Post("/convert", th.Convert)

	s.App = app
	if db == nil {
		return s
	}
	collector.DB = &gormDBPinger{db: db}

	publisher := realtime.NewPublisher(rdb, cfg.ChangeChannel)
	events := &lotevents.Service{DB: db}
	winners := &winnersvc.Service{DB: db, Events: events, Publisher: publisher}
	lots := &lotsvc.Service{
		DB:        db,
		Converter: converter,
		Cascader:  cascade.New(db, converter.Clock),
		Winners:   winners,
		Events:    events,
		Publisher: publisher,
	}
	bids := &bidsvc.Service{DB: db, Clock: converter.Clock, Publisher: publisher}
	s.Lots = lots

	s.Sweeper = &sweeps.Sweeper{
		Lots:       lots,
		Procedures: &database.Procedures{DB: db},
		Interval:   cfg.StatusSweepInterval,
	}
	collector.Sweeps = s.Sweeper
	if rdb != nil {
		s.Watcher = &realtime.Watcher{
			Rdb:      rdb,
			Channel:  cfg.ChangeChannel,
			Debounce: cfg.ChangeDebounce,
			Refresh:  refreshFunc(lots),
		}
	}

	if rdb != nil {
		ah := &authhandler.Handlers{DB: db, Rdb: rdb, Session: sessionCfg}
		if !cfg.IsProduction() {
			ah.DevPassword = cfg.DevPassword
		}
		ag := app.Group("/api/v1/auth")
		ag.Post("/dev-login", ah.DevLogin)
		ag.Get("/me", ah.Me)
		ag.Delete("/logout", ah.Logout)
	}

	lh := &lothandler.Handlers{Service: lots, Results: bids, Winners: winners}
	ch := &carhandler.Handlers{Lots: lots, Bids: bids, Winners: winners}
	allow := middleware.AuthorizePermission

	lg := app.Group("/api/v1/lots", middleware.RequireAuth())
	lg.Post("/import", allow(constants.ImportLot), lh.ImportLot)
	lg.Get("/", allow(constants.ViewLots), lh.ListLots)
	lg.Get("/:lot_id", allow(constants.ViewLots), lh.GetLot)
	lg.Get("/:lot_id/events", allow(constants.ViewResults), lh.LotEvents)
	lg.Post("/:lot_id/approve", allow(constants.ApproveLot), lh.ApproveLot)
	lg.Put("/:lot_id/schedule", allow(constants.EditLot), lh.RescheduleLot)
	lg.Post("/:lot_id/early-close", allow(constants.CloseLot), lh.EarlyCloseLot)
	lg.Patch("/:lot_id/number", allow(constants.EditLot), lh.RenumberLot)
	lg.Post("/:lot_id/refresh", allow(constants.EditLot), lh.RefreshLot)
	lg.Delete("/:lot_id", allow(constants.DeleteLot), lh.DeleteLot)
	lg.Get("/:lot_id/results", allow(constants.ViewResults), lh.LotResults)
	lg.Post("/:lot_id/winners/auto", allow(constants.SelectWinner), lh.AssignLotWinners)

	cg := app.Group("/api/v1/cars", middleware.RequireAuth())
	cg.Patch("/:car_id/bidding", allow(constants.EditLot), ch.SetBidding)
	cg.Get("/:car_id/bids", allow(constants.ViewResults), ch.RankedBids)
	cg.Post("/:car_id/bids", allow(constants.PlaceBid), ch.PlaceBid)
	cg.Put("/:car_id/winner", allow(constants.SelectWinner), ch.SetWinner)
	cg.Delete("/:car_id/winner", allow(constants.SelectWinner), ch.ClearWinner)
	cg.Post("/:car_id/winner/auto", allow(constants.SelectWinner), ch.AutoWinner)

	app.Get("/api/v1/bids/mine", middleware.RequireAuth(), allow(constants.PlaceBid), ch.MyBids)

	return s
}

// refreshFunc adapts RefreshLot for the change watcher. A partial cascade is
// left to the sweep, so only hard failures are reported.
func refreshFunc(lots *lotsvc.Service) realtime.RefreshFunc {
	return func(ctx context.Context, lotID uuid.UUID) error {
		_, err := lots.RefreshLot(ctx, lotID)
		if _, partial := apperr.IsPartialCascade(err); partial {
			return nil
		}
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}

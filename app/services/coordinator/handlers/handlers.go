// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"net/http"
	"os"

	"github.com/ardanlabs/powpool/app/services/coordinator/handlers/debug/checkgrp"
	v1 "github.com/ardanlabs/powpool/app/services/coordinator/handlers/v1"
	"github.com/ardanlabs/powpool/app/services/coordinator/handlers/viewer"
	"github.com/ardanlabs/powpool/business/web/mid"
	"github.com/ardanlabs/powpool/foundation/blockchain/coordinator"
	"github.com/ardanlabs/powpool/foundation/events"
	"github.com/ardanlabs/powpool/foundation/web"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	Coord    *coordinator.Coordinator
	Evts     *events.Events
}

// PublicMux constructs a http.Handler with all application routes defined.
func PublicMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors("*"),
		mid.Panics(),
	)

	// Accept CORS 'OPTIONS' preflight requests.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h, mid.Cors("*"))

	// Register the viewer page for the event stream.
	app.Handle(http.MethodGet, "", "/", viewer.Index)

	// Load the v1 routes.
	v1.PublicRoutes(app, v1.Config{
		Log:   cfg.Log,
		Coord: cfg.Coord,
		Evts:  cfg.Evts,
	})

	return app
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service.
func DebugMux(build string, log *zap.SugaredLogger, coord *coordinator.Coordinator) http.Handler {
	mux := web.DebugStandardLibraryMux()

	// Register debug check endpoints.
	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
		Coord: coord,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}

package handler

import (
	"net/http"
	"sync"

	"autolot-backend/bootstrap"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"
)

var (
	once    sync.Once
	handler http.HandlerFunc
	initErr error
)

func load() {
	app, err := bootstrap.New()
	if err != nil {
		initErr = err
		log.Error().Err(err).Msg("Serverless app init failed")
		return
	}
	handler = adaptor.FiberApp(app)
}

// Handler is the serverless entry point. All requests are rewritten here.
// Init errors answer 500 on every request rather than crashing the instance.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(load)
	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","error":{"message":"Service unavailable","statusCode":500,"details":null}}`))
		return
	}
	r.RequestURI = r.URL.String()
	handler(w, r)
}

package misc

import (
	"context"
	"net/http"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const healthCheckTimeout = 2 * time.Second

// StorePinger is the workouts store as seen by the health check.
type StorePinger interface {
	Ping(ctx context.Context) error
}

type StorePingerFunc func(ctx context.Context) error

func (f StorePingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Redis  string `json:"redis"`
}

type Handler struct {
	versionInfo string
	store       StorePinger
	redisClient *redis.Client
}

func NewHandler(versionInfo string, store StorePinger, redisClient *redis.Client) *Handler {
	return &Handler{
		versionInfo: versionInfo,
		store:       store,
		redisClient: redisClient,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET", "POST", "OPTIONS").Name("root")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")
	mainRouter.HandleFunc("/health", handler.handleHealth).Methods("GET").Name("health")
}

func (handler *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}

func (handler *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.health")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Store: "ok", Redis: "ok"}
	if handler.store != nil {
		if err := handler.store.Ping(ctx); err != nil {
			log.Errorf("health: store ping: %s", err)
			resp.Store = "unavailable"
			resp.Status = "degraded"
		}
	}
	if handler.redisClient != nil {
		if err := handler.redisClient.Ping(ctx).Err(); err != nil {
			log.Errorf("health: redis ping: %s", err)
			resp.Redis = "unavailable"
			resp.Status = "degraded"
		}
	}

	span.SetAttributes(attribute.String("health.status", resp.Status))
	if resp.Status != "ok" {
		span.SetStatus(codes.Error, resp.Status)
		pkg.WriteJSON(w, resp, http.StatusServiceUnavailable)
		return
	}
	pkg.WriteJSON(w, resp, http.StatusOK)
}

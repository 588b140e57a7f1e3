package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/j0lvera/relaybot/internal/usage"
	"github.com/rs/zerolog"
)

// UsageReporter reads what a user has spent.
type UsageReporter interface {
	Stats(ctx context.Context, userID int64) (usage.Stats, error)
	Remaining(ctx context.Context, userID int64) (float64, error)
}

// UsageResponse is the body of GET /usage/{userID}.
type UsageResponse struct {
	UserID int64 `json:"user_id"`
	usage.Stats
	// Remaining is null when no budget is configured.
	Remaining *float64 `json:"remaining"`
}

// RouterConfig guards the admin routes.
type RouterConfig struct {
	// Token is the bearer token the usage routes require. They are not
	// served when it is empty.
	Token string
	// AllowedOrigins may call the usage routes from a browser. None by
	// default.
	AllowedOrigins []string
}

// NewRouter builds the admin API. webhook is mounted at POST /webhook
// when not nil.
func NewRouter(cfg RouterConfig, reporter UsageReporter, webhook http.Handler, log *zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	if webhook != nil {
		r.Post("/webhook", webhook.ServeHTTP)
	}

	if cfg.Token == "" {
		log.Warn().Msg("ADMIN_API_TOKEN not set, usage routes disabled")
		return r
	}

	r.Group(func(r chi.Router) {
		// An empty origin list would make cors allow every origin.
		if len(cfg.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: cfg.AllowedOrigins,
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Authorization"},
			}))
			// Routes the preflight to the cors middleware.
			r.Options("/usage/{userID}", func(http.ResponseWriter, *http.Request) {})
		}
		r.With(requireToken(cfg.Token)).Get("/usage/{userID}", usageHandler(reporter, log))
	})

	return r
}

// requireToken rejects requests without the bearer token.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			got, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func usageHandler(reporter UsageReporter, log *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(req, "userID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
			return
		}

		stats, err := reporter.Stats(req.Context(), userID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("unable to load usage")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unable to load usage"})
			return
		}

		resp := UsageResponse{UserID: userID, Stats: stats}
		left, err := reporter.Remaining(req.Context(), userID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("unable to compute remaining budget")
		} else if !math.IsInf(left, 1) {
			resp.Remaining = &left
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package api exposes extraction, stages, questions and the model override
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/academic-crs/internal/credential"
	"github.com/sells-group/academic-crs/internal/extract"
	"github.com/sells-group/academic-crs/internal/pipeline"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ModelStore reads and writes the model override.
type ModelStore interface {
	GetModelOverride(ctx context.Context) (string, bool, error)
	SetModelOverride(ctx context.Context, name string) error
}

// Deps are the collaborators behind the handlers.
type Deps struct {
	Extractor  *extract.Extractor
	Controller *pipeline.Controller
	Store      ModelStore
	// Defaults are used for any key a request leaves blank.
	Defaults    credential.Pair
	CORSOrigins []string
}

// NewRouter returns the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)
	r.Get("/stages", handleStages)
	r.Post("/extract-profile", handleExtractProfile(deps))
	r.Post("/run-agent", handleRunAgent(deps))
	r.Post("/qa", handleQA(deps))
	r.Post("/validate", handleValidate)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/model-name", handleGetModelName(deps))
		r.Post("/model-name", handleSetModelName(deps))
	})
	return r
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "academic-crs backend running"})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stages": pipeline.Stages()})
}

// keys are the per-request credentials every reasoning endpoint accepts.
type keys struct {
	OpenRouterKey       string `json:"openrouter_key"`
	OpenRouterKeyBackup string `json:"openrouter_key_backup"`
	SearchKey           string `json:"search_key"`
	// SerperKey is accepted as an alias of SearchKey.
	SerperKey string `json:"serper_key"`
}

// pair builds the credential pair for one request. The backup replaces only
// the reasoning key; the search key is shared.
func (k keys) pair(defaults credential.Pair) credential.Pair {
	search := firstNonEmpty(k.SearchKey, k.SerperKey, defaults.Primary.SearchKey)
	p := credential.Pair{
		Primary: credential.Credentials{
			ReasoningKey: firstNonEmpty(k.OpenRouterKey, defaults.Primary.ReasoningKey),
			SearchKey:    search,
		},
	}
	switch {
	case k.OpenRouterKeyBackup != "":
		p.Backup = &credential.Credentials{ReasoningKey: k.OpenRouterKeyBackup, SearchKey: search}
	case defaults.Backup != nil:
		b := *defaults.Backup
		if b.SearchKey == "" {
			b.SearchKey = search
		}
		p.Backup = &b
	}
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close() //nolint:errcheck
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps operation errors to HTTP status codes.
// A fallback failure is judged by its backup attempt.
func statusFor(err error) int {
	var fe *credential.FallbackError
	if errors.As(err, &fe) {
		return statusFor(fe.Backup)
	}
	switch {
	case errors.Is(err, credential.ErrNoCredentials),
		errors.Is(err, pipeline.ErrInvalidStageIndex),
		errors.Is(err, pipeline.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

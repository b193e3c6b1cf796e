// Package httpapi exposes the ledger, cache manager and task store over a
// thin chi router. Routing and validation only; all semantics live in the
// owning packages.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vividd/pkg/types"
)

// Services bundles the collaborators the HTTP layer fronts.
type Services struct {
	Ledger LedgerService
	Cache  CacheService
	Tasks  TaskService
	// SignupCredits is the grant for accounts created over HTTP.
	SignupCredits int64
}

// LedgerService is the credit surface required by the HTTP layer.
type LedgerService interface {
	CreateAccount(userID string, initial int64, unlimited bool) error
	Balance(userID string) (int64, bool, error)
	Credit(userID string, amount int64, reason, referenceID string) error
	History(userID string, limit int) ([]types.Transaction, error)
}

// CacheService is the artifact surface required by the HTTP layer.
type CacheService interface {
	Registry() []types.Artifact
	Status(id string) (types.CacheEntry, error)
	EnsureDownloaded(ctx context.Context, id string, onProgress func(int)) error
	Evict(id string) (bool, error)
	EvictAllExcept(keep []string) (int, error)
	Recommend(useCase string, gpuMemGB float64) []string
	Stats() types.CacheStats
}

// TaskService is the generation surface required by the HTTP layer.
type TaskService interface {
	Submit(userID string, kind types.ArtifactKind, params types.TaskParams) (types.Task, error)
	Status(taskID string) (types.Task, error)
	List(userID string) []types.Task
}

// NewMux wires all routes.
func NewMux(svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(MetricsMiddleware)
	r.Use(requestLogger)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		resp := types.ArtifactsResponse{}
		for _, a := range svc.Cache.Registry() {
			e, err := svc.Cache.Status(a.ID)
			if err != nil {
				writeError(w, err)
				return
			}
			resp.Artifacts = append(resp.Artifacts, types.ArtifactStatus{
				Artifact: a, Present: e.Present,
				ProgressPercent: e.ProgressPercent, Download: e.Status,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/models/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Cache.Stats())
	})

	r.Get("/models/recommend", func(w http.ResponseWriter, r *http.Request) {
		useCase := r.URL.Query().Get("use_case")
		gpuMem := 0.0
		if v := r.URL.Query().Get("gpu_memory_gb"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid gpu_memory_gb")
				return
			}
			gpuMem = f
		}
		writeJSON(w, http.StatusOK, map[string]any{"recommended": svc.Cache.Recommend(useCase, gpuMem)})
	})

	r.Get("/models/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		e, err := svc.Cache.Status(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	})

	r.Post("/models/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		// Kick the download off the request path; progress is observable
		// via the status endpoint.
		if _, err := svc.Cache.Status(id); err != nil {
			writeError(w, err)
			return
		}
		go func() { _ = svc.Cache.EnsureDownloaded(baseCtx(), id, nil) }()
		writeJSON(w, http.StatusAccepted, map[string]any{"model_id": id, "status": "downloading"})
	})

	r.Post("/models/cleanup", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Keep []string `json:"keep"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		n, err := svc.Cache.EvictAllExcept(req.Keep)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"evicted": n})
	})

	r.Delete("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		done, err := svc.Cache.Evict(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"evicted": done})
	})

	r.Post("/generate/text-to-video", generateHandler(svc, types.KindTextToVideo))
	r.Post("/generate/image-to-video", generateHandler(svc, types.KindImageToVideo))

	r.Get("/status/{taskID}", func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.Tasks.Status(chi.URLParam(r, "taskID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	})

	r.Get("/tasks", func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("user_id")
		if user == "" {
			writeJSONError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": svc.Tasks.List(user)})
	})

	r.Post("/users", func(w http.ResponseWriter, r *http.Request) {
		var req types.SignupRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			writeJSONError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := svc.Ledger.CreateAccount(req.UserID, svc.SignupCredits, req.Unlimited); err != nil {
			writeError(w, err)
			return
		}
		balance, unlimited, err := svc.Ledger.Balance(req.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, types.BalanceResponse{
			UserID: req.UserID, Balance: balance, Unlimited: unlimited,
		})
	})

	r.Get("/credits/{userID}", func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		balance, unlimited, err := svc.Ledger.Balance(userID)
		if err != nil {
			writeError(w, err)
			return
		}
		txs, err := svc.Ledger.History(userID, 10)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.BalanceResponse{
			UserID: userID, Balance: balance, Unlimited: unlimited, Transactions: txs,
		})
	})

	r.Post("/credits/{userID}/add", func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req types.CreditRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		reason := req.Reason
		if reason == "" {
			reason = "purchase"
		}
		if err := svc.Ledger.Credit(userID, req.Amount, reason, ""); err != nil {
			writeError(w, err)
			return
		}
		balance, unlimited, err := svc.Ledger.Balance(userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.BalanceResponse{UserID: userID, Balance: balance, Unlimited: unlimited})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func generateHandler(svc Services, kind types.ArtifactKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.UserID) == "" {
			writeJSONError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if req.NumFrames == 0 {
			req.NumFrames = 97
		}
		t, err := svc.Tasks.Submit(req.UserID, kind, types.TaskParams{
			Prompt:        req.Prompt,
			NumFrames:     req.NumFrames,
			AspectRatio:   req.AspectRatio,
			ImagePath:     req.ImagePath,
			GuidanceScale: req.GuidanceScale,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, types.GenerateResponse{
			TaskID: t.ID, Status: string(t.Status), Cost: t.CostCredits,
		})
	}
}

// decodeJSON enforces content type and body limits, writing the error
// response itself when decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

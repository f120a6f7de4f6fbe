package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harjot96/POS/internal/metrics"
	"github.com/harjot96/POS/internal/service"
	"github.com/harjot96/POS/internal/store"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 10 << 20
)

type API struct {
	service       *service.Service
	auth          *Authenticator
	allowedOrigin string
	log           *slog.Logger
}

func New(svc *service.Service, auth *Authenticator, allowedOrigin string, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		log:           log,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.StripSlashes)
	r.Use(a.securityHeaders)
	r.Use(a.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.requireAuth)

		r.Post("/products", a.handleRegisterProduct)
		r.Get("/products/{id}", a.handleGetProduct)
		r.Patch("/products/{id}", a.handleUpdateProduct)

		r.Route("/inventory/{shopkeeperId}", func(r chi.Router) {
			r.Get("/", a.handleListInventory)
			r.Post("/", a.handleEnsureInventory)
			r.Post("/stock", a.handleStockIntake)
			r.Post("/stock/{productId}", a.handleAddStockLine)
			r.Get("/stats", a.handleInventoryStats)
			r.Get("/product-finder", a.handleProductFinder)
			r.Get("/fast-selling", a.handleFastSelling)
		})

		r.Post("/sales", a.handleCommitSale)
		r.Get("/sales/detail/{id}", a.handleGetSale)
		r.Get("/sales/{shopkeeperId}", a.handleSalesTimeline)
		r.Get("/sales/{shopkeeperId}/history", a.handleSalesHistory)

		r.Post("/expenses", a.handleRecordExpense)
		r.Get("/expenses/{shopkeeperId}", a.handleListExpenses)

		r.Get("/shopkeeper/{id}", a.handleDashboard)
		r.Put("/shopkeeper/{id}", a.handleUpsertShopkeeper)
	})

	return r
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)

		a.log.LogAttrs(r.Context(), slog.LevelInfo, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(startedAt)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.service.Ready(ctx); err != nil {
		a.writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errRequestTooLarge
		}
		return err
	}
	return nil
}

var errRequestTooLarge = errors.New("request body too large")

// statusFor maps service and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrInventoryNotFound),
		errors.Is(err, store.ErrProductNotInInventory):
		return http.StatusNotFound
	case errors.Is(err, store.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrDuplicateProduct),
		errors.Is(err, store.ErrAlreadyInInventory),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	a.writeError(w, r, statusFor(err), err)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	// 5xx bodies stay generic; the cause goes to the log only.
	if status >= 500 {
		a.log.ErrorContext(r.Context(), "request failed",
			slog.Int("status", status),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		msg := "internal server error"
		if status == http.StatusServiceUnavailable {
			msg = store.ErrStorageUnavailable.Error()
		}
		writeJSON(w, status, map[string]any{"error": msg})
		return
	}

	body := map[string]any{"error": err.Error()}
	var validation *store.ValidationError
	if errors.As(err, &validation) {
		body["fields"] = validation.Fields
	}
	var stock *store.StockError
	if errors.As(err, &stock) {
		body["product_id"] = stock.ProductID
		if stock.ProductName != "" {
			body["product_name"] = stock.ProductName
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

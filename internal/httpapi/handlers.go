package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/service"
	"github.com/harjot96/POS/internal/store"
)

func (a *API) decodeOrReject(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errRequestTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		a.writeError(w, r, status, err)
		return false
	}
	return true
}

func (a *API) handleRegisterProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !a.decodeOrReject(w, r, &req) {
		return
	}
	if raw := r.URL.Query().Get("strict"); raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			a.writeServiceError(w, r, &store.ValidationError{Fields: []string{"strict"}})
			return
		}
		req.Strict = strict
	}

	product, created, err := a.service.RegisterOrGetProduct(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"product": product, "created": created})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if !a.decodeOrReject(w, r, &req) {
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// handleStockIntake accepts either a JSON body or a multipart form with a
// JSON "payload" part and an optional "image" file.
func (a *API) handleStockIntake(w http.ResponseWriter, r *http.Request) {
	var (
		req   domain.StockIntakeRequest
		image *service.Upload
	)
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		var err error
		image, err = a.readIntakeForm(w, r, &req)
		if err != nil {
			return
		}
	} else if !a.decodeOrReject(w, r, &req) {
		return
	}

	result, err := a.service.IntakeProduct(r.Context(), chi.URLParam(r, "shopkeeperId"), req, image)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) readIntakeForm(w http.ResponseWriter, r *http.Request, req *domain.StockIntakeRequest) (*service.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		a.writeError(w, r, status, err)
		return nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(r.FormValue("payload")))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		bad := &store.ValidationError{Fields: []string{"payload"}}
		a.writeServiceError(w, r, bad)
		return nil, bad
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		a.writeError(w, r, http.StatusBadRequest, err)
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		a.writeError(w, r, http.StatusBadRequest, err)
		return nil, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &service.Upload{Filename: header.Filename, ContentType: contentType, Data: data}, nil
}

func (a *API) handleAddStockLine(w http.ResponseWriter, r *http.Request) {
	var in domain.StockInput
	if !a.decodeOrReject(w, r, &in) {
		return
	}
	inv, err := a.service.AddStockLine(r.Context(), chi.URLParam(r, "shopkeeperId"), chi.URLParam(r, "productId"), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (a *API) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListInventory(r.Context(), chi.URLParam(r, "shopkeeperId"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleEnsureInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := a.service.EnsureInventory(r.Context(), chi.URLParam(r, "shopkeeperId"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) handleInventoryStats(w http.ResponseWriter, r *http.Request) {
	threshold := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			a.writeServiceError(w, r, &store.ValidationError{Fields: []string{"threshold"}})
			return
		}
		threshold = parsed
	}
	stats, err := a.service.ComputeStats(r.Context(), chi.URLParam(r, "shopkeeperId"), threshold)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleProductFinder(w http.ResponseWriter, r *http.Request) {
	q := domain.FinderQuery{
		Filter:     domain.ProductFilter(r.URL.Query().Get("filter")),
		SearchTerm: r.URL.Query().Get("searchTerm"),
	}
	views, err := a.service.FindProducts(r.Context(), chi.URLParam(r, "shopkeeperId"), q)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": views})
}

func (a *API) handleFastSelling(w http.ResponseWriter, r *http.Request) {
	views, err := a.service.FastSelling(r.Context(), chi.URLParam(r, "shopkeeperId"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": views})
}

func (a *API) handleCommitSale(w http.ResponseWriter, r *http.Request) {
	var req domain.CommitSaleRequest
	if !a.decodeOrReject(w, r, &req) {
		return
	}
	sale, err := a.service.CommitSale(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) queryRange(r *http.Request) (domain.DateRange, error) {
	return a.service.ParseRange(r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
}

func (a *API) handleSalesTimeline(w http.ResponseWriter, r *http.Request) {
	dr, err := a.queryRange(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	timeline, err := a.service.SalesTimeline(r.Context(), chi.URLParam(r, "shopkeeperId"), dr)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (a *API) handleSalesHistory(w http.ResponseWriter, r *http.Request) {
	dr, err := a.queryRange(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	sales, err := a.service.ListSales(r.Context(), chi.URLParam(r, "shopkeeperId"), dr)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if !a.decodeOrReject(w, r, &req) {
		return
	}
	expense, err := a.service.RecordExpense(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	dr, err := a.queryRange(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	expenses, err := a.service.ListExpenses(r.Context(), chi.URLParam(r, "shopkeeperId"), dr)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

// handleDashboard serves the summary, or the monthly trend with type=chart.
func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dr, err := a.queryRange(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	shopkeeperID := chi.URLParam(r, "id")

	if r.URL.Query().Get("type") == "chart" {
		trend, err := a.service.MonthlyTrend(r.Context(), shopkeeperID, dr)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, trend)
		return
	}

	summary, err := a.service.DashboardSummary(r.Context(), shopkeeperID, dr)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type shopkeeperProfile struct {
	ShopName         string                  `json:"shop_name"`
	SubscriptionPlan domain.SubscriptionPlan `json:"subscription_plan"`
}

func (a *API) handleUpsertShopkeeper(w http.ResponseWriter, r *http.Request) {
	var profile shopkeeperProfile
	if !a.decodeOrReject(w, r, &profile) {
		return
	}
	shopkeeper, err := a.service.UpsertShopkeeper(r.Context(), domain.Shopkeeper{
		ID:               chi.URLParam(r, "id"),
		ShopName:         profile.ShopName,
		SubscriptionPlan: profile.SubscriptionPlan,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shopkeeper)
}

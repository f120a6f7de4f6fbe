package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harjot96/POS/internal/blob"
	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/logger"
	"github.com/harjot96/POS/internal/service"
	"github.com/harjot96/POS/internal/store/memory"
)

const testSecret = "test-secret-key-with-32-characters!!"

// newTestAPI builds a full API with an in-memory store, a real Authenticator
// and a real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	blobs, err := blob.NewLocal(t.TempDir(), "http://files.test")
	if err != nil {
		t.Fatalf("local blobs: %v", err)
	}
	return newTestAPIWith(t, service.Options{Blobs: blobs})
}

func newTestAPIWith(t *testing.T, opts service.Options) *API {
	t.Helper()
	opts.Logger = logger.Discard()
	svc := service.New(memory.NewSeeded(), opts)
	return New(svc, NewAuthenticator(testSecret, time.Hour), "*", logger.Discard())
}

func tokenFor(t *testing.T, api *API, shopkeeperID string, role string) string {
	t.Helper()
	token, _, err := api.auth.IssueToken(domain.Actor{ShopkeeperID: shopkeeperID, Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func do(t *testing.T, api *API, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (body: %s)", err, res.Body.String())
	}
}

func intakeBody(sku string, qty int) map[string]any {
	return map[string]any{
		"name":           "Product " + sku,
		"sku":            sku,
		"barcode":        "BC-" + sku,
		"category_id":    "cat-grocery",
		"price":          "2.50",
		"stock_quantity": qty,
		"purchase_price": "1.00",
		"selling_price":  "2.50",
	}
}

func intake(t *testing.T, api *API, token string, shopkeeperID string, sku string, qty int) service.IntakeResult {
	t.Helper()
	res := do(t, api, http.MethodPost, "/api/v1/inventory/"+shopkeeperID+"/stock", token, intakeBody(sku, qty))
	if res.Code != http.StatusCreated {
		t.Fatalf("intake expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var result service.IntakeResult
	decodeBody(t, res, &result)
	return result
}

func saleBody(shopkeeperID string, productID string, qty int, total string) map[string]any {
	return map[string]any{
		"shopkeeper_id":  shopkeeperID,
		"items":          []map[string]any{{"product_id": productID, "quantity": qty}},
		"total_amount":   total,
		"final_amount":   total,
		"payment_method": "Cash",
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	res := do(t, api, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body map[string]any
	decodeBody(t, res, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	api := newTestAPI(t)
	res := do(t, api, http.MethodGet, "/metrics", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "pos_http_requests_in_flight") {
		t.Fatalf("expected pos collectors in exposition")
	}
}

func TestIntakeThenSellThroughHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)
	result := intake(t, api, token, "shop-basic", "TEA", 3)
	if !result.Created {
		t.Fatalf("expected new product to be created")
	}

	res := do(t, api, http.MethodPost, "/api/v1/sales", token, saleBody("shop-basic", result.Product.ID, 2, "5.00"))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var sale domain.SaleRecord
	decodeBody(t, res, &sale)
	if sale.Items[0].ProductName != "Product TEA" {
		t.Fatalf("expected snapshotted product name, got %q", sale.Items[0].ProductName)
	}

	res = do(t, api, http.MethodGet, "/api/v1/sales/detail/"+sale.ID, token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("sale detail expected 200, got %d", res.Code)
	}

	res = do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("inventory expected 200, got %d", res.Code)
	}
	var listing struct {
		Items []domain.InventoryItem `json:"items"`
	}
	decodeBody(t, res, &listing)
	if len(listing.Items) != 1 || listing.Items[0].StockQuantity != 1 {
		t.Fatalf("expected one line with 1 left, got %+v", listing.Items)
	}
	if listing.Items[0].CategoryName != "Grocery" {
		t.Fatalf("expected joined category name, got %q", listing.Items[0].CategoryName)
	}
}

func TestInsufficientStockReturns409WithProduct(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)
	result := intake(t, api, token, "shop-basic", "MILK", 1)

	res := do(t, api, http.MethodPost, "/api/v1/sales", token, saleBody("shop-basic", result.Product.ID, 2, "5.00"))
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", res.Code, res.Body.String())
	}
	var body map[string]any
	decodeBody(t, res, &body)
	if body["product_id"] != result.Product.ID {
		t.Fatalf("expected failing product id in body, got %v", body)
	}
}

func TestCommitSaleValidationReturnsFields(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)

	res := do(t, api, http.MethodPost, "/api/v1/sales", token, map[string]any{"notes": "empty"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var body struct {
		Fields []string `json:"fields"`
	}
	decodeBody(t, res, &body)
	want := []string{"shopkeeper_id", "total_amount", "payment_method", "final_amount", "items"}
	if strings.Join(body.Fields, ",") != strings.Join(want, ",") {
		t.Fatalf("expected fields %v, got %v", want, body.Fields)
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)
	body := saleBody("shop-basic", "p1", 1, "1")
	body["coupon"] = "FREE"

	res := do(t, api, http.MethodPost, "/api/v1/sales", token, body)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestOtherShopkeeperForbiddenAdminAllowed(t *testing.T) {
	api := newTestAPI(t)
	owner := tokenFor(t, api, "shop-basic", service.RoleUser)
	intake(t, api, owner, "shop-basic", "RICE", 4)

	other := tokenFor(t, api, "shop-premium", service.RoleStaff)
	if res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic", other, nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for other shopkeeper, got %d", res.Code)
	}

	admin := tokenFor(t, api, "ops", service.RoleAdmin)
	if res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic", admin, nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", res.Code)
	}
}

func TestMissingInventoryReturns404(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-empty", service.RoleUser)
	if res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-empty", token, nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestRegisterProductStrictConflict(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)
	product := map[string]any{
		"shopkeeper_id": "shop-basic",
		"name":          "Soap",
		"sku":           "SOAP",
		"barcode":       "BC-SOAP",
		"price":         "1.20",
	}

	if res := do(t, api, http.MethodPost, "/api/v1/products", token, product); res.Code != http.StatusCreated {
		t.Fatalf("first register expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	if res := do(t, api, http.MethodPost, "/api/v1/products", token, product); res.Code != http.StatusOK {
		t.Fatalf("repeat register expected 200, got %d", res.Code)
	}
	if res := do(t, api, http.MethodPost, "/api/v1/products?strict=true", token, product); res.Code != http.StatusConflict {
		t.Fatalf("strict register expected 409, got %d", res.Code)
	}
}

func TestInventoryStatsThreshold(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)
	intake(t, api, token, "shop-basic", "A", 0)
	intake(t, api, token, "shop-basic", "B", 3)
	intake(t, api, token, "shop-basic", "C", 30)

	res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic/stats?threshold=5", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var stats domain.InventoryStats
	decodeBody(t, res, &stats)
	if stats.TotalProducts != 3 || stats.OutOfStock != 1 || stats.LowInStock != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic/stats?threshold=x", token, nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad threshold, got %d", res.Code)
	}
}

func TestProductFinderAndFastSelling(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)
	low := intake(t, api, token, "shop-basic", "LOW", 2)
	intake(t, api, token, "shop-basic", "PLENTY", 50)
	do(t, api, http.MethodPost, "/api/v1/sales", token, saleBody("shop-basic", low.Product.ID, 1, "2.50"))

	res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic/product-finder?filter=Low+stock", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	var found struct {
		Products []domain.ProductView `json:"products"`
	}
	decodeBody(t, res, &found)
	if len(found.Products) != 1 || found.Products[0].ID != low.Product.ID {
		t.Fatalf("expected only the low stock product, got %+v", found.Products)
	}

	res = do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic/fast-selling", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var fast struct {
		Products []domain.ProductView `json:"products"`
	}
	decodeBody(t, res, &fast)
	if len(fast.Products) == 0 || fast.Products[0].TotalSold != 1 {
		t.Fatalf("expected sold product first, got %+v", fast.Products)
	}

	if res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic/product-finder?filter=Trending", token, nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown filter, got %d", res.Code)
	}
}

func TestDashboardSummaryAndChart(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-premium", service.RoleUser)
	result := intake(t, api, token, "shop-premium", "JUICE", 10)
	do(t, api, http.MethodPost, "/api/v1/sales", token, saleBody("shop-premium", result.Product.ID, 2, "5.00"))
	res := do(t, api, http.MethodPost, "/api/v1/expenses", token, map[string]any{
		"shopkeeper_id":  "shop-premium",
		"amount":         "1.50",
		"category_id":    "rent",
		"payment_method": "Cash",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expense expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = do(t, api, http.MethodGet, "/api/v1/shopkeeper/shop-premium", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("dashboard expected 200, got %d", res.Code)
	}
	var summary domain.DashboardSummary
	decodeBody(t, res, &summary)
	if summary.SaleCount != 1 || !summary.TotalProfit.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("unexpected summary %+v", summary)
	}

	res = do(t, api, http.MethodGet, "/api/v1/shopkeeper/shop-premium?type=chart", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("chart expected 200, got %d", res.Code)
	}
	var trend domain.MonthlyTrend
	decodeBody(t, res, &trend)
	if len(trend.Months) != 1 {
		t.Fatalf("expected one month bucket, got %+v", trend.Months)
	}

	res = do(t, api, http.MethodGet, "/api/v1/expenses/shop-premium", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expenses expected 200, got %d", res.Code)
	}
}

func TestSalesTimelineRejectsBadDate(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)

	res := do(t, api, http.MethodGet, "/api/v1/sales/shop-basic?startDate=yesterday", token, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	res = do(t, api, http.MethodGet, "/api/v1/sales/shop-basic?startDate=2026-01-01&endDate=2026-01-31", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	var timeline domain.SalesTimeline
	decodeBody(t, res, &timeline)
	if timeline.Plan != domain.PlanBasic {
		t.Fatalf("expected basic plan, got %q", timeline.Plan)
	}
}

func multipartIntake(t *testing.T, fields map[string]any, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	payload, _ := json.Marshal(fields)
	if err := form.WriteField("payload", string(payload)); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if image != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="tea.png"`)
		header.Set("Content-Type", "image/png")
		part, err := form.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(image)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &buf, form.FormDataContentType()
}

func TestMultipartIntakeStoresImage(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)
	body, contentType := multipartIntake(t, intakeBody("TEA", 5), []byte("\x89PNG\r\n\x1a\nfake"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/shop-basic/stock", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var result service.IntakeResult
	decodeBody(t, res, &result)
	if !strings.HasPrefix(result.Product.ImageRef, "http://files.test/products/shop-basic/") {
		t.Fatalf("expected stored image url, got %q", result.Product.ImageRef)
	}
	if result.Inventory.Lines[0].ImageRef != result.Product.ImageRef {
		t.Fatalf("expected image copied onto stock line")
	}
}

func TestImageWithoutObjectStorageReturns503(t *testing.T) {
	api := newTestAPIWith(t, service.Options{})
	token := tokenFor(t, api, "shop-basic", service.RoleUser)
	body, contentType := multipartIntake(t, intakeBody("TEA", 5), []byte("\x89PNG\r\n\x1a\nfake"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/shop-basic/stock", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "no object storage") {
		t.Fatalf("expected generic 5xx body, got %s", res.Body.String())
	}
}

func TestAddStockLineRoute(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-basic", service.RoleUser)
	res := do(t, api, http.MethodPost, "/api/v1/products", token, map[string]any{
		"shopkeeper_id": "shop-basic",
		"name":          "Salt",
		"sku":           "SALT",
		"barcode":       "BC-SALT",
		"price":         "0.80",
	})
	var created struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, res, &created)

	line := map[string]any{"stock_quantity": 7, "purchase_price": "0.40", "selling_price": "0.80"}
	path := "/api/v1/inventory/shop-basic/stock/" + created.Product.ID
	if res := do(t, api, http.MethodPost, path, token, line); res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	if res := do(t, api, http.MethodPost, path, token, line); res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second line, got %d", res.Code)
	}
}

func TestReadyzWithMemoryStore(t *testing.T) {
	api := newTestAPI(t)
	if res := do(t, api, http.MethodGet, "/readyz", "", nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUpsertShopkeeperChangesPlan(t *testing.T) {
	api := newTestAPI(t)
	profile := map[string]any{"shop_name": "Corner Store", "subscription_plan": "Premium"}

	owner := tokenFor(t, api, "shop-basic", service.RoleUser)
	if res := do(t, api, http.MethodPut, "/api/v1/shopkeeper/shop-basic", owner, profile); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", res.Code)
	}

	admin := tokenFor(t, api, "ops", service.RoleAdmin)
	if res := do(t, api, http.MethodPut, "/api/v1/shopkeeper/shop-basic", admin, map[string]any{"subscription_plan": "Gold"}); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown plan, got %d", res.Code)
	}
	if res := do(t, api, http.MethodPut, "/api/v1/shopkeeper/shop-basic", admin, profile); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}

	res := do(t, api, http.MethodGet, "/api/v1/sales/shop-basic", owner, nil)
	var timeline domain.SalesTimeline
	decodeBody(t, res, &timeline)
	if timeline.Plan != domain.PlanPremium {
		t.Fatalf("expected premium plan after upsert, got %q", timeline.Plan)
	}
}

func TestEnsureInventoryAndSalesHistory(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, "shop-new", service.RoleUser)

	res := do(t, api, http.MethodPost, "/api/v1/inventory/shop-new", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("ensure inventory expected 200, got %d", res.Code)
	}
	if res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-new", token, nil); res.Code != http.StatusOK {
		t.Fatalf("expected empty inventory listing, got %d", res.Code)
	}

	result := intake(t, api, token, "shop-new", "BREAD", 2)
	do(t, api, http.MethodPost, "/api/v1/sales", token, saleBody("shop-new", result.Product.ID, 1, "2.50"))

	res = do(t, api, http.MethodGet, "/api/v1/sales/shop-new/history", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("history expected 200, got %d", res.Code)
	}
	var history struct {
		Sales []domain.SaleRecord `json:"sales"`
	}
	decodeBody(t, res, &history)
	if len(history.Sales) != 1 {
		t.Fatalf("expected one sale, got %d", len(history.Sales))
	}
}

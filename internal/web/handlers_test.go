package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/throwingafit/storefront/internal/auth"
	"github.com/throwingafit/storefront/internal/forms"
	"github.com/throwingafit/storefront/internal/media"
	"github.com/throwingafit/storefront/internal/shopping"
	"github.com/throwingafit/storefront/internal/table"
)

// --- fakes -----------------------------------------------------------------

type fakeSource struct {
	rows    []map[string]any
	queries []table.Query
}

func (f *fakeSource) List(_ context.Context, q table.Query) (table.Page, error) {
	f.queries = append(f.queries, q)
	return table.Page{Rows: f.rows, Total: len(f.rows)}, nil
}

func (f *fakeSource) Create(_ context.Context, _ string, record map[string]any) (map[string]any, error) {
	record["id"] = "new1"
	f.rows = append(f.rows, record)
	return record, nil
}

func (f *fakeSource) Update(_ context.Context, _, id string, record map[string]any) (map[string]any, error) {
	record["id"] = id
	return record, nil
}

func (f *fakeSource) Delete(_ context.Context, _, id string) error {
	for i, row := range f.rows {
		if row["id"] == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("record not found")
}

func (f *fakeSource) Stream(_ context.Context, q table.Query, fn func(map[string]any) error) error {
	for _, row := range f.rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

type fakeForms struct {
	lastFormID   string
	lastFormData map[string]any
	result       forms.Result
	err          error
}

func (f *fakeForms) Submit(_ context.Context, formID string, formData map[string]any) (forms.Result, error) {
	f.lastFormID = formID
	f.lastFormData = formData
	return f.result, f.err
}

type fakeShopping struct {
	lastProducts []shopping.CheckoutProduct
	session      *shopping.CheckoutSession
	err          error
}

func (f *fakeShopping) CreateCheckoutSession(_ context.Context, products []shopping.CheckoutProduct, _, _, _ string) (*shopping.CheckoutSession, error) {
	f.lastProducts = products
	return f.session, f.err
}

func (f *fakeShopping) Products(context.Context) ([]shopping.Product, error) {
	return []shopping.Product{{ID: "p1", Name: "Hoodie"}}, nil
}

func (f *fakeShopping) PurchaseDetail(context.Context, string) (*shopping.PurchaseDetail, error) {
	return &shopping.PurchaseDetail{Type: "digital", DownloadURL: "https://cdn.example.com/f.zip"}, nil
}

type fakeChat struct{ reply string }

func (f *fakeChat) Reply(context.Context, string) string { return f.reply }

type fakeMedia struct{}

func (fakeMedia) Store(_ context.Context, prefix, filename string, _ io.Reader, size int64) (*media.Upload, error) {
	return &media.Upload{Key: prefix + "/abc.jpg", URL: "https://cdn.example.com/" + prefix + "/abc.jpg", Size: size}, nil
}

// fakeSessions grants a fixed user; admin controls the owner check.
type fakeSessions struct {
	user  *auth.User
	admin bool
}

func (f *fakeSessions) UserFromRequest(*http.Request) (*auth.User, error) {
	if f.user == nil {
		return nil, auth.ErrNoSession
	}
	return f.user, nil
}

func (f *fakeSessions) IsAdmin(*auth.User) bool { return f.admin }

func (f *fakeSessions) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.user == nil {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), f.user)))
	})
}

func (f *fakeSessions) RequireAdmin(next http.Handler) http.Handler {
	return f.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.admin {
			http.Error(w, `{"error":"admin access required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func newTestServer(t *testing.T, sessions *fakeSessions) (*Server, *fakeSource, *fakeForms, *fakeShopping) {
	t.Helper()
	src := &fakeSource{rows: []map[string]any{
		{"id": "r1", "name": "Hoodie", "price": 55.0},
	}}
	fs := &fakeForms{result: forms.Result{Success: true, Message: "Form submitted and emails sent successfully"}}
	shop := &fakeShopping{session: &shopping.CheckoutSession{CheckoutURL: "https://pay.example.com/cs_1", SessionID: "cs_1"}}

	s := NewServer(Deps{
		Source:   src,
		Exporter: src,
		Forms:    fs,
		Shopping: shop,
		Chat:     &fakeChat{reply: "Layer it with a trench."},
		Media:    fakeMedia{},
		Sessions: sessions,
	})
	return s, src, fs, shop
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(encoded)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)
	return w
}

// --- tests -----------------------------------------------------------------

func TestFormSubmit(t *testing.T) {
	s, _, fs, _ := newTestServer(t, &fakeSessions{})

	// The body is flat: formId alongside the form's own fields.
	w := doJSON(t, s, http.MethodPost, "/api/forms/submit", map[string]any{
		"formId": "newsletter_signup",
		"email":  "a@b.com",
		"name":   "Ada",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if fs.lastFormID != "newsletter_signup" {
		t.Errorf("forwarded formId = %q", fs.lastFormID)
	}
	if fs.lastFormData["email"] != "a@b.com" || fs.lastFormData["name"] != "Ada" {
		t.Errorf("forwarded form data = %v", fs.lastFormData)
	}
	if _, leaked := fs.lastFormData["formId"]; leaked {
		t.Error("formId must not leak into the form data")
	}
}

func TestFormSubmitNestedShape(t *testing.T) {
	s, _, fs, _ := newTestServer(t, &fakeSessions{})

	w := doJSON(t, s, http.MethodPost, "/api/forms/submit", map[string]any{
		"formId":   "newsletter_signup",
		"formData": map[string]any{"email": "a@b.com"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if fs.lastFormData["email"] != "a@b.com" {
		t.Errorf("forwarded form data = %v", fs.lastFormData)
	}
}

func TestFormSubmitRejectsInvalidData(t *testing.T) {
	s, _, fs, _ := newTestServer(t, &fakeSessions{})

	w := doJSON(t, s, http.MethodPost, "/api/forms/submit", map[string]any{
		"formId": "newsletter_signup",
		"email":  "not-an-email",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp struct {
		FieldErrors map[string]string `json:"fieldErrors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.FieldErrors["email"] == "" {
		t.Errorf("expected inline email error, got %s", w.Body.String())
	}
	if fs.lastFormID != "" {
		t.Error("invalid submission must not reach the form service")
	}
}

func TestFormSubmitMissingFormID(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{})
	w := doJSON(t, s, http.MethodPost, "/api/forms/submit", map[string]any{"formData": map[string]any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTableListPublic(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{})

	w := doJSON(t, s, http.MethodGet, "/api/tables/products?page=1&limit=50", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp tableListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTableListUnknownTable(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{})
	w := doJSON(t, s, http.MethodGet, "/api/tables/secrets", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestTableMutationsRequireAdmin(t *testing.T) {
	// Signed in, but not the owner.
	s, _, _, _ := newTestServer(t, &fakeSessions{user: &auth.User{Email: "ada@b.com"}})

	w := doJSON(t, s, http.MethodPost, "/api/tables/products", map[string]any{"name": "Cap", "price": 15})
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin create status = %d, want 403", w.Code)
	}

	w = doJSON(t, s, http.MethodDelete, "/api/tables/products/r1", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin delete status = %d, want 403", w.Code)
	}
}

func TestTableCreateAsAdmin(t *testing.T) {
	s, src, _, _ := newTestServer(t, &fakeSessions{user: &auth.User{Email: "owner@b.com"}, admin: true})

	w := doJSON(t, s, http.MethodPost, "/api/tables/products", map[string]any{
		"name":  "Cap",
		"price": 15.0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(src.rows) != 2 {
		t.Errorf("row not stored: %d rows", len(src.rows))
	}
}

func TestTableCreateMissingRequiredField(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{user: &auth.User{Email: "owner@b.com"}, admin: true})

	w := doJSON(t, s, http.MethodPost, "/api/tables/products", map[string]any{"name": "Cap"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", w.Code, w.Body.String())
	}
}

func TestTableExportCSV(t *testing.T) {
	s, src, _, _ := newTestServer(t, &fakeSessions{user: &auth.User{Email: "owner@b.com"}, admin: true})
	longName := strings.Repeat("x", 150)
	src.rows = append(src.rows, map[string]any{"id": "r2", "name": longName, "price": 80.0})

	w := doJSON(t, s, http.MethodGet, "/api/tables/products/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Hoodie") {
		t.Errorf("export missing row data: %s", body)
	}
	// Exports carry full values, never the truncated display rendering.
	if !strings.Contains(body, longName) {
		t.Error("export truncated a long value")
	}
	if strings.Contains(body, "...") {
		t.Errorf("export contains display ellipsis: %s", body)
	}
}

// Concurrent list requests must not share query state: a sort or search set
// by one request cannot leak into the next.
func TestTableListQueryIsolation(t *testing.T) {
	s, src, _, _ := newTestServer(t, &fakeSessions{})

	w := doJSON(t, s, http.MethodGet, "/api/tables/products?search=tee&sort=name:desc&page=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/tables/products", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second request status = %d", w.Code)
	}

	if len(src.queries) != 2 {
		t.Fatalf("queries recorded = %d", len(src.queries))
	}
	first, second := src.queries[0], src.queries[1]
	if first.Search != "tee" || first.Sort != "name:desc" || first.Page != 3 {
		t.Errorf("first query = %+v", first)
	}
	if second.Search != "" || second.Sort != "" || second.Page != 1 {
		t.Errorf("second query inherited state from the first: %+v", second)
	}
}

func multipartFile(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("image-bytes")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestMediaUploadIsPublic(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{})

	body, contentType := multipartFile(t, "fit.jpg")
	r := httptest.NewRequest(http.MethodPost, "/api/upload/media", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("anonymous media upload status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "media/") {
		t.Errorf("upload body = %s", w.Body.String())
	}
}

func TestFileUploadRequiresAdmin(t *testing.T) {
	// Signed in, but not the owner.
	s, _, _, _ := newTestServer(t, &fakeSessions{user: &auth.User{Email: "ada@b.com"}})

	body, contentType := multipartFile(t, "export.pdf")
	r := httptest.NewRequest(http.MethodPost, "/api/upload/file", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin file upload status = %d, want 403", w.Code)
	}

	// Anonymous: 401 before the admin check.
	s2, _, _, _ := newTestServer(t, &fakeSessions{})
	body, contentType = multipartFile(t, "export.pdf")
	r = httptest.NewRequest(http.MethodPost, "/api/upload/file", body)
	r.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	s2.Router().ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous file upload status = %d, want 401", w.Code)
	}

	// The owner reaches the handler.
	s3, _, _, _ := newTestServer(t, &fakeSessions{user: &auth.User{Email: "owner@b.com"}, admin: true})
	body, contentType = multipartFile(t, "export.pdf")
	r = httptest.NewRequest(http.MethodPost, "/api/upload/file", body)
	r.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	s3.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("admin file upload status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestCheckoutMergesAndDropsLines(t *testing.T) {
	s, _, _, shop := newTestServer(t, &fakeSessions{})

	w := doJSON(t, s, http.MethodPost, "/api/create-checkout-session", map[string]any{
		"products": []map[string]any{
			{"productId": "p1", "quantity": 2},
			{"productId": "p1", "quantity": 1},
			{"productId": "p2", "quantity": 0},
		},
		"successRouter": "/success",
		"cancelRouter":  "/cancel",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	if len(shop.lastProducts) != 1 {
		t.Fatalf("products sent upstream = %+v", shop.lastProducts)
	}
	if shop.lastProducts[0].ProductID != "p1" || shop.lastProducts[0].Quantity != 3 {
		t.Errorf("merged line = %+v", shop.lastProducts[0])
	}
}

func TestCheckoutRequiresProducts(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{})
	w := doJSON(t, s, http.MethodPost, "/api/create-checkout-session", map[string]any{"products": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestChatbot(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{})

	w := doJSON(t, s, http.MethodPost, "/api/chatbot", map[string]any{"message": "what should I wear?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response != "Layer it with a trench." {
		t.Errorf("response = %q", resp.Response)
	}

	w = doJSON(t, s, http.MethodPost, "/api/chatbot", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", w.Code)
	}
}

func TestAdminStatus(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{user: &auth.User{Email: "ada@b.com"}, admin: false})

	w := doJSON(t, s, http.MethodGet, "/api/admin/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"isAdmin":false`) {
		t.Errorf("body = %s", w.Body.String())
	}

	// Anonymous visitors get 401, not an isAdmin=false answer.
	s2, _, _, _ := newTestServer(t, &fakeSessions{})
	w = doJSON(t, s2, http.MethodGet, "/api/admin/status", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
}

func TestAdminSchemas(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{user: &auth.User{Email: "owner@b.com"}, admin: true})

	w := doJSON(t, s, http.MethodGet, "/api/admin/schemas", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var names []string
	if err := json.Unmarshal(w.Body.Bytes(), &names); err != nil {
		t.Fatal(err)
	}
	if len(names) < 3 {
		t.Errorf("schema names = %v", names)
	}

	w = doJSON(t, s, http.MethodGet, "/api/admin/schemas/products", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("schema fetch status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "properties") {
		t.Errorf("schema body = %s", w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/api/admin/schemas/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown schema status = %d, want 404", w.Code)
	}
}

func TestProductsAndPurchaseDetail(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{})

	w := doJSON(t, s, http.MethodGet, "/api/products", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("products status = %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/products/purchase-detail?sessionId=cs_1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("purchase detail status = %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/products/purchase-detail", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing sessionId status = %d, want 400", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _, _, _ := newTestServer(t, &fakeSessions{})
	w := doJSON(t, s, http.MethodGet, "/api/products", nil)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

package buyers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/propstack/buyer-leads/internal/auth"
	"github.com/propstack/buyer-leads/pkg/logging"
)

// testRouter mounts the handler the way the API router does, with a stub
// middleware that places the given actor on the request context.
func testRouter(repo Repository, actor *auth.Actor) chi.Router {
	logger := logging.New("error")
	h := NewHandler(NewService(repo, logger, nil), NewImporter(repo, logger, nil), logger)

	r := chi.NewRouter()
	if actor != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithActor(req.Context(), *actor)))
			})
		})
	}
	r.Get("/buyers", h.List)
	r.Post("/buyers", h.Create)
	r.Get("/buyers/export", h.Export)
	r.Post("/buyers/import", h.Import)
	r.Get("/buyers/{id}", h.Get)
	r.Put("/buyers/{id}", h.Update)
	r.Delete("/buyers/{id}", h.Delete)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createViaAPI(t *testing.T, router http.Handler) *Buyer {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/buyers", validInput())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var b Buyer
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return &b
}

func TestHandler_CreateReturns201(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	b := createViaAPI(t, router)
	if b.ID == "" || b.Status != StatusNew {
		t.Errorf("unexpected created record: %+v", b)
	}
}

func TestHandler_CreateValidationFailure(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	in := validInput()
	in.City = "Delhi"
	rec := doJSON(t, router, http.MethodPost, "/buyers", in)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Error  string       `json:"error"`
		Fields []FieldError `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if len(resp.Fields) == 0 || resp.Fields[0].Field != "city" {
		t.Errorf("expected a city violation, got %+v", resp.Fields)
	}
}

func TestHandler_CreateUnauthorized(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), nil)
	rec := doJSON(t, router, http.MethodPost, "/buyers", validInput())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandler_ListEnvelope(t *testing.T) {
	repo := NewInMemoryRepository()
	router := testRouter(repo, &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	for i := 0; i < PageSize+2; i++ {
		createViaAPI(t, router)
	}

	rec := doJSON(t, router, http.MethodGet, "/buyers?page=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Total != PageSize+2 || resp.Pagination.TotalPages != 2 {
		t.Errorf("unexpected pagination: %+v", resp.Pagination)
	}
	if len(resp.Buyers) != 2 {
		t.Errorf("expected 2 records on page 2, got %d", len(resp.Buyers))
	}
}

func TestHandler_ListRejectsUnknownEnumFilter(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	rec := doJSON(t, router, http.MethodGet, "/buyers?city=Delhi", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_GetWithHistory(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	b := createViaAPI(t, router)

	rec := doJSON(t, router, http.MethodGet, "/buyers/"+b.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		ID      string            `json:"id"`
		History []json.RawMessage `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != b.ID || len(resp.History) != 1 {
		t.Errorf("expected record with one history entry, got %+v", resp)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	rec := doJSON(t, router, http.MethodGet, "/buyers/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_UpdateStaleTokenReturns409(t *testing.T) {
	repo := NewInMemoryRepository()
	router := testRouter(repo, &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	b := createViaAPI(t, router)

	payload := map[string]any{"status": "Qualified", "updatedAt": Milli(b.UpdatedAt)}
	if rec := doJSON(t, router, http.MethodPut, "/buyers/"+b.ID, payload); rec.Code != http.StatusOK {
		t.Fatalf("first update: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	// Replay with the now-stale token.
	rec := doJSON(t, router, http.MethodPut, "/buyers/"+b.ID, payload)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body)
	}
}

func TestHandler_UpdateForbiddenReturns403(t *testing.T) {
	repo := NewInMemoryRepository()
	ownerRouter := testRouter(repo, &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	b := createViaAPI(t, ownerRouter)

	strangerRouter := testRouter(repo, &auth.Actor{ID: "u-2", Role: auth.RoleUser})
	payload := map[string]any{"status": "Qualified", "updatedAt": Milli(b.UpdatedAt)}
	rec := doJSON(t, strangerRouter, http.MethodPut, "/buyers/"+b.ID, payload)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_DeleteSuccess(t *testing.T) {
	repo := NewInMemoryRepository()
	router := testRouter(repo, &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	b := createViaAPI(t, router)

	rec := doJSON(t, router, http.MethodDelete, "/buyers/"+b.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("unexpected body: %s", rec.Body)
	}
	if _, err := repo.GetByID(context.Background(), b.ID); err == nil {
		t.Error("record should be deleted")
	}
}

func TestHandler_ImportMultipart(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), &auth.Actor{ID: "u-1", Role: auth.RoleUser})

	blob := csvHeader + "\n" +
		csvRow("Rajesh Kumar", "9876543210") +
		csvRow("Bad Phone", "12345")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "buyers.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte(blob)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/buyers/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var result ImportResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.TotalRows != 2 || result.InsertedCount != 1 || result.ErrorCount != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandler_ImportWithoutFileReturns400(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	rec := doJSON(t, router, http.MethodPost, "/buyers/import", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_ExportCSV(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	createViaAPI(t, router)

	rec := doJSON(t, router, http.MethodGet, "/buyers/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "buyers-export-") {
		t.Errorf("unexpected disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != csvHeader {
		t.Errorf("unexpected csv body: %s", rec.Body)
	}
}

func TestHandler_ExportXLSX(t *testing.T) {
	router := testRouter(NewInMemoryRepository(), &auth.Actor{ID: "u-1", Role: auth.RoleUser})
	createViaAPI(t, router)

	rec := doJSON(t, router, http.MethodGet, "/buyers/export?format=xlsx", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("unexpected content type %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected workbook bytes")
	}
}

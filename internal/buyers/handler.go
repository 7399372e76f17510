package buyers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/propstack/buyer-leads/internal/audit"
	"github.com/propstack/buyer-leads/internal/auth"
	"github.com/propstack/buyer-leads/pkg/logging"
)

// Handler handles HTTP requests for buyer records.
type Handler struct {
	service  *Service
	importer *Importer
	logger   *logging.Logger
}

// NewHandler creates a new buyers handler.
func NewHandler(service *Service, importer *Importer, logger *logging.Logger) *Handler {
	return &Handler{service: service, importer: importer, logger: logger}
}

// ListResponse is the paginated listing envelope.
type ListResponse struct {
	Buyers     []*Buyer   `json:"buyers"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the page window of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// List handles GET /buyers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, verr := parseListFilter(r)
	if verr != nil {
		h.writeError(w, verr)
		return
	}
	records, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if records == nil {
		records = []*Buyer{}
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Buyers: records,
		Pagination: Pagination{
			Page:       filter.Page,
			PageSize:   PageSize,
			Total:      total,
			TotalPages: (total + PageSize - 1) / PageSize,
		},
	})
}

// DetailResponse is a record plus its recent history.
type DetailResponse struct {
	*Buyer
	History []*audit.Entry `json:"history"`
}

// Get handles GET /buyers/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, history, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if history == nil {
		history = []*audit.Entry{}
	}
	writeJSON(w, http.StatusOK, DetailResponse{Buyer: b, History: history})
}

// Create handles POST /buyers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, &ValidationError{Fields: []FieldError{{Field: "", Message: "invalid request body"}}})
		return
	}
	b, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Update handles PUT /buyers/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	var in UpdateInput
	if err := decoder.Decode(&in); err != nil {
		h.writeError(w, &ValidationError{Fields: []FieldError{{Field: "", Message: "invalid request body"}}})
		return
	}
	b, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), &in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Delete handles DELETE /buyers/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Import handles POST /buyers/import with a multipart "file" field.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, ErrNoFile)
		return
	}
	defer file.Close()

	result, err := h.importer.Import(r.Context(), file, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Export handles GET /buyers/export, streaming the full filtered set as CSV
// or, with format=xlsx, as an Excel workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filter, verr := parseListFilter(r)
	if verr != nil {
		h.writeError(w, verr)
		return
	}
	records, err := h.service.Export(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	date := h.service.now().Format("2006-01-02")
	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "buyers-export-"+date+".xlsx"))
		if err := WriteXLSX(w, records); err != nil {
			h.logger.Error("failed to write xlsx export", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "buyers-export-"+date+".csv"))
	if err := WriteCSV(w, records); err != nil {
		h.logger.Error("failed to write csv export", "error", err)
	}
}

func parseListFilter(r *http.Request) (ListFilter, *ValidationError) {
	q := r.URL.Query()
	verr := &ValidationError{}

	f := ListFilter{
		Search: q.Get("search"),
		Page:   1,
		Sort:   "updatedAt",
		Order:  "desc",
	}
	f.City = enumParam(q.Get("city"), "city", Cities, verr)
	f.PropertyType = enumParam(q.Get("propertyType"), "propertyType", PropertyTypes, verr)
	f.Status = enumParam(q.Get("status"), "status", Statuses, verr)
	f.Timeline = enumParam(q.Get("timeline"), "timeline", Timelines, verr)

	if page := q.Get("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			verr.add("page", "must be a positive integer")
		} else {
			f.Page = n
		}
	}
	if sortKey := q.Get("sort"); sortKey != "" {
		if isOneOf(sortKey, SortKeys) {
			f.Sort = sortKey
		} else {
			verr.add("sort", "must be one of "+joinSet(SortKeys))
		}
	}
	if order := q.Get("order"); order != "" {
		if order == "asc" || order == "desc" {
			f.Order = order
		} else {
			verr.add("order", "must be asc or desc")
		}
	}

	if verr.empty() {
		return f, nil
	}
	return f, verr
}

func enumParam(value, field string, set []string, verr *ValidationError) string {
	if value == "" {
		return ""
	}
	if !isOneOf(value, set) {
		verr.add(field, "must be one of "+joinSet(set))
		return ""
	}
	return value
}

type errorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "buyer not found"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "record has been modified by another user, please refresh and try again"})
	case errors.Is(err, ErrNoFile), errors.Is(err, ErrRowLimitExceeded), errors.Is(err, ErrMalformedCSV):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package main

import (
	"embed"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"districtfinder/internal/browse"
	"districtfinder/internal/nces"
)

//go:embed templates
var templateFS embed.FS

// WebHandler handles HTMX HTML requests
type WebHandler struct {
	Service   nces.Service
	debounce  time.Duration
	templates *template.Template
}

// NewWebHandler creates a new WebHandler with parsed templates
func NewWebHandler(svc nces.Service, debounce time.Duration) (*WebHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	return &WebHandler{
		Service:   svc,
		debounce:  debounce,
		templates: tmpl,
	}, nil
}

func (h *WebHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("Template error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// SearchPage renders the main search page
func (h *WebHandler) SearchPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "search.html", map[string]interface{}{
		"Title":      "District Finder",
		"DebounceMs": h.debounce.Milliseconds(),
	})
}

// Districts renders the dropdown partial for the typed query. The page
// echoes back the district picked earlier as "selected" so a non-matching
// query does not report "No District Found" next to its schools.
func (h *WebHandler) Districts(w http.ResponseWriter, r *http.Request) {
	req := districtSearchRequest{
		Query:    r.URL.Query().Get("q"),
		Selected: r.URL.Query().Get("selected"),
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	var state browse.State
	if req.Selected != "" {
		state.Select(nces.District{LEAID: req.Selected})
	}
	if lookup, ok := state.SetQuery(req.Query); ok {
		districts, err := h.Service.SearchSchoolDistricts(r.Context(), lookup.Query)
		if err != nil && logger != nil {
			logger.Error("Web district search failed", "error", err, "query", lookup.Query)
		}
		state.ResolveDistricts(lookup.Seq, districts, err)
	}

	h.render(w, "districts.html", map[string]interface{}{
		"Area":    state.Dropdown().String(),
		"Matches": state.Matches(),
		"Error":   state.DistrictError(),
	})
}

// Schools renders one page of the selected district's schools
func (h *WebHandler) Schools(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	req := schoolListRequest{DistrictID: chi.URLParam(r, "leaid"), Page: page}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	district := nces.District{LEAID: req.DistrictID, Name: r.URL.Query().Get("name")}
	if district.Name == "" {
		district.Name = district.LEAID
	}

	var state browse.State
	lookup := state.Select(district)
	schools, err := h.Service.SearchSchools(r.Context(), lookup.Query, lookup.DistrictID)
	if err != nil && logger != nil {
		logger.Error("Web school listing failed", "error", err, "district_id", district.LEAID)
	}
	state.ResolveSchools(lookup.Seq, schools, err)
	state.SetPage(req.Page)

	h.render(w, "schools.html", map[string]interface{}{
		"District":       district,
		"Area":           state.SchoolsArea().String(),
		"Schools":        state.VisibleSchools(),
		"Error":          state.SchoolError(),
		"Page":           state.Page(),
		"TotalPages":     state.TotalPages(),
		"ShowPagination": state.ShowPagination(),
		"CanPrev":        state.CanPrev(),
		"CanNext":        state.CanNext(),
		"PrevPage":       state.Page() - 1,
		"NextPage":       state.Page() + 1,
	})
}

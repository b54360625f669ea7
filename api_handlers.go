package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"districtfinder/internal/browse"
	"districtfinder/internal/nces"
)

var validate = validator.New()

// districtSearchRequest is the validated form of a district search
type districtSearchRequest struct {
	Query    string `validate:"max=100"`
	Selected string `validate:"omitempty,alphanum,max=12"`
}

// schoolListRequest is the validated form of a school listing
type schoolListRequest struct {
	DistrictID string `validate:"required,alphanum,max=12"`
	Page       int    `validate:"gte=0"`
	Query      string `validate:"max=100"`
}

// parsePage reads the page parameter. Absent means the first page.
func parsePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	return strconv.Atoi(raw)
}

// APIHandler handles JSON API requests
type APIHandler struct {
	Service nces.Service
}

// SearchDistricts handles API district searches
func (h *APIHandler) SearchDistricts(w http.ResponseWriter, r *http.Request) {
	req := districtSearchRequest{Query: r.URL.Query().Get("q")}
	if err := validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid query: " + err.Error(),
		})
		return
	}

	districts := []nces.District{}
	if strings.TrimSpace(req.Query) != "" {
		var err error
		districts, err = h.Service.SearchSchoolDistricts(r.Context(), req.Query)
		if err != nil {
			if logger != nil {
				logger.Error("API district search failed", "error", err, "query", req.Query)
			}
			respondJSON(w, http.StatusBadGateway, map[string]string{
				"error": "District lookup failed: " + err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"districts": districts,
		"count":     len(districts),
		"query":     req.Query,
	})
}

// ListSchools handles API requests for one page of a district's schools
func (h *APIHandler) ListSchools(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid page: " + err.Error(),
		})
		return
	}

	req := schoolListRequest{
		DistrictID: chi.URLParam(r, "leaid"),
		Page:       page,
		Query:      r.URL.Query().Get("q"),
	}
	if err := validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	schools, err := h.Service.SearchSchools(r.Context(), req.Query, req.DistrictID)
	if err != nil {
		if logger != nil {
			logger.Error("API school listing failed", "error", err, "district_id", req.DistrictID)
		}
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"error": "School lookup failed: " + err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, browse.NewSchoolPage(req.DistrictID, schools, req.Page))
}

// respondJSON is a helper function to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("JSON encoding error: %v", err)
	}
}

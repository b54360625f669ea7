package nces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeatures(t *testing.T, w http.ResponseWriter, records []map[string]any) {
	t.Helper()
	features := make([]map[string]any, len(records))
	for i, r := range records {
		features[i] = map[string]any{"attributes": r}
	}
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{"features": features}))
}

func TestSearchSchoolDistricts(t *testing.T) {
	var gotWhere, gotCount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("where")
		gotCount = r.URL.Query().Get("resultRecordCount")
		writeFeatures(t, w, []map[string]any{
			{"LEAID": "0600001", "NAME": "Lincoln USD", "STATE": "CA"},
			{"LEAID": 3100002.0, "NAME": "Lincoln Public Schools"},
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{DistrictsURL: srv.URL, MaxDistricts: 25})
	districts, err := c.SearchSchoolDistricts(context.Background(), "Lincoln")
	require.NoError(t, err)

	assert.Equal(t, "UPPER(NAME) LIKE UPPER('%Lincoln%')", gotWhere)
	assert.Equal(t, "25", gotCount)
	require.Len(t, districts, 2)
	assert.Equal(t, "0600001", districts[0].LEAID)
	assert.Equal(t, "Lincoln USD", districts[0].Name)
	assert.Equal(t, "CA", districts[0].Attributes["STATE"])
	assert.Equal(t, "3100002", districts[1].LEAID)
	assert.Nil(t, districts[1].Attributes)
}

func TestSearchSchoolDistrictsBlankQuery(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{DistrictsURL: srv.URL})
	districts, err := c.SearchSchoolDistricts(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, districts)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSearchSchoolDistrictsEscapesQuotes(t *testing.T) {
	var gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("where")
		writeFeatures(t, w, nil)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{DistrictsURL: srv.URL})
	_, err := c.SearchSchoolDistricts(context.Background(), "O'Neill")
	require.NoError(t, err)
	assert.Equal(t, "UPPER(NAME) LIKE UPPER('%O''Neill%')", gotWhere)
}

func TestSearchSchoolsPaged(t *testing.T) {
	const total = 5
	var pageCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "LEAID='001'", q.Get("where"))

		if q.Get("returnCountOnly") == "true" {
			fmt.Fprintf(w, `{"count": %d}`, total)
			return
		}

		atomic.AddInt32(&pageCalls, 1)
		offset, _ := strconv.Atoi(q.Get("resultOffset"))
		size, _ := strconv.Atoi(q.Get("resultRecordCount"))
		var records []map[string]any
		for i := offset; i < offset+size && i < total; i++ {
			records = append(records, map[string]any{
				"NCESSCH": fmt.Sprintf("00100000%04d", i),
				"NAME":    fmt.Sprintf("School %d", i),
				"CITY":    "Lincoln",
				"STATE":   "NE",
				"LEAID":   "001",
			})
		}
		writeFeatures(t, w, records)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{SchoolsURL: srv.URL, PageSize: 2, Concurrency: 2})
	schools, err := c.SearchSchools(context.Background(), "", "001")
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&pageCalls))
	require.Len(t, schools, total)
	for i, s := range schools {
		assert.Equal(t, fmt.Sprintf("School %d", i), s.Name)
		assert.Equal(t, "001", s.LEAID)
	}
}

func TestSearchSchoolsWithNameFilter(t *testing.T) {
	var gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("where")
		fmt.Fprint(w, `{"count": 0}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{SchoolsURL: srv.URL})
	schools, err := c.SearchSchools(context.Background(), "elem", "001")
	require.NoError(t, err)
	assert.Empty(t, schools)
	assert.NotNil(t, schools)
	assert.Equal(t, "LEAID='001' AND UPPER(NAME) LIKE UPPER('%elem%')", gotWhere)
}

func TestSearchSchoolsRequiresDistrict(t *testing.T) {
	c := NewClient(ClientConfig{})
	_, err := c.SearchSchools(context.Background(), "", "")
	assert.Error(t, err)
}

func TestQueryErrors(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantAPI bool
	}{
		{name: "ArcGIS error envelope", status: http.StatusOK, body: `{"error": {"code": 400, "message": "Invalid query"}}`, wantAPI: true},
		{name: "Non-200 status", status: http.StatusBadGateway, body: "upstream down"},
		{name: "Malformed JSON", status: http.StatusOK, body: "<html>"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			c := NewClient(ClientConfig{DistrictsURL: srv.URL})
			_, err := c.SearchSchoolDistricts(context.Background(), "Lincoln")
			require.Error(t, err)

			var apiErr *APIError
			assert.Equal(t, tc.wantAPI, errors.As(err, &apiErr))
		})
	}
}

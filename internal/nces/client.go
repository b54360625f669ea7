package nces

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultDistrictsURL is the EDGE public LEA geocode feature service
	DefaultDistrictsURL = "https://nces.ed.gov/opengis/rest/services/K12_School_Locations/EDGE_GEOCODE_PUBLICLEA_2223/MapServer/0/query"
	// DefaultSchoolsURL is the EDGE public school geocode feature service
	DefaultSchoolsURL = "https://nces.ed.gov/opengis/rest/services/K12_School_Locations/EDGE_GEOCODE_PUBLICSCH_2223/MapServer/0/query"

	defaultMaxDistricts = 100
	defaultPageSize     = 1000
	defaultConcurrency  = 4
	defaultTimeout      = 30 * time.Second
)

// ClientConfig configures the ArcGIS lookup client. Zero values fall back
// to the defaults above.
type ClientConfig struct {
	DistrictsURL string
	SchoolsURL   string
	MaxDistricts int
	PageSize     int
	Concurrency  int
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client answers district and school lookups against the NCES EDGE
// ArcGIS feature services.
type Client struct {
	httpClient   *http.Client
	districtsURL string
	schoolsURL   string
	maxDistricts int
	pageSize     int
	concurrency  int
}

// APIError is the error envelope ArcGIS returns with a 200 status
type APIError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("arcgis error %d: %s (%s)", e.Code, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("arcgis error %d: %s", e.Code, e.Message)
}

type queryResponse struct {
	Features []struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"features"`
	Count                 *int      `json:"count,omitempty"`
	ExceededTransferLimit bool      `json:"exceededTransferLimit"`
	Error                 *APIError `json:"error,omitempty"`
}

// NewClient creates a new ArcGIS lookup client
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		httpClient:   cfg.HTTPClient,
		districtsURL: cfg.DistrictsURL,
		schoolsURL:   cfg.SchoolsURL,
		maxDistricts: cfg.MaxDistricts,
		pageSize:     cfg.PageSize,
		concurrency:  cfg.Concurrency,
	}

	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.districtsURL == "" {
		c.districtsURL = DefaultDistrictsURL
	}
	if c.schoolsURL == "" {
		c.schoolsURL = DefaultSchoolsURL
	}
	if c.maxDistricts <= 0 {
		c.maxDistricts = defaultMaxDistricts
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}

	return c
}

// SearchSchoolDistricts returns districts whose name contains queryText
func (c *Client) SearchSchoolDistricts(ctx context.Context, queryText string) ([]District, error) {
	if strings.TrimSpace(queryText) == "" {
		return []District{}, nil
	}

	params := baseParams(nameFilter(queryText))
	params.Set("orderByFields", "NAME")
	params.Set("resultRecordCount", strconv.Itoa(c.maxDistricts))

	var resp queryResponse
	if err := c.query(ctx, c.districtsURL, params, &resp); err != nil {
		return nil, fmt.Errorf("failed to search districts: %w", err)
	}

	districts := make([]District, 0, len(resp.Features))
	for _, f := range resp.Features {
		districts = append(districts, DistrictFromAttributes(f.Attributes))
	}
	return districts, nil
}

// SearchSchools returns every school in districtID, optionally narrowed by
// a name filter. Large districts are fetched as concurrent pages.
func (c *Client) SearchSchools(ctx context.Context, queryText, districtID string) ([]School, error) {
	if districtID == "" {
		return nil, fmt.Errorf("district id is required")
	}

	where := fmt.Sprintf("LEAID='%s'", escapeLiteral(districtID))
	if strings.TrimSpace(queryText) != "" {
		where += " AND " + nameFilter(queryText)
	}

	total, err := c.count(ctx, c.schoolsURL, where)
	if err != nil {
		return nil, fmt.Errorf("failed to count schools: %w", err)
	}
	if total == 0 {
		return []School{}, nil
	}

	pages := (total + c.pageSize - 1) / c.pageSize
	results := make([][]School, pages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := 0; i < pages; i++ {
		i := i
		g.Go(func() error {
			params := baseParams(where)
			params.Set("orderByFields", "NAME,NCESSCH")
			params.Set("resultOffset", strconv.Itoa(i*c.pageSize))
			params.Set("resultRecordCount", strconv.Itoa(c.pageSize))

			var resp queryResponse
			if err := c.query(gctx, c.schoolsURL, params, &resp); err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}

			page := make([]School, 0, len(resp.Features))
			for _, f := range resp.Features {
				page = append(page, SchoolFromAttributes(f.Attributes))
			}
			results[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch schools: %w", err)
	}

	schools := make([]School, 0, total)
	for _, page := range results {
		schools = append(schools, page...)
	}
	return schools, nil
}

func (c *Client) count(ctx context.Context, endpoint, where string) (int, error) {
	params := baseParams(where)
	params.Set("returnCountOnly", "true")

	var resp queryResponse
	if err := c.query(ctx, endpoint, params, &resp); err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, fmt.Errorf("count missing from response")
	}
	return *resp.Count, nil
}

// query performs a GET against an ArcGIS query endpoint and decodes the body
func (c *Client) query(ctx context.Context, endpoint string, params url.Values, out *queryResponse) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d (body: %s)", resp.StatusCode, truncate(body, 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse JSON (body: %s): %w", truncate(body, 200), err)
	}
	if out.Error != nil {
		return out.Error
	}
	return nil
}

func baseParams(where string) url.Values {
	params := url.Values{}
	params.Set("where", where)
	params.Set("outFields", "*")
	params.Set("returnGeometry", "false")
	params.Set("f", "json")
	return params
}

func nameFilter(queryText string) string {
	return fmt.Sprintf("UPPER(NAME) LIKE UPPER('%%%s%%')", escapeLiteral(queryText))
}

// escapeLiteral doubles single quotes for an SQL-92 string literal
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n])
	}
	return string(body)
}

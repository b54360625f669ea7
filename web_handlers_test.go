package main

import (
	"errors"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"districtfinder/internal/nces"
)

var hxGetAttr = regexp.MustCompile(`hx-get="([^"]*)"`)

// hxGets returns the hx-get targets in body as a browser would read them
func hxGets(t *testing.T, body string) []*url.URL {
	t.Helper()
	var targets []*url.URL
	for _, m := range hxGetAttr.FindAllStringSubmatch(body, -1) {
		u, err := url.Parse(html.UnescapeString(m[1]))
		require.NoError(t, err)
		targets = append(targets, u)
	}
	return targets
}

func TestSearchPage(t *testing.T) {
	t.Run("Immediate", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{}), "/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

		body := rec.Body.String()
		assert.Contains(t, body, "District Finder")
		assert.Contains(t, body, `hx-get="/districts"`)
		assert.NotContains(t, body, "delay:")
		assert.Contains(t, body, `hx-include="#selected"`)
		assert.Contains(t, body, `id="selected"`)
	})

	t.Run("Debounced", func(t *testing.T) {
		router, err := NewRouter(&mockService{}, 300*time.Millisecond)
		require.NoError(t, err)

		rec := doGet(t, router, "/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "delay:300ms")
	})
}

func TestWebDistricts(t *testing.T) {
	t.Run("Matches", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{districts: MockDistricts()}), "/districts?q=Lincoln")
		require.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.Contains(t, body, "Lincoln Unified")
		assert.Contains(t, body, "Lincoln Public Schools")
		assert.Contains(t, body, "/districts/0622500/schools")
		assert.NotContains(t, body, "No District Found")
	})

	t.Run("NoMatches", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{}), "/districts?q=Atlantis")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "No District Found")
	})

	t.Run("BlankQuery", func(t *testing.T) {
		svc := &mockService{districts: MockDistricts()}
		rec := doGet(t, newTestRouter(t, svc), "/districts?q=")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "No District Found")
		assert.NotContains(t, rec.Body.String(), "Lincoln")

		districtHits, _ := svc.hits()
		assert.Zero(t, districtHits)
	})

	t.Run("NoMatchesAfterSelection", func(t *testing.T) {
		svc := &mockService{}
		rec := doGet(t, newTestRouter(t, svc), "/districts?q=Zzz&selected=0622500")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "No District Found")

		// the query is still looked up so new matches can replace the selection
		districtHits, _ := svc.hits()
		assert.Equal(t, 1, districtHits)
	})

	t.Run("MatchesAfterSelection", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{districts: MockDistricts()}), "/districts?q=Lincoln&selected=0622500")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Lincoln Public Schools")
	})

	t.Run("BadSelection", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{}), "/districts?q=Zzz&selected=06-225")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("NameIsQueryEscaped", func(t *testing.T) {
		svc := &mockService{districts: []nces.District{{LEAID: "0622500", Name: "Smith & Jones #1 USD"}}}
		rec := doGet(t, newTestRouter(t, svc), "/districts?q=Smith")
		require.Equal(t, http.StatusOK, rec.Code)

		targets := hxGets(t, rec.Body.String())
		require.Len(t, targets, 1)
		assert.Equal(t, "/districts/0622500/schools", targets[0].Path)
		assert.Equal(t, "Smith & Jones #1 USD", targets[0].Query().Get("name"))
		assert.Empty(t, targets[0].Fragment)
	})

	t.Run("LookupFailure", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{districtErr: errors.New("upstream down")}), "/districts?q=Lincoln")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "District lookup failed: upstream down")
	})
}

func TestWebSchools(t *testing.T) {
	t.Run("FirstPage", func(t *testing.T) {
		svc := &mockService{schools: MockSchools("0622500", 25)}
		rec := doGet(t, newTestRouter(t, svc), "/districts/0622500/schools?name=Lincoln+Unified")
		require.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.Contains(t, body, "Schools in District: Lincoln Unified")
		assert.Contains(t, body, "School 01")
		assert.Contains(t, body, "School 10")
		assert.NotContains(t, body, "School 11")
		assert.Contains(t, body, "Page 1 of 3")
		assert.Contains(t, body, "disabled>Prev")
		assert.Equal(t, "0622500", svc.lastDistrict)
	})

	t.Run("SelectionEchoed", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{schools: MockSchools("0622500", 3)}), "/districts/0622500/schools?name=Lincoln+Unified")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `<input type="hidden" id="selected" name="selected" value="0622500" hx-swap-oob="true">`)
	})

	t.Run("SpecialCharacterName", func(t *testing.T) {
		svc := &mockService{schools: MockSchools("0622500", 25)}
		target := "/districts/0622500/schools?" + url.Values{"name": {"Smith & Jones #1 USD"}, "page": {"2"}}.Encode()
		rec := doGet(t, newTestRouter(t, svc), target)
		require.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.Contains(t, body, "Schools in District: Smith &amp; Jones #1 USD</h2>")
		assert.Contains(t, body, "Page 2 of 3")

		targets := hxGets(t, body)
		require.Len(t, targets, 2)
		for i, page := range []string{"1", "3"} {
			assert.Equal(t, "/districts/0622500/schools", targets[i].Path)
			assert.Equal(t, "Smith & Jones #1 USD", targets[i].Query().Get("name"))
			assert.Equal(t, page, targets[i].Query().Get("page"))
		}
	})

	t.Run("LastPage", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{schools: MockSchools("0622500", 25)}), "/districts/0622500/schools?name=Lincoln+Unified&page=3")
		require.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.Contains(t, body, "School 21")
		assert.Contains(t, body, "School 25")
		assert.Contains(t, body, "Page 3 of 3")
		assert.Contains(t, body, "disabled>Next")
	})

	t.Run("SinglePage", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{schools: MockSchools("3174390", 3)}), "/districts/3174390/schools?name=Lincoln+Public+Schools")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "Page 1 of 1")
	})

	t.Run("NoSchools", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{}), "/districts/0622500/schools?name=Lincoln+Unified")
		require.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.Contains(t, body, "Schools in District: Lincoln Unified")
		assert.Contains(t, body, "No Schools Found for District.")
		assert.NotContains(t, body, "<table>")
	})

	t.Run("NameFallsBackToID", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{}), "/districts/0622500/schools")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Schools in District: 0622500")
	})

	t.Run("LookupFailure", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{schoolErr: errors.New("timeout")}), "/districts/0622500/schools?name=X")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "School lookup failed: timeout")
	})

	t.Run("BadRequest", func(t *testing.T) {
		rec := doGet(t, newTestRouter(t, &mockService{}), "/districts/0622500/schools?page=two")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

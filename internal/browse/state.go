// Package browse holds the district/school browser as an explicit state
// machine. Front ends feed it events and carry out the lookups it requests;
// it never performs I/O itself.
package browse

import (
	"strings"

	"districtfinder/internal/nces"
)

// Kind identifies which lookup a request or result belongs to
type Kind int

const (
	DistrictLookup Kind = iota
	SchoolLookup
)

func (k Kind) String() string {
	switch k {
	case DistrictLookup:
		return "districts"
	case SchoolLookup:
		return "schools"
	default:
		return "unknown"
	}
}

// Request describes a lookup the front end must perform. Seq must be passed
// back unchanged with the result.
type Request struct {
	Kind       Kind
	Seq        uint64
	Query      string
	DistrictID string
}

// DropdownState is the display state of the district dropdown area
type DropdownState int

const (
	DropdownIdle DropdownState = iota
	DropdownLoading
	DropdownMatches
	DropdownNoMatches
	DropdownError
)

func (s DropdownState) String() string {
	return [...]string{"idle", "loading", "matches", "no-matches", "error"}[s]
}

// SchoolsState is the display state of the schools area
type SchoolsState int

const (
	SchoolsEmpty SchoolsState = iota
	SchoolsLoading
	SchoolsTable
	SchoolsNoResults
	SchoolsError
)

func (s SchoolsState) String() string {
	return [...]string{"empty", "loading", "table", "no-results", "error"}[s]
}

// lookup tracks the latest issued request of one kind
type lookup struct {
	seq     uint64
	pending bool
	err     error
}

func (l *lookup) issue() uint64 {
	l.seq++
	l.pending = true
	l.err = nil
	return l.seq
}

// cancel invalidates any in-flight request without issuing a new one
func (l *lookup) cancel() {
	l.seq++
	l.pending = false
}

// State is the view state of one browser instance. The zero value is ready
// to use. Methods must be called from a single goroutine.
type State struct {
	query    string
	matches  []nces.District
	schools  []nces.School
	selected *nces.District
	page     int

	districts lookup
	schoolsLk lookup
}

// SetQuery commits a new query. It returns the district lookup to perform,
// or false when the query is unchanged or blank.
func (s *State) SetQuery(q string) (Request, bool) {
	if q == s.query {
		return Request{}, false
	}
	s.query = q

	if strings.TrimSpace(q) == "" {
		s.matches = nil
		s.districts.cancel()
		s.districts.err = nil
		return Request{}, false
	}

	return Request{
		Kind:  DistrictLookup,
		Seq:   s.districts.issue(),
		Query: q,
	}, true
}

// ResolveDistricts applies a district lookup result. Results for anything
// but the latest request are discarded and false is returned.
func (s *State) ResolveDistricts(seq uint64, districts []nces.District, err error) bool {
	if seq != s.districts.seq || !s.districts.pending {
		return false
	}
	s.districts.pending = false

	if err != nil {
		s.districts.err = err
		s.matches = nil
		return true
	}
	s.matches = districts
	return true
}

// Select chooses a district, closes the dropdown and returns the school
// lookup to perform.
func (s *State) Select(d nces.District) Request {
	selected := d
	s.selected = &selected
	s.matches = nil
	s.districts.cancel()
	s.districts.err = nil

	return Request{
		Kind:       SchoolLookup,
		Seq:        s.schoolsLk.issue(),
		DistrictID: d.LEAID,
	}
}

// SelectIndex selects the i-th current match
func (s *State) SelectIndex(i int) (Request, bool) {
	if i < 0 || i >= len(s.matches) {
		return Request{}, false
	}
	return s.Select(s.matches[i]), true
}

// ResolveSchools applies a school lookup result, replacing the previous
// result set and resetting to the first page.
func (s *State) ResolveSchools(seq uint64, schools []nces.School, err error) bool {
	if seq != s.schoolsLk.seq || !s.schoolsLk.pending {
		return false
	}
	s.schoolsLk.pending = false
	s.page = 1

	if err != nil {
		s.schoolsLk.err = err
		s.schools = nil
		return true
	}
	s.schools = schools
	return true
}

// PrevPage moves one page back. It reports whether the page changed.
func (s *State) PrevPage() bool {
	if !s.CanPrev() {
		return false
	}
	s.page = s.Page() - 1
	return true
}

// NextPage moves one page forward. It reports whether the page changed.
func (s *State) NextPage() bool {
	if !s.CanNext() {
		return false
	}
	s.page = s.Page() + 1
	return true
}

// SetPage jumps to a 1-based page, clamped into range. Stateless front ends
// use it to restore the page a request asks for.
func (s *State) SetPage(page int) {
	s.page = ClampPage(page, len(s.schools))
}

func (s *State) Query() string { return s.query }
func (s *State) Matches() []nces.District { return s.matches }
func (s *State) Schools() []nces.School { return s.schools }
func (s *State) Selected() *nces.District { return s.selected }
func (s *State) DistrictsLoading() bool { return s.districts.pending }
func (s *State) SchoolsLoading() bool { return s.schoolsLk.pending }
func (s *State) DistrictError() error { return s.districts.err }
func (s *State) SchoolError() error { return s.schoolsLk.err }
func (s *State) TotalPages() int { return TotalPages(len(s.schools)) }
func (s *State) VisibleSchools() []nces.School { return Paginate(s.schools, s.Page()) }

// Loading reports whether either lookup is in flight
func (s *State) Loading() bool {
	return s.districts.pending || s.schoolsLk.pending
}

// Page returns the current 1-based page
func (s *State) Page() int {
	return ClampPage(s.page, len(s.schools))
}

func (s *State) CanPrev() bool {
	return s.Page() > 1
}

func (s *State) CanNext() bool {
	return s.Page() < s.TotalPages()
}

// ShowPagination reports whether Prev/Next controls are rendered
func (s *State) ShowPagination() bool {
	return s.TotalPages() > 1
}

// Dropdown derives the display state of the dropdown area
func (s *State) Dropdown() DropdownState {
	switch {
	case s.districts.pending:
		return DropdownLoading
	case s.districts.err != nil:
		return DropdownError
	case len(s.matches) > 0:
		return DropdownMatches
	// whitespace-only input counts as blank
	case strings.TrimSpace(s.query) != "" && s.selected == nil:
		return DropdownNoMatches
	default:
		return DropdownIdle
	}
}

// SchoolsArea derives the display state of the schools area
func (s *State) SchoolsArea() SchoolsState {
	switch {
	case s.selected == nil:
		return SchoolsEmpty
	case s.schoolsLk.pending:
		return SchoolsLoading
	case s.schoolsLk.err != nil:
		return SchoolsError
	case len(s.schools) > 0:
		return SchoolsTable
	default:
		return SchoolsNoResults
	}
}

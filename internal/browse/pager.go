package browse

import "districtfinder/internal/nces"

// PageSize is the number of schools shown per page
const PageSize = 10

// TotalPages returns ceil(n / PageSize). Zero items yield zero pages.
func TotalPages(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + PageSize - 1) / PageSize
}

// ClampPage bounds page to [1, max(1, TotalPages(n))]
func ClampPage(page, n int) int {
	last := TotalPages(n)
	if last < 1 {
		last = 1
	}
	if page < 1 {
		return 1
	}
	if page > last {
		return last
	}
	return page
}

// PageBounds returns the half-open slice bounds of a 1-based page over n items.
// The page is clamped first.
func PageBounds(page, n int) (start, end int) {
	page = ClampPage(page, n)
	start = (page - 1) * PageSize
	end = start + PageSize
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	return start, end
}

// Paginate returns the visible slice of items for a 1-based page
func Paginate[T any](items []T, page int) []T {
	start, end := PageBounds(page, len(items))
	return items[start:end]
}

// SchoolPage is one page of a district's schools in the shape the JSON API
// and CLI emit. Page 0 carries every school.
type SchoolPage struct {
	DistrictID string        `json:"district_id"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Total      int           `json:"total"`
	PageSize   int           `json:"page_size"`
	Schools    []nces.School `json:"schools"`
}

// NewSchoolPage slices schools for page, clamping it into range
func NewSchoolPage(districtID string, schools []nces.School, page int) SchoolPage {
	p := SchoolPage{
		DistrictID: districtID,
		TotalPages: TotalPages(len(schools)),
		Total:      len(schools),
		PageSize:   PageSize,
		Schools:    []nces.School{},
	}
	if page == 0 {
		p.PageSize = len(schools)
		p.Schools = append(p.Schools, schools...)
		return p
	}
	p.Page = ClampPage(page, len(schools))
	p.Schools = append(p.Schools, Paginate(schools, p.Page)...)
	return p
}

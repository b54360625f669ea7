package nces

import (
	"context"
	"fmt"
	"strconv"
)

// District is a local education agency as returned by a lookup
type District struct {
	LEAID      string         `json:"LEAID"`
	Name       string         `json:"NAME"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// School is a single school record as returned by a lookup
type School struct {
	NCESSCH    string         `json:"NCESSCH"`
	Name       string         `json:"NAME"`
	City       string         `json:"CITY"`
	State      string         `json:"STATE"`
	LEAID      string         `json:"LEAID,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Service is the data-lookup boundary the browser views consume.
// SearchSchools with an empty queryText returns every school in the district.
type Service interface {
	SearchSchoolDistricts(ctx context.Context, queryText string) ([]District, error)
	SearchSchools(ctx context.Context, queryText, districtID string) ([]School, error)
}

// DistrictFromAttributes builds a District from a raw attribute record.
// Known keys are lifted into fields; the remaining keys stay in Attributes.
func DistrictFromAttributes(attrs map[string]any) District {
	d := District{
		LEAID: attrString(attrs, "LEAID"),
		Name:  attrString(attrs, "NAME"),
	}
	d.Attributes = extraAttributes(attrs, "LEAID", "NAME")
	return d
}

// SchoolFromAttributes builds a School from a raw attribute record
func SchoolFromAttributes(attrs map[string]any) School {
	s := School{
		NCESSCH: attrString(attrs, "NCESSCH"),
		Name:    attrString(attrs, "NAME"),
		City:    attrString(attrs, "CITY"),
		State:   attrString(attrs, "STATE"),
		LEAID:   attrString(attrs, "LEAID"),
	}
	s.Attributes = extraAttributes(attrs, "NCESSCH", "NAME", "CITY", "STATE", "LEAID")
	return s
}

// attrString renders an attribute as a string. ArcGIS returns some id
// columns as numbers depending on the service version.
func attrString(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

func extraAttributes(attrs map[string]any, known ...string) map[string]any {
	skip := make(map[string]bool, len(known))
	for _, k := range known {
		skip[k] = true
	}

	var extra map[string]any
	for k, v := range attrs {
		if skip[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/fantasy"

	"districtfinder/internal/browse"
	"districtfinder/internal/nces"
)

// DistrictSearchInput is the input for the search_districts tool
type DistrictSearchInput struct {
	Query string `json:"query" description:"Part of the school district name, e.g. Lincoln"`
}

// SchoolListInput is the input for the list_schools tool
type SchoolListInput struct {
	DistrictID string `json:"district_id" description:"The LEAID of the district, as returned by search_districts"`
	Query      string `json:"query,omitempty" description:"Optional filter on school name"`
	Page       int    `json:"page,omitempty" description:"Page of 10 schools to return; 0 returns every school"`
}

// NewTools creates the lookup tools the ask agent can call
func NewTools(svc nces.Service) []fantasy.AgentTool {
	return []fantasy.AgentTool{
		fantasy.NewAgentTool(
			"search_districts",
			"Search US public school districts by name. Returns LEAID, name and attributes for each match.",
			func(ctx context.Context, in DistrictSearchInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return searchDistricts(ctx, svc, in)
			},
		),
		fantasy.NewAgentTool(
			"list_schools",
			"List the schools in a district, 10 per page. Returns NCES id, name, city and state for each school.",
			func(ctx context.Context, in SchoolListInput, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
				return listSchools(ctx, svc, in)
			},
		),
	}
}

func searchDistricts(ctx context.Context, svc nces.Service, in DistrictSearchInput) (fantasy.ToolResponse, error) {
	if strings.TrimSpace(in.Query) == "" {
		return fantasy.NewTextErrorResponse("query parameter is required"), nil
	}

	districts, err := svc.SearchSchoolDistricts(ctx, in.Query)
	if err != nil {
		return fantasy.NewTextErrorResponse(fmt.Sprintf("district lookup failed: %v", err)), nil
	}
	if len(districts) == 0 {
		return fantasy.NewTextResponse(fmt.Sprintf("No District Found for %q", in.Query)), nil
	}

	return jsonResponse(map[string]interface{}{
		"districts": districts,
		"count":     len(districts),
	})
}

func listSchools(ctx context.Context, svc nces.Service, in SchoolListInput) (fantasy.ToolResponse, error) {
	if in.DistrictID == "" {
		return fantasy.NewTextErrorResponse("district_id parameter is required"), nil
	}
	if in.Page < 0 {
		return fantasy.NewTextErrorResponse("page must not be negative"), nil
	}

	schools, err := svc.SearchSchools(ctx, in.Query, in.DistrictID)
	if err != nil {
		return fantasy.NewTextErrorResponse(fmt.Sprintf("school lookup failed: %v", err)), nil
	}

	return jsonResponse(browse.NewSchoolPage(in.DistrictID, schools, in.Page))
}

func jsonResponse(v interface{}) (fantasy.ToolResponse, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fantasy.ToolResponse{}, fmt.Errorf("failed to encode result as JSON: %w", err)
	}
	return fantasy.NewTextResponse(string(jsonBytes)), nil
}

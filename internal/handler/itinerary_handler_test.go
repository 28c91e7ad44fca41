package handler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmiles/awardengine/internal/model"
)

func TestParseFilterParams_Defaults(t *testing.T) {
	fp, err := ParseFilterParams(url.Values{})
	require.NoError(t, err)

	assert.Equal(t, model.SortDuration, fp.SortBy)
	assert.Equal(t, "asc", fp.SortOrder)
	assert.Equal(t, 1, fp.Page)
	assert.Equal(t, 10, fp.PageSize)
	assert.False(t, fp.PageSizeExplicit)
	assert.False(t, fp.IsPagination())
}

func TestParseFilterParams_FullQuery(t *testing.T) {
	q := url.Values{
		"stops":           {"0,1"},
		"includeAirlines": {"nh, aa"},
		"excludeAirlines": {"UA"},
		"maxDuration":     {"900"},
		"minJPercent":     {"80.5"},
		"depTimeMin":      {"1740800000000"},
		"includeOrigin":   {"NRT"},
		"search":          {"star"},
		"sortBy":          {"arrival"},
		"sortOrder":       {"desc"},
		"page":            {"3"},
		"pageSize":        {"25"},
	}

	fp, err := ParseFilterParams(q)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, fp.Stops)
	assert.Equal(t, []string{"NH", "AA"}, fp.IncludeAirlines, "codes upper-cased and trimmed")
	assert.Equal(t, []string{"UA"}, fp.ExcludeAirlines)
	require.NotNil(t, fp.MaxDuration)
	assert.Equal(t, 900, *fp.MaxDuration)
	require.NotNil(t, fp.MinJPercent)
	assert.Equal(t, 80.5, *fp.MinJPercent)
	require.NotNil(t, fp.DepTimeMin)
	assert.Equal(t, int64(1740800000000), *fp.DepTimeMin)
	assert.Equal(t, []string{"NRT"}, fp.IncludeOrigin)
	assert.Equal(t, "star", fp.Search)
	assert.Equal(t, model.SortArrival, fp.SortBy)
	assert.Equal(t, "desc", fp.SortOrder)
	assert.Equal(t, 3, fp.Page)
	assert.Equal(t, 25, fp.PageSize)
	assert.True(t, fp.PageSizeExplicit)
	assert.True(t, fp.IsPagination())
}

func TestParseFilterParams_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		query url.Values
		field string
	}{
		{"bad stops", url.Values{"stops": {"0,x"}}, "stops"},
		{"bad maxDuration", url.Values{"maxDuration": {"long"}}, "maxDuration"},
		{"bad percent", url.Values{"minYPercent": {"eighty"}}, "minYPercent"},
		{"bad sortBy", url.Values{"sortBy": {"price"}}, "sortBy"},
		{"bad sortOrder", url.Values{"sortOrder": {"sideways"}}, "sortOrder"},
		{"zero page", url.Values{"page": {"0"}}, "page"},
		{"zero pageSize", url.Values{"pageSize": {"0"}}, "pageSize"},
	}
	for _, tc := range cases {
		_, err := ParseFilterParams(tc.query)
		var invalid *model.InvalidInputError
		require.ErrorAs(t, err, &invalid, tc.name)
		assert.Contains(t, invalid.Details, tc.field, tc.name)
	}
}

func TestParseFilterParams_UnknownParamsIgnored(t *testing.T) {
	fp, err := ParseFilterParams(url.Values{"utm_source": {"newsletter"}})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultFilterParams(), fp)
}

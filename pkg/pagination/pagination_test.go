// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/kinship/pkg/pagination"
)

/*
TestFromRequest clamps invalid query parameters.
*/
func TestFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  pagination.Params
	}{
		{"defaults", "", pagination.Params{Page: 1, Limit: 20}},
		{"explicit", "?page=3&limit=5", pagination.Params{Page: 3, Limit: 5}},
		{"negative_page", "?page=-1", pagination.Params{Page: 1, Limit: 20}},
		{"limit_too_large", "?limit=1000", pagination.Params{Page: 1, Limit: 20}},
		{"garbage", "?page=abc", pagination.Params{Page: 1, Limit: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/"+tt.query, nil)
			assert.Equal(t, tt.want, pagination.FromRequest(request))
		})
	}
}

/*
TestPage slices a result set into windows.
*/
func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	window, meta := pagination.Page(items, pagination.Params{Page: 2, Limit: 2})
	assert.Equal(t, []int{3, 4}, window)
	assert.Equal(t, 3, meta.TotalPages)
	assert.Equal(t, 5, meta.Total)

	window, _ = pagination.Page(items, pagination.Params{Page: 3, Limit: 2})
	assert.Equal(t, []int{5}, window)

	window, _ = pagination.Page(items, pagination.Params{Page: 9, Limit: 2})
	assert.Empty(t, window)
}

package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/search"
)

func TestBuildQueryBasic(t *testing.T) {
	kbID := uint(7)
	req := &SearchRequest{
		Query:           "  deployment guide  ",
		Pattern:         "phrase",
		Limit:           25,
		MinScore:        0.3,
		KnowledgeBaseID: &kbID,
		UseAI:           true,
	}

	query, err := buildQuery(req)
	require.NoError(t, err)

	assert.Equal(t, "deployment guide", query.Text, "查询文本应去掉首尾空白")
	assert.Equal(t, search.PatternPhrase, query.Pattern)
	assert.Equal(t, 25, query.Limit)
	assert.Equal(t, 0.3, query.MinScore)
	require.NotNil(t, query.KnowledgeBaseID)
	assert.Equal(t, uint(7), *query.KnowledgeBaseID)
	assert.True(t, query.UseAI)
}

func TestBuildQueryDateFilters(t *testing.T) {
	req := &SearchRequest{
		Query: "report",
		Filters: &SearchFilters{
			DateFrom: "2026-01-01",
			DateTo:   "2026-01-31",
		},
	}

	query, err := buildQuery(req)
	require.NoError(t, err)
	require.NotNil(t, query.Filters.DateFrom)
	require.NotNil(t, query.Filters.DateTo)

	assert.Equal(t, time.January, query.Filters.DateFrom.Month())
	assert.Equal(t, 1, query.Filters.DateFrom.Day())
	// 结束日期取当天末尾，1月31日当天的记录应落在范围内
	assert.Equal(t, 31, query.Filters.DateTo.Day())
	assert.Equal(t, 23, query.Filters.DateTo.Hour())
}

func TestBuildQueryInvalidDate(t *testing.T) {
	req := &SearchRequest{
		Query:   "report",
		Filters: &SearchFilters{DateFrom: "01/02/2026"},
	}

	_, err := buildQuery(req)
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, appErr.Code)
}

func TestBuildQueryInvertedDateRange(t *testing.T) {
	req := &SearchRequest{
		Query: "report",
		Filters: &SearchFilters{
			DateFrom: "2026-02-01",
			DateTo:   "2026-01-01",
		},
	}

	_, err := buildQuery(req)
	require.Error(t, err, "结束日期早于开始日期应报错")
}

func TestBuildQueryStructuredFilters(t *testing.T) {
	authorID := uint(42)
	req := &SearchRequest{
		Query: "bug",
		Filters: &SearchFilters{
			Categories: []string{"infra", "backend"},
			Statuses:   []string{"open"},
			AuthorID:   &authorID,
		},
	}

	query, err := buildQuery(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"infra", "backend"}, query.Filters.Categories)
	assert.Equal(t, []string{"open"}, query.Filters.Statuses)
	require.NotNil(t, query.Filters.AuthorID)
	assert.Equal(t, uint(42), *query.Filters.AuthorID)
}

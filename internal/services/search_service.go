package services

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/search"
)

// SearchService 对外检索门面
// 把HTTP请求结构转换为检索查询，并根据用户构建可见范围
type SearchService struct {
	orchestrator *search.Orchestrator
	workspaces   *WorkspaceService
}

// SearchRequest HTTP检索请求体
type SearchRequest struct {
	Query           string         `json:"query"`
	Pattern         string         `json:"pattern,omitempty"`
	Limit           int            `json:"limit,omitempty"`
	MinScore        float64        `json:"min_score,omitempty"`
	Filters         *SearchFilters `json:"filters,omitempty"`
	WorkspaceID     *uint          `json:"workspace_id,omitempty"`
	KnowledgeBaseID *uint          `json:"kb_id,omitempty"`
	UseAI           bool           `json:"use_ai,omitempty"`
}

// SearchFilters HTTP过滤条件
type SearchFilters struct {
	Categories []string `json:"categories,omitempty"`
	Statuses   []string `json:"statuses,omitempty"`
	AuthorID   *uint    `json:"author_id,omitempty"`
	DateFrom   string   `json:"date_from,omitempty"` // YYYY-MM-DD
	DateTo     string   `json:"date_to,omitempty"`
}

// SearchResponse HTTP检索响应体
type SearchResponse struct {
	Results []search.RankedResult `json:"results"`
	Stats   search.Stats          `json:"stats"`
}

// NewSearchService 创建检索门面
func NewSearchService(orchestrator *search.Orchestrator, workspaces *WorkspaceService) *SearchService {
	return &SearchService{
		orchestrator: orchestrator,
		workspaces:   workspaces,
	}
}

// SearchPublic 匿名检索，仅public记录
func (s *SearchService) SearchPublic(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	query, err := buildQuery(req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, query, search.VisibilityScope{Authenticated: false})
}

// Search 认证用户检索，可见范围为其所属工作区集合
func (s *SearchService) Search(ctx context.Context, userID uint, req *SearchRequest) (*SearchResponse, error) {
	query, err := buildQuery(req)
	if err != nil {
		return nil, err
	}

	workspaceIDs, err := s.workspaces.MemberWorkspaceIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 请求指定了工作区时，收窄到该工作区（必须是成员）
	if query.WorkspaceID != nil {
		member := false
		for _, id := range workspaceIDs {
			if id == *query.WorkspaceID {
				member = true
				break
			}
		}
		if !member {
			return nil, apperrors.NewAccessDeniedError()
		}
		workspaceIDs = []uint{*query.WorkspaceID}
	}

	scope := search.VisibilityScope{
		Authenticated: true,
		UserID:        userID,
		WorkspaceIDs:  workspaceIDs,
	}
	return s.run(ctx, query, scope)
}

func (s *SearchService) run(ctx context.Context, query search.Query, scope search.VisibilityScope) (*SearchResponse, error) {
	results, stats, err := s.orchestrator.Search(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []search.RankedResult{}
	}
	return &SearchResponse{Results: results, Stats: stats}, nil
}

// buildQuery HTTP请求体转检索查询
func buildQuery(req *SearchRequest) (search.Query, error) {
	query := search.Query{
		Text:            strings.TrimSpace(req.Query),
		Pattern:         search.Pattern(req.Pattern),
		Limit:           req.Limit,
		MinScore:        req.MinScore,
		WorkspaceID:     req.WorkspaceID,
		KnowledgeBaseID: req.KnowledgeBaseID,
		UseAI:           req.UseAI,
	}

	if req.Filters != nil {
		query.Filters.Categories = req.Filters.Categories
		query.Filters.Statuses = req.Filters.Statuses
		query.Filters.AuthorID = req.Filters.AuthorID

		if req.Filters.DateFrom != "" {
			from, err := parseFilterDate(req.Filters.DateFrom, false)
			if err != nil {
				return query, apperrors.NewValidationError("date_from must be YYYY-MM-DD")
			}
			query.Filters.DateFrom = &from
		}
		if req.Filters.DateTo != "" {
			to, err := parseFilterDate(req.Filters.DateTo, true)
			if err != nil {
				return query, apperrors.NewValidationError("date_to must be YYYY-MM-DD")
			}
			query.Filters.DateTo = &to
		}
		if query.Filters.DateFrom != nil && query.Filters.DateTo != nil &&
			query.Filters.DateTo.Before(*query.Filters.DateFrom) {
			return query, apperrors.NewValidationError("date_to must not be before date_from")
		}
	}
	return query, nil
}

// parseFilterDate 日期过滤边界，endOfDay时取当天末尾使范围闭合
func parseFilterDate(value string, endOfDay bool) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

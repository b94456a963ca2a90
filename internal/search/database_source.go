package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trackhub/backend-go/internal/models"
	"gorm.io/gorm"
)

const (
	// candidateMultiplier 数据库候选集放大倍数，留出排序余量
	candidateMultiplier = 3
	// minCandidateLimit 候选集下限
	minCandidateLimit = 60
)

// candidateLimit 数据库候选集大小
// 候选先按create_time DESC截取、之后才在进程内打分，窗口过小会把
// 命中度高的旧记录挤出候选集，故设下限兜底
func candidateLimit(requested int) int {
	limit := requested * candidateMultiplier
	if limit < minCandidateLimit {
		limit = minCandidateLimit
	}
	return limit
}

// DatabaseSource 数据库检索源
// 可见性约束直接下推到SQL WHERE，不做查询后过滤
type DatabaseSource struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewDatabaseSource 创建数据库检索源
func NewDatabaseSource(db *gorm.DB, timeout time.Duration) *DatabaseSource {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &DatabaseSource{db: db, timeout: timeout}
}

func (s *DatabaseSource) Name() Source {
	return SourceDatabase
}

func (s *DatabaseSource) Fetch(ctx context.Context, query Query, scope VisibilityScope) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tokens := tokenize(query.Text)
	if len(tokens) == 0 {
		return []Result{}, nil
	}

	tx := s.db.WithContext(ctx).Model(&models.Issue{})
	tx = applyVisibility(tx, scope)
	tx = applyFilters(tx, query)
	tx = applyPattern(tx, query.Pattern, query.Text, tokens)

	var issues []models.Issue
	if err := tx.Order("create_time DESC").Limit(candidateLimit(query.Limit)).Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("database search failed: %w", err)
	}

	results := make([]Result, 0, len(issues))
	for _, issue := range issues {
		results = append(results, Result{
			ID:      fmt.Sprintf("issue-%d", issue.IssueID),
			Title:   issue.Title,
			Content: issue.Content,
			Source:  SourceDatabase,
			Score:   scoreIssue(issue, query.Pattern, query.Text, tokens),
			Metadata: map[string]interface{}{
				"category":     issue.Category,
				"status":       issue.Status,
				"priority":     issue.Priority,
				"visibility":   issue.Visibility,
				"author_id":    issue.AuthorID,
				"workspace_id": issue.WorkspaceID,
				"created_at":   issue.CreateTime,
			},
		})
	}
	return results, nil
}

// applyVisibility 可见性范围：未认证只看public，认证可看public+成员工作区+本人private
func applyVisibility(tx *gorm.DB, scope VisibilityScope) *gorm.DB {
	if !scope.Authenticated {
		return tx.Where("visibility = ?", models.VisibilityPublic)
	}
	if len(scope.WorkspaceIDs) == 0 {
		return tx.Where("visibility = ? OR (visibility = ? AND author_id = ?)",
			models.VisibilityPublic, models.VisibilityPrivate, scope.UserID)
	}
	return tx.Where("visibility = ? OR (visibility = ? AND workspace_id IN ?) OR (visibility = ? AND author_id = ?)",
		models.VisibilityPublic,
		models.VisibilityWorkspace, scope.WorkspaceIDs,
		models.VisibilityPrivate, scope.UserID)
}

func applyFilters(tx *gorm.DB, query Query) *gorm.DB {
	if query.WorkspaceID != nil {
		tx = tx.Where("workspace_id = ?", *query.WorkspaceID)
	}
	if len(query.Filters.Categories) > 0 {
		tx = tx.Where("category IN ?", query.Filters.Categories)
	}
	if len(query.Filters.Statuses) > 0 {
		tx = tx.Where("status IN ?", query.Filters.Statuses)
	}
	if query.Filters.AuthorID != nil {
		tx = tx.Where("author_id = ?", *query.Filters.AuthorID)
	}
	if query.Filters.DateFrom != nil {
		tx = tx.Where("create_time >= ?", *query.Filters.DateFrom)
	}
	if query.Filters.DateTo != nil {
		tx = tx.Where("create_time <= ?", *query.Filters.DateTo)
	}
	return tx
}

// applyPattern 三种匹配模式的SQL条件
// phrase要求完整短语子串；match要求所有词命中（AND）；fuzzy任一词命中（OR）
func applyPattern(tx *gorm.DB, pattern Pattern, text string, tokens []string) *gorm.DB {
	switch pattern {
	case PatternPhrase:
		like := "%" + escapeLike(strings.TrimSpace(text)) + "%"
		return tx.Where("title ILIKE ? OR content ILIKE ?", like, like)
	case PatternFuzzy:
		var conds []string
		var args []interface{}
		for _, token := range tokens {
			like := "%" + escapeLike(token) + "%"
			conds = append(conds, "(title ILIKE ? OR content ILIKE ?)")
			args = append(args, like, like)
		}
		return tx.Where(strings.Join(conds, " OR "), args...)
	default: // match
		for _, token := range tokens {
			like := "%" + escapeLike(token) + "%"
			tx = tx.Where("title ILIKE ? OR content ILIKE ?", like, like)
		}
		return tx
	}
}

// scoreIssue 按命中强度打分：标题命中高于正文命中，按词覆盖率归一
func scoreIssue(issue models.Issue, pattern Pattern, text string, tokens []string) float64 {
	title := strings.ToLower(issue.Title)
	content := strings.ToLower(issue.Content)

	if pattern == PatternPhrase {
		phrase := strings.ToLower(strings.TrimSpace(text))
		if strings.Contains(title, phrase) {
			return 1.0
		}
		if strings.Contains(content, phrase) {
			return 0.75
		}
		return 0
	}

	var score float64
	for _, token := range tokens {
		switch {
		case strings.Contains(title, token):
			score += 1.0
		case strings.Contains(content, token):
			score += 0.7
		}
	}
	return score / float64(len(tokens))
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// escapeLike 转义LIKE通配符，用户输入按字面匹配
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

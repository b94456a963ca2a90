package search

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackhub/backend-go/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	return gdb, mock
}

func issueRows(issues ...models.Issue) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"issue_id", "workspace_id", "title", "content", "category",
		"status", "priority", "visibility", "author_id", "create_time",
	})
	for _, i := range issues {
		rows.AddRow(i.IssueID, i.WorkspaceID, i.Title, i.Content, i.Category,
			i.Status, i.Priority, i.Visibility, i.AuthorID, i.CreateTime)
	}
	return rows
}

// TestDatabaseSource_PublicScopeFilter 未认证调用的SQL必须带public可见性条件
func TestDatabaseSource_PublicScopeFilter(t *testing.T) {
	gdb, mock := newMockDB(t)
	source := NewDatabaseSource(gdb, time.Second)

	mock.ExpectQuery(`SELECT .* FROM "issues" WHERE visibility = .*`).
		WillReturnRows(issueRows(models.Issue{
			IssueID:    1,
			Title:      "Connection timeout on login",
			Content:    "users report connection timeout",
			Category:   "bug",
			Status:     models.IssueStatusOpen,
			Visibility: models.VisibilityPublic,
			AuthorID:   2,
			CreateTime: time.Now(),
		}))

	results, err := source.Fetch(context.Background(), Query{
		Text:    "connection timeout",
		Pattern: PatternPhrase,
		Limit:   5,
	}, VisibilityScope{Authenticated: false})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "issue-1", results[0].ID)
	assert.Equal(t, SourceDatabase, results[0].Source)
	assert.Equal(t, "bug", results[0].Metadata["category"])
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDatabaseSource_MemberScopeFilter 认证调用的SQL包含工作区与private条件
func TestDatabaseSource_MemberScopeFilter(t *testing.T) {
	gdb, mock := newMockDB(t)
	source := NewDatabaseSource(gdb, time.Second)

	mock.ExpectQuery(`SELECT .* FROM "issues" WHERE .*workspace_id IN .*author_id = .*`).
		WillReturnRows(issueRows())

	_, err := source.Fetch(context.Background(), Query{
		Text:    "deploy",
		Pattern: PatternMatch,
		Limit:   10,
	}, VisibilityScope{Authenticated: true, UserID: 9, WorkspaceIDs: []uint{1, 2}})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDatabaseSource_EmptyQueryShortCircuit 空白查询不触发SQL
func TestDatabaseSource_EmptyQueryShortCircuit(t *testing.T) {
	gdb, mock := newMockDB(t)
	source := NewDatabaseSource(gdb, time.Second)

	results, err := source.Fetch(context.Background(), Query{Text: "   "}, VisibilityScope{})
	require.NoError(t, err)
	assert.Empty(t, results)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestScoreIssue 命中强度打分
func TestScoreIssue(t *testing.T) {
	issue := models.Issue{
		Title:   "Connection timeout on login",
		Content: "Database pool exhausted under load",
	}

	// phrase命中标题得满分
	score := scoreIssue(issue, PatternPhrase, "connection timeout", tokenize("connection timeout"))
	assert.Equal(t, 1.0, score)

	// phrase只命中正文降档
	score = scoreIssue(issue, PatternPhrase, "pool exhausted", tokenize("pool exhausted"))
	assert.Equal(t, 0.75, score)

	// phrase未命中得零分
	score = scoreIssue(issue, PatternPhrase, "kernel panic", tokenize("kernel panic"))
	assert.Equal(t, 0.0, score)

	// match模式：标题词满权重，正文词0.7，按词数归一
	score = scoreIssue(issue, PatternMatch, "timeout pool", tokenize("timeout pool"))
	assert.InDelta(t, (1.0+0.7)/2, score, 1e-9)

	// fuzzy模式下未命中词不拿分
	score = scoreIssue(issue, PatternFuzzy, "timeout banana", tokenize("timeout banana"))
	assert.InDelta(t, 0.5, score, 1e-9)
}

// TestCandidateLimit 候选集大小带下限，小limit也保留足够的打分窗口
func TestCandidateLimit(t *testing.T) {
	assert.Equal(t, 60, candidateLimit(0))
	assert.Equal(t, 60, candidateLimit(10))
	assert.Equal(t, 150, candidateLimit(50))
}

// TestTokenize 分词
func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"connection", "timeout"}, tokenize("  Connection   TIMEOUT "))
	assert.Empty(t, tokenize("   "))
}

// TestEscapeLike LIKE通配符转义
func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\path`, escapeLike(`c:\path`))
}

package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trackhub/backend-go/app/controllers"
	"github.com/trackhub/backend-go/app/middleware"
)

// Controllers 路由依赖的控制器集合
type Controllers struct {
	Auth          *controllers.AuthController
	Workspace     *controllers.WorkspaceController
	Issue         *controllers.IssueController
	Template      *controllers.TemplateController
	KnowledgeBase *controllers.KnowledgeBaseController
	Document      *controllers.DocumentController
	Chat          *controllers.ChatController
	Search        *controllers.SearchController
}

// Init 注册全部路由
// 匿名可达：/、/health、/metrics、注册登录、公开检索；其余挂认证过滤器
func Init(c Controllers, authFilter *middleware.AuthMiddleware) {
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)
	web.InsertFilter("/*", web.FinishRouter, middleware.MetricsMiddleware, web.WithReturnOnOutput(false))

	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Handler("/metrics", promhttp.Handler())

	// 认证
	web.Router("/api/auth/register", c.Auth, "post:Register")
	web.Router("/api/auth/login", c.Auth, "post:Login")
	web.Router("/api/auth/logout", c.Auth, "post:Logout")
	web.Router("/api/auth/me", c.Auth, "get:Me")
	web.Router("/api/auth/password", c.Auth, "put:ChangePassword")

	// 检索
	web.Router("/api/search/public", c.Search, "post:SearchPublic")
	web.Router("/api/search", c.Search, "post:Search")

	// 工作区
	web.Router("/api/workspaces", c.Workspace, "get:List;post:Create")
	web.Router("/api/workspaces/:id", c.Workspace, "get:Get")
	web.Router("/api/workspaces/:id/members", c.Workspace, "get:ListMembers;post:AddMember")
	web.Router("/api/workspaces/:id/members/:user_id", c.Workspace, "delete:RemoveMember")

	// 议题
	web.Router("/api/issues", c.Issue, "get:List;post:Create")
	web.Router("/api/issues/:id", c.Issue, "get:Get;put:Update;delete:Delete")
	web.Router("/api/issues/:id/status", c.Issue, "post:Transition")

	// 议题模板
	web.Router("/api/templates", c.Template, "get:List;post:Create")
	web.Router("/api/templates/:id", c.Template, "get:Get;delete:Deactivate")

	// 知识库与文档
	web.Router("/api/knowledge-bases", c.KnowledgeBase, "get:List;post:Create")
	web.Router("/api/knowledge-bases/:id", c.KnowledgeBase, "get:Get;delete:Delete")
	web.Router("/api/knowledge-bases/:id/documents", c.Document, "get:List;post:Upload")
	web.Router("/api/documents/:doc_id", c.Document, "get:Get;delete:Delete")
	web.Router("/api/documents/:doc_id/download", c.Document, "get:DownloadURL")

	// AI对话
	web.Router("/api/chat/messages", c.Chat, "post:SendMessage")
	web.Router("/api/chat/conversations", c.Chat, "get:ListConversations")
	web.Router("/api/chat/conversations/:id/messages", c.Chat, "get:GetMessages")
	web.Router("/api/chat/conversations/:id/archive", c.Chat, "post:Archive")

	// 认证过滤器只挂受保护子树，注册登录和公开检索保持匿名可达
	protected := []string{
		"/api/auth/logout",
		"/api/auth/me",
		"/api/auth/password",
		"/api/search",
		"/api/workspaces",
		"/api/workspaces/*",
		"/api/issues",
		"/api/issues/*",
		"/api/templates",
		"/api/templates/*",
		"/api/knowledge-bases",
		"/api/knowledge-bases/*",
		"/api/documents/*",
		"/api/chat/*",
	}
	for _, pattern := range protected {
		web.InsertFilter(pattern, web.BeforeRouter, authFilter.Filter)
	}
}

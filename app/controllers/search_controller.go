package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/trackhub/backend-go/internal/services"
)

// SearchController 混合检索控制器
type SearchController struct {
	BaseController
	searchService *services.SearchService
}

// NewSearchController 创建检索控制器
func NewSearchController(searchService *services.SearchService) *SearchController {
	return &SearchController{searchService: searchService}
}

// SearchPublic 匿名检索，仅返回公开记录
func (c *SearchController) SearchPublic() {
	var req services.SearchRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := c.searchService.SearchPublic(c.Ctx.Request.Context(), &req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(resp)
}

// Search 认证检索，可见范围为用户所属工作区
func (c *SearchController) Search() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	var req services.SearchRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := c.searchService.Search(c.Ctx.Request.Context(), userID, &req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(resp)
}

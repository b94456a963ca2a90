package controllers

import (
	"net/http"

	"github.com/trackhub/backend-go/internal/services"
)

// DocumentController 文档控制器
type DocumentController struct {
	BaseController
	documentService *services.DocumentService
}

// NewDocumentController 创建文档控制器
func NewDocumentController(documentService *services.DocumentService) *DocumentController {
	return &DocumentController{documentService: documentService}
}

// Upload 上传文档到知识库
func (c *DocumentController) Upload() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	kbID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "file field is required")
		return
	}
	file.Close()

	doc, err := c.documentService.UploadDocument(c.Ctx.Request.Context(), kbID, userID, header)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONCreated(doc)
}

// List 知识库文档列表
func (c *DocumentController) List() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	kbID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	docs, err := c.documentService.ListDocuments(c.Ctx.Request.Context(), kbID, userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(docs)
}

// Get 文档详情
func (c *DocumentController) Get() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	docID, ok := c.uintParam(":doc_id")
	if !ok {
		return
	}

	doc, err := c.documentService.GetDocument(c.Ctx.Request.Context(), docID, userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(doc)
}

// DownloadURL 生成限时下载链接
func (c *DocumentController) DownloadURL() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	docID, ok := c.uintParam(":doc_id")
	if !ok {
		return
	}

	url, err := c.documentService.DownloadURL(c.Ctx.Request.Context(), docID, userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"url": url})
}

// Delete 删除文档
func (c *DocumentController) Delete() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	docID, ok := c.uintParam(":doc_id")
	if !ok {
		return
	}

	if err := c.documentService.DeleteDocument(c.Ctx.Request.Context(), docID, userID); err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "document deleted"})
}

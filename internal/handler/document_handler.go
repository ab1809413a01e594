// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"doc-chat-go/internal/model"
	"doc-chat-go/internal/service"
	"doc-chat-go/pkg/log"
)

// DocumentHandler 负责处理文档上传、列表、删除与下载的 API 请求。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload 处理文档上传请求（multipart/form-data，字段名 file）。
func (h *DocumentHandler) Upload(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求：缺少上传文件",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Upload: Failed to open uploaded file", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取上传文件失败",
		})
		return
	}
	defer file.Close()

	doc, err := h.documentService.IngestFile(c.Request.Context(), user.ID, fileHeader.Filename, file)
	if err != nil {
		status, message := ingestErrorStatus(err)
		log.Warnf("Upload: Ingestion failed for '%s', user %d, error: %v", fileHeader.Filename, user.ID, err)
		c.JSON(status, gin.H{"code": status, "message": message})
		return
	}

	log.Infof("Document '%s' ingested successfully for user %d, id: %d", doc.FileName, user.ID, doc.ID)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文档入库成功",
		"data": gin.H{
			"id":       doc.ID,
			"fileName": doc.FileName,
		},
	})
}

// List 返回当前用户的文档列表。
func (h *DocumentHandler) List(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	docs, err := h.documentService.ListDocuments(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("List: Failed to list documents for user %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取文档列表失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": docs, "message": "success"})
}

// Delete 删除当前用户的一个文档及其全部分块。
func (h *DocumentHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的文档 ID",
		})
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), user.ID, uint(documentID)); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "文档不存在",
			})
			return
		}
		log.Errorf("Delete: Failed to delete document %d for user %d, error: %v", documentID, user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "删除文档失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "文档删除成功"})
}

// DownloadURL 为归档的原始文件生成预签名下载链接。
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的文档 ID",
		})
		return
	}

	url, err := h.documentService.GenerateDownloadURL(c.Request.Context(), user.ID, uint(documentID))
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "文档不存在",
			})
			return
		}
		log.Errorf("DownloadURL: Failed for document %d, user %d, error: %v", documentID, user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "生成下载链接失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": gin.H{"url": url}, "message": "success"})
}

// ingestErrorStatus 把入库错误映射为 HTTP 状态码与提示信息。
func ingestErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmptyDocument):
		return http.StatusBadRequest, "文档内容为空或无法提取文本"
	case errors.Is(err, service.ErrEmbeddingUnavailable):
		return http.StatusBadGateway, "向量化服务暂时不可用，请稍后重试"
	case errors.Is(err, service.ErrStorageFailure):
		return http.StatusInternalServerError, "文档持久化失败"
	default:
		return http.StatusInternalServerError, "文档入库失败"
	}
}

// currentUser 从上下文中取出 AuthMiddleware 注入的用户，失败时写出错误响应。
func currentUser(c *gin.Context) *model.User {
	userValue, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return nil
	}
	user, ok := userValue.(*model.User)
	if !ok || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "用户数据类型错误"})
		return nil
	}
	return user
}

// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doc-chat-go/internal/service"
	"doc-chat-go/pkg/log"
)

// FeedbackHandler 负责处理回答反馈的 API 请求。
type FeedbackHandler struct {
	feedbackService service.FeedbackService
}

// NewFeedbackHandler 创建一个新的 FeedbackHandler 实例。
func NewFeedbackHandler(feedbackService service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// FeedbackRequest 定义了提交反馈 API 的请求体结构。
// isHelpful 用指针区分 false 与缺省。
type FeedbackRequest struct {
	Question  string `json:"question" binding:"required"`
	Answer    string `json:"answer" binding:"required"`
	IsHelpful *bool  `json:"isHelpful" binding:"required"`
}

// Record 记录用户对某轮问答的评价，重复提交幂等。
func (h *FeedbackHandler) Record(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Record: Invalid feedback payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：question、answer、isHelpful 均不能为空",
		})
		return
	}

	feedback, err := h.feedbackService.Record(c.Request.Context(), user.ID, req.Question, req.Answer, *req.IsHelpful)
	if err != nil {
		log.Errorf("Record: Failed to record feedback for user %d, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "记录反馈失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "反馈已记录",
		"data": gin.H{
			"id":         feedback.ID,
			"isHelpful":  feedback.IsHelpful,
			"recordedAt": feedback.CreatedAt,
		},
	})
}

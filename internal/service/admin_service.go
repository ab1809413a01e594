package service

import (
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/repository"
)

// AdminService 定义了管理员侧的运营操作：用户总览与反馈审阅。
type AdminService interface {
	ListUsers(page, size int) ([]model.User, int64, error)
	ListFeedbacks(page, size int) ([]model.Feedback, int64, error)
}

type adminService struct {
	userRepo     repository.UserRepository
	feedbackRepo repository.FeedbackRepository
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(userRepo repository.UserRepository, feedbackRepo repository.FeedbackRepository) AdminService {
	return &adminService{
		userRepo:     userRepo,
		feedbackRepo: feedbackRepo,
	}
}

// ListUsers 分页返回全部用户。
func (s *adminService) ListUsers(page, size int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return s.userRepo.FindWithPagination((page-1)*size, size)
}

// ListFeedbacks 分页返回全部反馈记录，最新的在前。
func (s *adminService) ListFeedbacks(page, size int) ([]model.Feedback, int64, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return s.feedbackRepo.FindWithPagination((page-1)*size, size)
}

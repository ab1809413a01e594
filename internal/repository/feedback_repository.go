package repository

import (
	"context"

	"gorm.io/gorm"

	"doc-chat-go/internal/model"
)

// FeedbackRepository 定义了反馈记录的持久化操作（只追加）。
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *model.Feedback) error
	FindByPairHash(ctx context.Context, userID uint, pairHash string) (*model.Feedback, error)
	FindWithPagination(offset, limit int) ([]model.Feedback, int64, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository 创建一个新的 FeedbackRepository 实例。
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

// Create 追加一条反馈记录。
func (r *feedbackRepository) Create(ctx context.Context, feedback *model.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

// FindByPairHash 查找该用户对同一 (question, answer) 组合的既有反馈。
func (r *feedbackRepository) FindByPairHash(ctx context.Context, userID uint, pairHash string) (*model.Feedback, error) {
	var feedback model.Feedback
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND pair_hash = ?", userID, pairHash).
		First(&feedback).Error
	if err != nil {
		return nil, err
	}
	return &feedback, nil
}

// FindWithPagination 分页检索全部反馈记录，按时间倒序。
func (r *feedbackRepository) FindWithPagination(offset, limit int) ([]model.Feedback, int64, error) {
	var feedbacks []model.Feedback
	var total int64

	db := r.db.Model(&model.Feedback{})

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("id desc").Offset(offset).Limit(limit).Find(&feedbacks).Error
	if err != nil {
		return nil, 0, err
	}

	return feedbacks, total, nil
}

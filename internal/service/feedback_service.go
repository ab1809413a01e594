package service

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"doc-chat-go/internal/model"
	"doc-chat-go/internal/repository"
	"doc-chat-go/pkg/log"
)

// FeedbackService 定义了回答反馈的业务操作。
type FeedbackService interface {
	// Record 记录用户对某轮 (question, answer) 的评价。
	// 同一用户对同一组合的重复提交是幂等的：返回既有记录，不重复计数。
	// 注意：组合是否真实出自该用户的对话由调用方保证，服务端不做溯源校验。
	Record(ctx context.Context, userID uint, question, answer string, isHelpful bool) (*model.Feedback, error)
}

type feedbackService struct {
	feedbackRepo repository.FeedbackRepository
}

// NewFeedbackService 创建一个新的 FeedbackService 实例。
func NewFeedbackService(feedbackRepo repository.FeedbackRepository) FeedbackService {
	return &feedbackService{feedbackRepo: feedbackRepo}
}

// Record 追加一条反馈记录。
func (s *feedbackService) Record(ctx context.Context, userID uint, question, answer string, isHelpful bool) (*model.Feedback, error) {
	pairHash := hashPair(question, answer)

	// 幂等检查：同一组合已有记录则直接返回
	existing, err := s.feedbackRepo.FindByPairHash(ctx, userID, pairHash)
	if err == nil {
		log.Infof("[FeedbackService] 重复反馈, UserID: %d, 返回既有记录 %d", userID, existing.ID)
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrFeedbackFailure, err)
	}

	feedback := &model.Feedback{
		UserID:    userID,
		PairHash:  pairHash,
		Question:  question,
		Answer:    answer,
		IsHelpful: isHelpful,
	}
	if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
		// 并发提交撞上唯一索引：读回既有记录
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, findErr := s.feedbackRepo.FindByPairHash(ctx, userID, pairHash); findErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrFeedbackFailure, err)
	}

	log.Infof("[FeedbackService] 反馈已记录, UserID: %d, IsHelpful: %v", userID, isHelpful)
	return feedback, nil
}

// hashPair 计算 (question, answer) 组合的去重哈希。
func hashPair(question, answer string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(question+"\x00"+answer)))
}

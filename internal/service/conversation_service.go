package service

import (
	"context"

	"doc-chat-go/internal/model"
	"doc-chat-go/internal/repository"
)

// ConversationService 定义了对话历史的查询操作。
type ConversationService interface {
	GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(conversationRepo repository.ConversationRepository) ConversationService {
	return &conversationService{conversationRepo: conversationRepo}
}

// GetHistory 返回该用户当前对话的全部消息。
func (s *conversationService) GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	convID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.conversationRepo.GetConversationHistory(ctx, convID)
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"doc-chat-go/internal/config"
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/rag"
	"doc-chat-go/internal/repository"
	"doc-chat-go/pkg/embedding"
	"doc-chat-go/pkg/llm"
	"doc-chat-go/pkg/log"
)

// 来源摘录的最大长度（按 rune 计），与前端展示宽度对齐。
const sourceExcerptLen = 200

// ChatService 定义了问答流程的业务操作。
type ChatService interface {
	// StreamAnswer 执行一次完整的 RAG 问答并返回事件流。
	// 返回的通道由服务端在流结束（成功、失败或取消）后关闭；
	// ctx 取消会立刻中止底层模型调用。
	// 流开始前的失败（向量化、索引构建）以错误返回，不产生通道。
	StreamAnswer(ctx context.Context, user *model.User, question string) (<-chan model.StreamEvent, error)
}

type chatService struct {
	embeddingClient  embedding.Client
	llmClient        llm.Client
	cache            *rag.Cache
	conversationRepo repository.ConversationRepository
	ragCfg           config.RAGConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	embeddingClient embedding.Client,
	llmClient llm.Client,
	cache *rag.Cache,
	conversationRepo repository.ConversationRepository,
	ragCfg config.RAGConfig,
) ChatService {
	return &chatService{
		embeddingClient:  embeddingClient,
		llmClient:        llmClient,
		cache:            cache,
		conversationRepo: conversationRepo,
		ragCfg:           ragCfg,
	}
}

// StreamAnswer 协调 RAG 流程并以事件流返回生成结果。
func (s *chatService) StreamAnswer(ctx context.Context, user *model.User, question string) (<-chan model.StreamEvent, error) {
	// 1. 向量化问题
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: 问题向量化失败: %v", ErrEmbeddingUnavailable, err)
	}

	// 2. 获取或重建该用户的向量索引
	idx, err := s.cache.GetOrBuild(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	events := make(chan model.StreamEvent)

	// 用户尚无任何文档：直接下发引导回复，不调用生成模型
	if idx == nil {
		go s.streamNoDocumentAnswer(ctx, events, user.ID, question)
		return events, nil
	}

	// 3. 检索 top-k 分块并组装提示词
	results := idx.Search(queryVector, s.ragCfg.TopK)
	prompt := rag.ComposePrompt(question, results, s.ragCfg.Prompt.Rules)
	sources := buildSources(results)

	// 4. 加载对话历史并拼装消息
	messages, err := s.composeMessages(ctx, user.ID, prompt)
	if err != nil {
		log.Errorf("[ChatService] 加载对话历史失败, UserID: %d, Error: %v", user.ID, err)
		messages = []llm.Message{{Role: "user", Content: prompt}}
	}

	// 5. 生成任务写通道，边界层负责转发
	go s.streamGeneration(ctx, events, user.ID, question, messages, sources)
	return events, nil
}

// streamGeneration 在独立 goroutine 中调用模型并把片段转成事件。
// 成功时以一个 sources 事件收尾；失败时以 error 事件收尾，已下发片段不回收。
func (s *chatService) streamGeneration(ctx context.Context, events chan<- model.StreamEvent, userID uint, question string, messages []llm.Message, sources []model.SourceRef) {
	defer close(events)

	fragments := make(chan string, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.llmClient.StreamChat(ctx, messages, nil, fragments)
		close(fragments)
	}()

	var answer strings.Builder
	for fragment := range fragments {
		answer.WriteString(fragment)
		if !emit(ctx, events, model.StreamEvent{Type: model.EventAnswerChunk, AnswerChunk: fragment}) {
			// 消费方已取消：StreamChat 会因 ctx 终止并关闭 fragments
			<-errCh
			return
		}
	}

	if err := <-errCh; err != nil {
		log.Errorf("[ChatService] 生成流中断, UserID: %d, Error: %v", userID, err)
		emit(ctx, events, model.StreamEvent{Type: model.EventError, Err: fmt.Errorf("%w: %v", ErrGenerationFailure, err)})
		return
	}

	emit(ctx, events, model.StreamEvent{Type: model.EventSources, Sources: sources})

	// 使用后台上下文保存历史：原始请求取消不应丢弃已生成的完整回答
	if answer.Len() > 0 {
		if err := s.saveTurn(context.Background(), userID, question, answer.String()); err != nil {
			log.Errorf("[ChatService] 保存对话历史失败, UserID: %d, Error: %v", userID, err)
		}
	}
}

// streamNoDocumentAnswer 下发"尚无文档"引导回复，来源列表为空。
func (s *chatService) streamNoDocumentAnswer(ctx context.Context, events chan<- model.StreamEvent, userID uint, question string) {
	defer close(events)

	text := s.ragCfg.Prompt.NoDocumentText
	if text == "" {
		text = rag.DefaultNoDocumentText
	}
	if !emit(ctx, events, model.StreamEvent{Type: model.EventAnswerChunk, AnswerChunk: text}) {
		return
	}
	emit(ctx, events, model.StreamEvent{Type: model.EventSources, Sources: []model.SourceRef{}})

	if err := s.saveTurn(context.Background(), userID, question, text); err != nil {
		log.Errorf("[ChatService] 保存对话历史失败, UserID: %d, Error: %v", userID, err)
	}
}

// composeMessages 把历史对话与本轮提示词拼装为模型消息序列。
func (s *chatService) composeMessages(ctx context.Context, userID uint, prompt string) ([]llm.Message, error) {
	convID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.conversationRepo.GetConversationHistory(ctx, convID)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})
	return messages, nil
}

// saveTurn 把一轮问答追加到 Redis 中的对话历史。
func (s *chatService) saveTurn(ctx context.Context, userID uint, question, answer string) error {
	convID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get or create conversation ID: %w", err)
	}

	history, err := s.conversationRepo.GetConversationHistory(ctx, convID)
	if err != nil {
		return fmt.Errorf("failed to get conversation history: %w", err)
	}

	now := time.Now()
	history = append(history,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)

	return s.conversationRepo.UpdateConversationHistory(ctx, convID, history)
}

// emit 向事件通道发送一个事件，消费方取消时返回 false。
func emit(ctx context.Context, events chan<- model.StreamEvent, event model.StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildSources 把检索结果转成下发给客户端的来源引用，内容截断为摘录。
func buildSources(results []rag.SearchResult) []model.SourceRef {
	sources := make([]model.SourceRef, 0, len(results))
	for _, r := range results {
		excerpt := r.Content
		if runes := []rune(excerpt); len(runes) > sourceExcerptLen {
			excerpt = string(runes[:sourceExcerptLen]) + "…"
		}
		sources = append(sources, model.SourceRef{
			FileName:    r.FileName,
			PageContent: excerpt,
		})
	}
	return sources
}

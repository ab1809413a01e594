package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chat-go/internal/config"
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/rag"
	"doc-chat-go/pkg/llm"
)

// fakeEmbedder 返回固定向量，或在 err 非空时失败。
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

// fakeLLM 依次写出预设片段，之后返回 err（nil 表示正常结束）。
type fakeLLM struct {
	fragments []string
	err       error
	calls     int
}

func (f *fakeLLM) StreamChat(ctx context.Context, _ []llm.Message, _ *llm.GenerationParams, fragments chan<- string) error {
	f.calls++
	for _, frag := range f.fragments {
		select {
		case fragments <- frag:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

// fakeConversationRepo 把对话历史放在内存里。
type fakeConversationRepo struct {
	history []model.ChatMessage
}

func (f *fakeConversationRepo) GetOrCreateConversationID(_ context.Context, userID uint) (string, error) {
	return "conv-1", nil
}

func (f *fakeConversationRepo) GetConversationHistory(_ context.Context, _ string) ([]model.ChatMessage, error) {
	return f.history, nil
}

func (f *fakeConversationRepo) UpdateConversationHistory(_ context.Context, _ string, messages []model.ChatMessage) error {
	f.history = messages
	return nil
}

// fakeSource 为聊天测试提供单用户的分块数据。
type fakeSource struct {
	chunks []*model.Chunk
	docs   []model.Document
}

func (f *fakeSource) FindChunksByUserID(_ context.Context, _ uint) ([]*model.Chunk, error) {
	return f.chunks, nil
}

func (f *fakeSource) FindDocumentsByUserID(_ context.Context, _ uint) ([]model.Document, error) {
	return f.docs, nil
}

func testRAGConfig() config.RAGConfig {
	return config.RAGConfig{ChunkSize: 1000, ChunkOverlap: 200, TopK: 4}
}

// collectEvents 读空事件通道，带超时保护。
func collectEvents(t *testing.T, events <-chan model.StreamEvent) []model.StreamEvent {
	t.Helper()
	var collected []model.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatal("等待事件流关闭超时")
		}
	}
}

func TestStreamAnswerReassemblesFragments(t *testing.T) {
	source := &fakeSource{
		docs: []model.Document{{ID: 1, UserID: 7, FileName: "sky.txt"}},
		chunks: []*model.Chunk{
			{DocumentID: 1, UserID: 7, Content: "The sky appears blue due to Rayleigh scattering.", Embedding: model.Vector{1, 0}},
		},
	}
	llmClient := &fakeLLM{fragments: []string{"The ", "sky is ", "blue."}}
	convRepo := &fakeConversationRepo{}
	svc := NewChatService(&fakeEmbedder{vector: []float32{1, 0}}, llmClient, rag.NewCache(source), convRepo, testRAGConfig())

	events, err := svc.StreamAnswer(context.Background(), &model.User{ID: 7, Username: "alice"}, "why is the sky blue?")
	require.NoError(t, err)

	collected := collectEvents(t, events)
	require.GreaterOrEqual(t, len(collected), 2)

	// 片段按序到达，拼接后等于完整回答
	var answer string
	for _, ev := range collected[:len(collected)-1] {
		require.Equal(t, model.EventAnswerChunk, ev.Type)
		answer += ev.AnswerChunk
	}
	assert.Equal(t, "The sky is blue.", answer)

	// 终止事件携带来源引用
	last := collected[len(collected)-1]
	require.Equal(t, model.EventSources, last.Type)
	require.Len(t, last.Sources, 1)
	assert.Equal(t, "sky.txt", last.Sources[0].FileName)
	assert.NotEmpty(t, last.Sources[0].PageContent)
}

func TestStreamAnswerSavesConversationTurn(t *testing.T) {
	source := &fakeSource{
		docs: []model.Document{{ID: 1, UserID: 7, FileName: "a.txt"}},
		chunks: []*model.Chunk{
			{DocumentID: 1, UserID: 7, Content: "context", Embedding: model.Vector{1, 0}},
		},
	}
	convRepo := &fakeConversationRepo{}
	svc := NewChatService(&fakeEmbedder{vector: []float32{1, 0}}, &fakeLLM{fragments: []string{"answer"}}, rag.NewCache(source), convRepo, testRAGConfig())

	events, err := svc.StreamAnswer(context.Background(), &model.User{ID: 7}, "q")
	require.NoError(t, err)
	collectEvents(t, events)

	// 历史保存发生在事件流关闭前
	require.Len(t, convRepo.history, 2)
	assert.Equal(t, "user", convRepo.history[0].Role)
	assert.Equal(t, "q", convRepo.history[0].Content)
	assert.Equal(t, "assistant", convRepo.history[1].Role)
	assert.Equal(t, "answer", convRepo.history[1].Content)
}

func TestStreamAnswerNoDocuments(t *testing.T) {
	llmClient := &fakeLLM{fragments: []string{"should not be called"}}
	svc := NewChatService(&fakeEmbedder{vector: []float32{1, 0}}, llmClient, rag.NewCache(&fakeSource{}), &fakeConversationRepo{}, testRAGConfig())

	events, err := svc.StreamAnswer(context.Background(), &model.User{ID: 7}, "anything")
	require.NoError(t, err)

	collected := collectEvents(t, events)
	require.Len(t, collected, 2)
	assert.Equal(t, model.EventAnswerChunk, collected[0].Type)
	assert.Equal(t, rag.DefaultNoDocumentText, collected[0].AnswerChunk)
	require.Equal(t, model.EventSources, collected[1].Type)
	assert.Empty(t, collected[1].Sources)

	// 尚无文档时不触发生成模型
	assert.Equal(t, 0, llmClient.calls)
}

func TestStreamAnswerMidStreamFailure(t *testing.T) {
	source := &fakeSource{
		docs: []model.Document{{ID: 1, UserID: 7, FileName: "a.txt"}},
		chunks: []*model.Chunk{
			{DocumentID: 1, UserID: 7, Content: "context", Embedding: model.Vector{1, 0}},
		},
	}
	llmClient := &fakeLLM{fragments: []string{"partial "}, err: errors.New("connection reset")}
	svc := NewChatService(&fakeEmbedder{vector: []float32{1, 0}}, llmClient, rag.NewCache(source), &fakeConversationRepo{}, testRAGConfig())

	events, err := svc.StreamAnswer(context.Background(), &model.User{ID: 7}, "q")
	require.NoError(t, err)

	collected := collectEvents(t, events)
	require.NotEmpty(t, collected)

	// 已下发的片段保留，流以 error 事件收尾，不再有 sources 事件
	last := collected[len(collected)-1]
	require.Equal(t, model.EventError, last.Type)
	assert.ErrorIs(t, last.Err, ErrGenerationFailure)
	for _, ev := range collected[:len(collected)-1] {
		assert.Equal(t, model.EventAnswerChunk, ev.Type)
	}
}

func TestStreamAnswerEmbeddingFailure(t *testing.T) {
	svc := NewChatService(&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeLLM{}, rag.NewCache(&fakeSource{}), &fakeConversationRepo{}, testRAGConfig())

	_, err := svc.StreamAnswer(context.Background(), &model.User{ID: 7}, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestStreamAnswerCancellation(t *testing.T) {
	source := &fakeSource{
		docs: []model.Document{{ID: 1, UserID: 7, FileName: "a.txt"}},
		chunks: []*model.Chunk{
			{DocumentID: 1, UserID: 7, Content: "context", Embedding: model.Vector{1, 0}},
		},
	}
	llmClient := &fakeLLM{fragments: []string{"a", "b", "c", "d"}}
	svc := NewChatService(&fakeEmbedder{vector: []float32{1, 0}}, llmClient, rag.NewCache(source), &fakeConversationRepo{}, testRAGConfig())

	ctx, cancel := context.WithCancel(context.Background())
	events, err := svc.StreamAnswer(ctx, &model.User{ID: 7}, "q")
	require.NoError(t, err)

	// 读到第一个片段后取消，流必须在限定时间内关闭
	first := <-events
	assert.Equal(t, model.EventAnswerChunk, first.Type)
	cancel()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("取消后事件流未关闭")
		}
	}
}

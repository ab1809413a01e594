package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"doc-chat-go/internal/config"
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/rag"
)

// fakeDocumentRepo 是 DocumentRepository 的内存实现。
type fakeDocumentRepo struct {
	docs   []model.Document
	chunks []*model.Chunk
	nextID uint

	createCalls int
	createErr   error
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{nextID: 1}
}

func (f *fakeDocumentRepo) CreateWithChunks(_ context.Context, doc *model.Document, chunks []*model.Chunk) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	doc.ID = f.nextID
	f.nextID++
	f.docs = append(f.docs, *doc)
	for _, ch := range chunks {
		ch.DocumentID = doc.ID
		ch.UserID = doc.UserID
		f.chunks = append(f.chunks, ch)
	}
	return nil
}

func (f *fakeDocumentRepo) DeleteWithChunks(_ context.Context, doc *model.Document) error {
	kept := f.docs[:0]
	for _, d := range f.docs {
		if d.ID != doc.ID {
			kept = append(kept, d)
		}
	}
	f.docs = kept
	keptChunks := f.chunks[:0]
	for _, ch := range f.chunks {
		if ch.DocumentID != doc.ID {
			keptChunks = append(keptChunks, ch)
		}
	}
	f.chunks = keptChunks
	return nil
}

func (f *fakeDocumentRepo) FindByID(_ context.Context, id uint) (*model.Document, error) {
	for i := range f.docs {
		if f.docs[i].ID == id {
			d := f.docs[i]
			return &d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDocumentRepo) FindDocumentsByUserID(_ context.Context, userID uint) ([]model.Document, error) {
	var out []model.Document
	for _, d := range f.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocumentRepo) FindChunksByUserID(_ context.Context, userID uint) ([]*model.Chunk, error) {
	var out []*model.Chunk
	for _, ch := range f.chunks {
		if ch.UserID == userID {
			out = append(out, ch)
		}
	}
	return out, nil
}

// countingEmbedder 返回固定向量，可配置在第 failAt 次调用时失败（从 1 计数）。
type countingEmbedder struct {
	calls  int
	failAt int
}

func (e *countingEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	if e.failAt > 0 && e.calls >= e.failAt {
		return nil, errors.New("embedding api error")
	}
	return []float32{1, 0}, nil
}

func newTestDocumentService(repo *fakeDocumentRepo, embedder *countingEmbedder, cache *rag.Cache) DocumentService {
	return NewDocumentService(repo, embedder, nil, cache, config.MinIOConfig{BucketName: "test"}, testRAGConfig())
}

func TestIngestEmptyTextRejected(t *testing.T) {
	repo := newFakeDocumentRepo()
	svc := newTestDocumentService(repo, &countingEmbedder{}, rag.NewCache(repo))

	_, err := svc.Ingest(context.Background(), 1, "empty.txt", "md5", "   \n  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDocument)
	assert.Equal(t, 0, repo.createCalls)
}

func TestIngestPersistsDocumentAndChunks(t *testing.T) {
	repo := newFakeDocumentRepo()
	embedder := &countingEmbedder{}
	svc := newTestDocumentService(repo, embedder, rag.NewCache(repo))

	text := strings.Repeat("知识就是力量。", 400) // 远超单个分块
	doc, err := svc.Ingest(context.Background(), 1, "book.txt", "md5", text)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.NotZero(t, doc.ID)

	require.Greater(t, len(repo.chunks), 1)
	// 每个分块都完成了向量化，chunk_index 连续
	assert.Equal(t, len(repo.chunks), embedder.calls)
	for i, ch := range repo.chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.NotEmpty(t, ch.Embedding)
		assert.Equal(t, doc.ID, ch.DocumentID)
	}
}

func TestIngestEmbeddingFailureLeavesNoPartialData(t *testing.T) {
	repo := newFakeDocumentRepo()
	embedder := &countingEmbedder{failAt: 2} // 第二个分块向量化失败
	svc := newTestDocumentService(repo, embedder, rag.NewCache(repo))

	text := strings.Repeat("知识就是力量。", 400)
	_, err := svc.Ingest(context.Background(), 1, "book.txt", "md5", text)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	// 任何一步失败都不触达持久层
	assert.Equal(t, 0, repo.createCalls)
	assert.Empty(t, repo.docs)
	assert.Empty(t, repo.chunks)
}

func TestIngestStorageFailure(t *testing.T) {
	repo := newFakeDocumentRepo()
	repo.createErr = errors.New("deadlock")
	svc := newTestDocumentService(repo, &countingEmbedder{}, rag.NewCache(repo))

	_, err := svc.Ingest(context.Background(), 1, "a.txt", "md5", "some content")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageFailure)
}

func TestIngestInvalidatesIndexCache(t *testing.T) {
	repo := newFakeDocumentRepo()
	cache := rag.NewCache(repo)
	svc := newTestDocumentService(repo, &countingEmbedder{}, cache)

	// 先入库一篇并构建索引
	_, err := svc.Ingest(context.Background(), 1, "first.txt", "md5-1", "first document content")
	require.NoError(t, err)
	idx, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, idx)
	firstLen := idx.Len()

	// 再入库一篇，缓存必须失效并在下次查询时看到新分块
	_, err = svc.Ingest(context.Background(), 1, "second.txt", "md5-2", "second document content")
	require.NoError(t, err)

	rebuilt, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rebuilt)
	assert.Greater(t, rebuilt.Len(), firstLen)
}

func TestListDocuments(t *testing.T) {
	repo := newFakeDocumentRepo()
	svc := newTestDocumentService(repo, &countingEmbedder{}, rag.NewCache(repo))

	_, err := svc.Ingest(context.Background(), 1, "mine.txt", "md5-1", "content one")
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), 2, "theirs.txt", "md5-2", "content two")
	require.NoError(t, err)

	infos, err := svc.ListDocuments(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "mine.txt", infos[0].FileName)
}

package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chat-go/internal/model"
)

// fakeChunkSource 是 ChunkSource 的内存实现，按用户存放分块与文档。
type fakeChunkSource struct {
	chunks map[uint][]*model.Chunk
	docs   map[uint][]model.Document
	err    error

	loadCalls int
}

func (f *fakeChunkSource) FindChunksByUserID(_ context.Context, userID uint) ([]*model.Chunk, error) {
	f.loadCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[userID], nil
}

func (f *fakeChunkSource) FindDocumentsByUserID(_ context.Context, userID uint) ([]model.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[userID], nil
}

func newFakeSource() *fakeChunkSource {
	return &fakeChunkSource{
		chunks: make(map[uint][]*model.Chunk),
		docs:   make(map[uint][]model.Document),
	}
}

func TestCacheEmptyUserReturnsNilIndex(t *testing.T) {
	cache := NewCache(newFakeSource())

	idx, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, idx)
}

func TestCacheBuildAndHit(t *testing.T) {
	source := newFakeSource()
	source.docs[1] = []model.Document{{ID: 10, UserID: 1, FileName: "report.pdf"}}
	source.chunks[1] = []*model.Chunk{
		{DocumentID: 10, UserID: 1, ChunkIndex: 0, Content: "alpha", Embedding: model.Vector{1, 0}},
	}
	cache := NewCache(source)

	idx, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 1, source.loadCalls)

	// 第二次命中缓存，不再访问持久层
	again, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)
	assert.Same(t, idx, again)
	assert.Equal(t, 1, source.loadCalls)
}

func TestCacheInvalidateForcesRebuild(t *testing.T) {
	source := newFakeSource()
	source.docs[1] = []model.Document{{ID: 10, UserID: 1, FileName: "a.txt"}}
	source.chunks[1] = []*model.Chunk{
		{DocumentID: 10, UserID: 1, Content: "old", Embedding: model.Vector{1, 0}},
	}
	cache := NewCache(source)

	idx, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())

	// 模拟新文档入库后缓存失效
	source.chunks[1] = append(source.chunks[1],
		&model.Chunk{DocumentID: 10, UserID: 1, Content: "new", Embedding: model.Vector{0, 1}})
	cache.Invalidate(1)

	rebuilt, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rebuilt)
	assert.Equal(t, 2, rebuilt.Len())
}

func TestCacheBuildFailureLeavesNothingCached(t *testing.T) {
	source := newFakeSource()
	source.err = errors.New("db down")
	cache := NewCache(source)

	_, err := cache.GetOrBuild(context.Background(), 1)
	require.Error(t, err)

	// 持久层恢复后可以正常构建
	source.err = nil
	source.docs[1] = []model.Document{{ID: 10, UserID: 1, FileName: "a.txt"}}
	source.chunks[1] = []*model.Chunk{
		{DocumentID: 10, UserID: 1, Content: "ok", Embedding: model.Vector{1, 0}},
	}
	idx, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 1, idx.Len())
}

func TestCacheIsolatesUsers(t *testing.T) {
	source := newFakeSource()
	source.docs[1] = []model.Document{{ID: 10, UserID: 1, FileName: "mine.txt"}}
	source.chunks[1] = []*model.Chunk{
		{DocumentID: 10, UserID: 1, Content: "user one secret", Embedding: model.Vector{1, 0}},
	}
	cache := NewCache(source)

	idx1, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, idx1)

	// 用户 2 没有文档，拿到的是空索引而非用户 1 的数据
	idx2, err := cache.GetOrBuild(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, idx2)

	// 用户 1 的失效不影响用户 2 的后续构建
	cache.Invalidate(1)
	idx2, err = cache.GetOrBuild(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, idx2)
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	source := newFakeSource()
	source.docs[1] = []model.Document{{ID: 10, UserID: 1, FileName: "doc.txt"}}
	source.chunks[1] = []*model.Chunk{
		{DocumentID: 10, Content: "north", Embedding: model.Vector{0, 1}},
		{DocumentID: 10, Content: "east", Embedding: model.Vector{1, 0}},
		{DocumentID: 10, Content: "northeast", Embedding: model.Vector{1, 1}},
	}
	cache := NewCache(source)
	idx, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)

	results := idx.Search([]float32{1, 0}, 2)
	require.Len(t, results, 2)
	assert.Equal(t, "east", results[0].Content)
	assert.Equal(t, "northeast", results[1].Content)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchTieBreakByInsertionOrder(t *testing.T) {
	source := newFakeSource()
	source.docs[1] = []model.Document{{ID: 10, UserID: 1, FileName: "doc.txt"}}
	// c1 与 c3 得分相同（同向向量），c2 得分更低
	source.chunks[1] = []*model.Chunk{
		{DocumentID: 10, Content: "c1", Embedding: model.Vector{1, 0}},
		{DocumentID: 10, Content: "c2", Embedding: model.Vector{0, 1}},
		{DocumentID: 10, Content: "c3", Embedding: model.Vector{2, 0}},
	}
	cache := NewCache(source)
	idx, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)

	results := idx.Search([]float32{1, 0}, 2)
	require.Len(t, results, 2)
	// 得分并列时先入库的分块优先
	assert.Equal(t, "c1", results[0].Content)
	assert.Equal(t, "c3", results[1].Content)
}

func TestSearchKLargerThanIndex(t *testing.T) {
	source := newFakeSource()
	source.docs[1] = []model.Document{{ID: 10, UserID: 1, FileName: "doc.txt"}}
	source.chunks[1] = []*model.Chunk{
		{DocumentID: 10, Content: "only", Embedding: model.Vector{1, 0}},
	}
	cache := NewCache(source)
	idx, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)

	results := idx.Search([]float32{1, 0}, 10)
	assert.Len(t, results, 1)
}

func TestSearchZeroVectorScoresZero(t *testing.T) {
	source := newFakeSource()
	source.docs[1] = []model.Document{{ID: 10, UserID: 1, FileName: "doc.txt"}}
	source.chunks[1] = []*model.Chunk{
		{DocumentID: 10, Content: "zero", Embedding: model.Vector{0, 0}},
	}
	cache := NewCache(source)
	idx, err := cache.GetOrBuild(context.Background(), 1)
	require.NoError(t, err)

	results := idx.Search([]float32{1, 0}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, float64(0), results[0].Score)
}

func TestNilIndexSearchReturnsNothing(t *testing.T) {
	var idx *Index
	assert.Nil(t, idx.Search([]float32{1, 0}, 3))
}

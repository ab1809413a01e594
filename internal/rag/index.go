package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"doc-chat-go/internal/model"
	"doc-chat-go/pkg/log"
)

// ChunkSource 从持久层加载某个用户的全部分块与文档。
// 分块必须按入库顺序返回，检索打分相同时先入库的分块优先。
type ChunkSource interface {
	FindChunksByUserID(ctx context.Context, userID uint) ([]*model.Chunk, error)
	FindDocumentsByUserID(ctx context.Context, userID uint) ([]model.Document, error)
}

// indexEntry 是索引内一个分块的只读副本。
type indexEntry struct {
	content  string
	fileName string
	vector   []float32
	norm     float64
}

// Index 是某个用户全部分块上的内存相似度索引。
// 它是 Chunk 表的派生只读副本，随时可以从持久层重建。
type Index struct {
	entries []indexEntry
	builtAt time.Time
}

// Len 返回索引内的分块数量。
func (idx *Index) Len() int {
	return len(idx.entries)
}

// BuiltAt 返回索引的构建时间。
func (idx *Index) BuiltAt() time.Time {
	return idx.builtAt
}

// SearchResult 是一次检索命中的分块。
type SearchResult struct {
	Content  string
	FileName string
	Score    float64
}

// Search 返回与查询向量余弦相似度最高的至多 k 个分块，按相似度降序。
// 相似度相同时按入库顺序稳定排序，先入库的分块优先。
func (idx *Index) Search(query []float32, k int) []SearchResult {
	if idx == nil || len(idx.entries) == 0 || k <= 0 {
		return nil
	}

	queryNorm := vectorNorm(query)
	scored := make([]SearchResult, 0, len(idx.entries))
	for _, e := range idx.entries {
		scored = append(scored, SearchResult{
			Content:  e.content,
			FileName: e.fileName,
			Score:    cosine(e.vector, e.norm, query, queryNorm),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

// Cache 是按用户维护的内存向量索引缓存。
// 它是进程内唯一的共享可变结构：不同用户的条目互不冲突，
// 同一用户的并发重建是幂等的（构建是持久化状态上的纯函数）。
type Cache struct {
	mu      sync.RWMutex
	entries map[uint]*Index
	source  ChunkSource
}

// NewCache 创建一个新的索引缓存。
func NewCache(source ChunkSource) *Cache {
	return &Cache{
		entries: make(map[uint]*Index),
		source:  source,
	}
}

// GetOrBuild 返回该用户的索引；缓存未命中时从持久层重建。
// 用户没有任何分块时返回 (nil, nil)，表示"尚无文档"而非错误。
// 构建失败不会污染缓存：原有条目（或无条目）保持不变。
func (c *Cache) GetOrBuild(ctx context.Context, userID uint) (*Index, error) {
	c.mu.RLock()
	idx, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok {
		return idx, nil
	}

	// 构建在锁外进行：只读重建，同一用户并发重建结果等价
	chunks, err := c.source.FindChunksByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("加载用户分块失败: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	docs, err := c.source.FindDocumentsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("加载用户文档失败: %w", err)
	}

	fileNames := make(map[uint]string, len(docs))
	for _, d := range docs {
		fileNames[d.ID] = d.FileName
	}

	idx = &Index{
		entries: make([]indexEntry, 0, len(chunks)),
		builtAt: time.Now(),
	}
	for _, ch := range chunks {
		idx.entries = append(idx.entries, indexEntry{
			content:  ch.Content,
			fileName: fileNames[ch.DocumentID],
			vector:   ch.Embedding,
			norm:     vectorNorm(ch.Embedding),
		})
	}

	c.mu.Lock()
	c.entries[userID] = idx
	c.mu.Unlock()

	log.Infof("[VectorCache] 用户 %d 的向量索引构建完成, 分块数: %d", userID, len(chunks))
	return idx, nil
}

// Invalidate 移除该用户的缓存条目。
// 每次成功入库或删除文档后必须调用，保证后续查询不会读到过期索引。
func (c *Cache) Invalidate(userID uint) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine 计算余弦相似度，范数为零时返回 0。
func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}

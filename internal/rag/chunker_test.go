package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	assert.Empty(t, Split("", 1000, 200))
	assert.Empty(t, Split("   \n\t  ", 1000, 200))
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	text := "这是一段不需要切分的短文本。"
	chunks := Split(text, 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitNonEmptyAlwaysProducesChunk(t *testing.T) {
	chunks := Split("x", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "x", chunks[0])
}

func TestSplitLongInputProducesMultipleChunks(t *testing.T) {
	text := strings.Repeat("天气很好。", 100) // 500 个字符
	chunks := Split(text, 100, 20)
	require.Greater(t, len(chunks), 1)

	// 所有分块拼回后必须覆盖原文（去掉重叠即为原文）
	for _, c := range chunks {
		assert.NotEmpty(t, c)
		assert.LessOrEqual(t, len([]rune(c)), 100)
	}
}

func TestSplitExactOverlap(t *testing.T) {
	text := strings.Repeat("天气很好。", 100)
	overlap := 20
	chunks := Split(text, 100, overlap)
	require.Greater(t, len(chunks), 1)

	// 相邻分块共享恰好 overlap 个字符
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		require.GreaterOrEqual(t, len(prev), overlap)
		tail := string(prev[len(prev)-overlap:])
		head := string(cur[:overlap])
		assert.Equal(t, tail, head, "chunk %d 与前一分块的重叠不一致", i)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	first := Split(text, 200, 50)
	second := Split(text, 200, 50)
	assert.Equal(t, first, second)
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	// 第一个句号落在切分窗口内，切分点应落在句号之后
	text := strings.Repeat("a", 80) + "。" + strings.Repeat("b", 120)
	chunks := Split(text, 100, 10)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], "。"))
}

func TestSplitInvalidOverlapFallsBack(t *testing.T) {
	text := strings.Repeat("x", 250)
	// overlap >= targetSize 时退化为硬切
	chunks := Split(text, 100, 100)
	require.Len(t, chunks, 3)
	assert.Equal(t, 100, len([]rune(chunks[0])))
	assert.Equal(t, 50, len([]rune(chunks[2])))
}

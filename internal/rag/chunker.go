// Package rag 实现了检索增强生成的核心流程：文本分块、
// 按用户维护的内存向量索引与检索、以及提示词组装。
package rag

import (
	"strings"
	"unicode"
)

// 分块的默认参数，与向量化模型的上下文长度相匹配。
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Split 将长文本切分为带重叠的分块。
// 每个分块约 targetSize 个字符（按 rune 计），相邻分块共享 overlap 个字符；
// 切分点优先落在段落、句子或空白边界，找不到时按字符硬切。
// 非空输入至少产生一个分块，空输入产生零个分块；结果是确定性的。
func Split(text string, targetSize, overlap int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if targetSize <= 0 {
		targetSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= targetSize {
		// 重叠参数非法时退化为无重叠的硬切
		return hardSplit([]rune(trimmed), targetSize)
	}

	runes := []rune(trimmed)
	if len(runes) <= targetSize {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + targetSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		end = snapToBoundary(runes, start, end, overlap)
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlap
	}
	return chunks
}

// snapToBoundary 在 [floor, end) 范围内向前回退，寻找最近的自然切分点。
// 优先级：段落（空行）> 句末标点 > 空白字符；floor 保证每次切分都有进展。
func snapToBoundary(runes []rune, start, end, overlap int) int {
	floor := start + (end-start)/2
	if min := start + overlap + 1; floor < min {
		floor = min
	}

	// 段落边界：连续两个换行
	for i := end; i > floor; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	// 句子边界：句末标点
	for i := end; i > floor; i-- {
		if isSentenceEnd(runes[i-1]) {
			return i
		}
	}
	// 空白边界
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '；', ';':
		return true
	}
	return false
}

// hardSplit 按固定长度切分，不带重叠。
func hardSplit(runes []rune, chunkSize int) []string {
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

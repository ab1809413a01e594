package rag

import (
	"fmt"
	"strings"
)

// DefaultRules 是默认的系统指令：只允许基于给定上下文作答。
const DefaultRules = `You are an intelligent assistant. Answer the user's question based ONLY on the following context.
If the information is not in the context, say "I don't have enough information from the documents to answer that."
Do not use any prior knowledge. Be concise and helpful.`

// DefaultNoDocumentText 是用户尚未上传任何文档时的引导回复。
const DefaultNoDocumentText = "I have no documents to search. Please upload a document first."

// ComposePrompt 将系统指令、检索到的分块与原始问题组装成单个提示词。
// 每个分块带上来源文件名标注；问题原样置于末尾。
// 分块只会来自提问用户自己的索引，因此不会泄露其他用户的内容。
func ComposePrompt(question string, results []SearchResult, rules string) string {
	if rules == "" {
		rules = DefaultRules
	}

	var b strings.Builder
	b.WriteString(rules)
	b.WriteString("\n\nCONTEXT:\n")
	for i, r := range results {
		fileLabel := r.FileName
		if fileLabel == "" {
			fileLabel = "unknown"
		}
		b.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, fileLabel, r.Content))
	}
	b.WriteString("\nQUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nANSWER:")
	return b.String()
}

package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposePromptContainsAllParts(t *testing.T) {
	results := []SearchResult{
		{Content: "巴黎是法国的首都。", FileName: "geo.pdf"},
		{Content: "柏林是德国的首都。", FileName: "geo.pdf"},
	}
	prompt := ComposePrompt("法国的首都是哪里？", results, "")

	assert.True(t, strings.HasPrefix(prompt, DefaultRules))
	assert.Contains(t, prompt, "[1] (geo.pdf) 巴黎是法国的首都。")
	assert.Contains(t, prompt, "[2] (geo.pdf) 柏林是德国的首都。")
	assert.Contains(t, prompt, "QUESTION:\n法国的首都是哪里？")
	assert.True(t, strings.HasSuffix(prompt, "ANSWER:"))
}

func TestComposePromptQuestionVerbatim(t *testing.T) {
	question := `含有 "引号" 与
换行的问题`
	prompt := ComposePrompt(question, nil, "")
	assert.Contains(t, prompt, question)
}

func TestComposePromptCustomRules(t *testing.T) {
	prompt := ComposePrompt("q", nil, "只用中文回答。")
	assert.True(t, strings.HasPrefix(prompt, "只用中文回答。"))
	assert.NotContains(t, prompt, DefaultRules)
}

func TestComposePromptUnknownFileName(t *testing.T) {
	prompt := ComposePrompt("q", []SearchResult{{Content: "text"}}, "")
	assert.Contains(t, prompt, "[1] (unknown) text")
}

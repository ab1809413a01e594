// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 业务错误分类。handler 层通过 errors.Is 匹配并映射为 HTTP 状态码。
var (
	// ErrEmptyDocument 表示上传内容未提取到任何文本，什么都不会持久化。
	ErrEmptyDocument = errors.New("文档未提取到任何文本内容")
	// ErrEmbeddingUnavailable 表示向量化服务失败或超时，入库与问答都直接失败，
	// 不会留下部分索引状态。
	ErrEmbeddingUnavailable = errors.New("向量化服务不可用")
	// ErrStorageFailure 表示持久层写入失败，该请求整体回滚。
	ErrStorageFailure = errors.New("持久化存储失败")
	// ErrGenerationFailure 表示大模型调用在流开始前或中途失败。
	ErrGenerationFailure = errors.New("生成服务调用失败")
	// ErrFeedbackFailure 表示反馈日志写入失败，可安全重试。
	ErrFeedbackFailure = errors.New("反馈记录写入失败")
	// ErrDocumentNotFound 表示文档不存在或不属于当前用户。
	ErrDocumentNotFound = errors.New("文档不存在")
)

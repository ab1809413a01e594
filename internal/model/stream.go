package model

// SourceRef 是流式回答结束时下发的引用来源。
type SourceRef struct {
	FileName    string `json:"file_name"`
	PageContent string `json:"page_content"`
}

// StreamEventType 标识流式事件的种类。
type StreamEventType int

const (
	// EventAnswerChunk 携带一段回答片段，按到达顺序拼接成完整回答。
	EventAnswerChunk StreamEventType = iota
	// EventSources 是成功终止事件，携带本次检索使用的来源列表。
	EventSources
	// EventError 是失败终止事件，已下发的片段不回收。
	EventError
)

// StreamEvent 是问答流上的单个事件。
// 一次成功的流由若干 EventAnswerChunk 后跟一个 EventSources 组成；
// 失败的流以 EventError 结束且不再有 EventSources。
type StreamEvent struct {
	Type        StreamEventType
	AnswerChunk string
	Sources     []SourceRef
	Err         error
}

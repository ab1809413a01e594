// Package events 定义了发往消息队列的事件负载。
package events

import "time"

// DocumentIngestedEvent 在一次文档入库事务提交成功后发布。
// 供审计与下游统计消费，不参与请求路径。
type DocumentIngestedEvent struct {
	UserID     uint      `json:"user_id"`
	DocumentID uint      `json:"document_id"`
	FileName   string    `json:"file_name"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Document 对应于数据库中的 'documents' 表。
// 记录一次成功入库的文档，创建后不再修改；删除时级联删除其全部分块。
type Document struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	FileName  string    `gorm:"type:varchar(255);not null" json:"fileName"`
	FileMD5   string    `gorm:"type:varchar(32);not null;index" json:"fileMd5"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// Chunk 对应于数据库中的 'chunks' 表。
// 每条记录是文档的一段文本及其向量表示，持久化后不可变。
// 不变式：每条已持久化的分块向量维度等于进程级配置的 D。
type Chunk struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID uint   `gorm:"index;not null" json:"documentId"`
	UserID     uint   `gorm:"index;not null" json:"userId"`
	ChunkIndex int    `gorm:"not null" json:"chunkIndex"`
	Content    string `gorm:"type:text;not null" json:"content"`
	Embedding  Vector `gorm:"type:json;not null" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chunk) TableName() string {
	return "chunks"
}

// Vector 是以 JSON 形式存储在数据库中的向量列类型。
type Vector []float32

// Value 实现 driver.Valuer 接口，序列化为 JSON 字符串。
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, errors.New("向量不能为空")
	}
	return json.Marshal(v)
}

// Scan 实现 sql.Scanner 接口，从 JSON 字符串反序列化。
func (v *Vector) Scan(src interface{}) error {
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("无法将 %T 扫描为 Vector", src)
	}
}

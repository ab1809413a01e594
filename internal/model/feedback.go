package model

import "time"

// Feedback 对应于数据库中的 'feedbacks' 表。
// 只追加写入；同一用户对同一 (question, answer) 组合至多保留一条记录，
// 通过 PairHash 上的唯一索引保证幂等。
type Feedback struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:uk_user_pair;not null" json:"userId"`
	PairHash  string    `gorm:"type:varchar(32);uniqueIndex:uk_user_pair;not null" json:"-"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	IsHelpful bool      `gorm:"not null" json:"isHelpful"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"recordedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Feedback) TableName() string {
	return "feedbacks"
}

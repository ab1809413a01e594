package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGormConfigTranslatesDriverErrors(t *testing.T) {
	// 唯一索引冲突必须被翻译成 gorm.ErrDuplicatedKey，
	// 反馈服务的重复提交恢复路径依赖这一点
	assert.True(t, gormConfig().TranslateError)
}

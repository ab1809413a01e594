// Package database 管理数据库与缓存的连接。
package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"doc-chat-go/pkg/log"
)

var DB *gorm.DB

// gormConfig 返回统一的 GORM 配置。
// TranslateError 必须开启：反馈的幂等写入靠 errors.Is(err, gorm.ErrDuplicatedKey)
// 识别唯一索引冲突，不开启时驱动返回原始的 MySQL 1062 错误，无法匹配。
func gormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// InitMySQL 初始化 MySQL 数据库连接。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL database connected successfully")
}

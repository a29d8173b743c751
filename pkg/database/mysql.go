// Package database 初始化 MySQL 与 Redis 连接。
package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"music-copilot-go/internal/config"
	"music-copilot-go/internal/model"
	"music-copilot-go/pkg/log"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接并迁移会话与知识库表结构
func InitMySQL(cfg config.MySQLConfig) {
	var err error
	DB, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	if err := DB.AutoMigrate(
		&model.Conversation{},
		&model.Message{},
		&model.KnowledgeDocument{},
		&model.KnowledgeChunk{},
	); err != nil {
		log.Fatal("failed to migrate tables", err)
	}

	log.Info("MySQL database connected successfully")
}

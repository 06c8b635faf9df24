package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// DefaultPath 是未配置 DATABASE_URL 时使用的 sqlite 文件。
const DefaultPath = "attendlog.db"

// Models 列出需要自动迁移的全部模型。
func Models() []interface{} {
	return []interface{}{
		&Heartbeat{},
		&DailyAttendance{},
		&Correction{},
		&Settings{},
		&Holiday{},
		&Leave{},
		&User{},
	}
}

// Init 根据 databaseURL 选择驱动、建立连接并执行自动迁移，同时设置全局 DB。
// postgres:// 与 postgresql:// 使用 Postgres，mysql:// 使用 MySQL（去掉前缀后作为 DSN），
// 其余一律视为 sqlite 文件路径，为空时回退到 attendlog.db。
func Init(databaseURL string, gormLogger logger.Interface) (*gorm.DB, error) {
	dialector, err := Dialector(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg := &gorm.Config{}
	if gormLogger != nil {
		cfg.Logger = gormLogger
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}

	DB = gdb
	return gdb, nil
}

// Migrate 为全部模型建表。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Dialector 解析连接串并返回对应的 GORM 驱动。
func Dialector(databaseURL string) (gorm.Dialector, error) {
	raw := strings.TrimSpace(databaseURL)
	lower := strings.ToLower(raw)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return postgres.Open(raw), nil
	case strings.HasPrefix(lower, "mysql://"):
		dsn := raw[len("mysql://"):]
		if dsn == "" {
			return nil, errors.New("empty mysql dsn")
		}
		return mysql.Open(dsn), nil
	}

	path := strings.TrimPrefix(raw, "sqlite://")
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "file:") {
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
	}
	return sqlite.Open(path), nil
}

// Ping 检查底层连接是否可用。
func Ping(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}

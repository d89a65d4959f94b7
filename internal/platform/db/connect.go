package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Conn wraps one gorm handle for a resolved connection target.
// Claim attempts draw their transactions from this handle's pool; no claim
// state lives in process memory beyond the pool itself.
type Conn struct {
	DB     *gorm.DB
	Engine Engine
}

func Connect(target string) (*Conn, error) {
	if target == "" {
		return nil, errors.New("connection target is required")
	}

	engine, err := DetectEngine(target)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch engine {
	case EnginePostgres:
		dialector = postgres.Open(target)
	case EngineSQLite:
		dialector = sqlite.Open(strings.TrimPrefix(target, "sqlite://"))
	default:
		return nil, fmt.Errorf("no dialector for engine %q", engine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm %s: %w", engine, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve %s sql db handle: %w", engine, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", engine, err)
	}
	return &Conn{DB: db, Engine: engine}, nil
}

func (c *Conn) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

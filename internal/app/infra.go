package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/RuslanFatikhov/CoffeeLog/internal/config"
	"github.com/RuslanFatikhov/CoffeeLog/internal/db"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type infra struct {
	db    *db.DB
	redis *goredis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*infra, error) {
	sqlDB, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.Migrate(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logrus.Info("database ready")

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logrus.Info("redis ready")

	return &infra{
		db:    &db.DB{DB: sqlDB},
		redis: redisClient,
	}, nil
}

func (i *infra) close() error {
	if err := i.redis.Close(); err != nil {
		i.db.Close()
		return err
	}
	return i.db.Close()
}

package db

import (
	"context"
	"fmt"

	"github.com/malwarebo/playgate/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

// Connect opens the primary connection and, when replica DSNs are configured,
// registers them behind dbresolver. The billing transaction always runs on
// the primary because gorm pins transactions to the write connection; only
// standalone reads may be routed to replicas.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Surfaces postgres unique violations as gorm.ErrDuplicatedKey,
		// which the idempotency store depends on.
		TranslateError: true,
	}

	database, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.MaxIdleTime)

	if len(cfg.Database.ReplicaDSNs) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Database.ReplicaDSNs))
		for _, dsn := range cfg.Database.ReplicaDSNs {
			replicas = append(replicas, postgres.Open(dsn))
		}

		err = database.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to register read replicas: %w", err)
		}
	}

	return database, nil
}

// Pinger adapts a gorm handle to the health endpoint's check interface.
type Pinger struct {
	db *gorm.DB
}

func NewPinger(database *gorm.DB) *Pinger {
	return &Pinger{db: database}
}

func (p *Pinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

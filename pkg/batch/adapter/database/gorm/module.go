package gorm

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
)

// NewDB opens the configured database and closes it on application stop.
func NewDB(lc fx.Lifecycle, cfg dbconfig.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return Close(db) },
	})
	return db, nil
}

// Module provides *gorm.DB and a GORM-backed tx.TransactionManager.
// It requires a dbconfig.DatabaseConfig and a registered dialector.
var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Provide(fx.Annotate(
		NewGormTransactionManager,
		fx.As(new(tx.TransactionManager)),
	)),
)

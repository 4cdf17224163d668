package commands

import (
	"context"
	"errors"

	"github.com/jbalderas/prefcore/internal/logger"
	postgresstore "github.com/jbalderas/prefcore/internal/store/postgres"
	"github.com/rs/zerolog/log"
)

type MigrateCmd struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`
}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	if m.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--conn-string or POSTGRES_CONNECTION_STRING)")
	}

	pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{ConnString: m.ConnString})
	if err != nil {
		return err
	}
	defer pool.Close()

	return postgresstore.RunMigrations(ctx, pool)
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/guildgate/internal/store/core"
	"github.com/dropDatabas3/guildgate/internal/store/memory"
	"github.com/dropDatabas3/guildgate/internal/store/pg"
)

type Config struct {
	Driver   string
	DSN      string
	Postgres struct {
		MaxOpenConns, MaxIdleConns int
		ConnMaxLifetime            string
	}
}

// Open devuelve el core.Repository según el driver configurado.
func Open(ctx context.Context, cfg Config) (core.Repository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return memory.New(), nil
	case "postgres", "pg":
		return pg.New(ctx, cfg.DSN, pg.Tuning{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("store: driver desconocido %q", cfg.Driver)
	}
}

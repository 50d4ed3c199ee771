package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/guildgate/internal/store/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ pool *pgxpool.Pool }

// Tuning opcional del pool (viene de config.Storage.Postgres).
type Tuning struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

func New(ctx context.Context, dsn string, t Tuning) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if t.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(t.MaxOpenConns)
	}
	// Mapear MaxIdleConns → MinConns (pgxpool)
	if t.MaxIdleConns > 0 {
		pcfg.MinConns = int32(t.MaxIdleConns)
	}
	if t.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(t.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 5
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno para usos avanzados (metrics/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// UpsertByExternalID escribe el registro con semántica last-write-wins.
// El ON CONFLICT por external_id garantiza atomicidad ante verificaciones
// concurrentes del mismo usuario.
func (s *Store) UpsertByExternalID(ctx context.Context, u *core.VerifiedUser) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO verified_users
            (external_id, username, discriminator, avatar_ref,
             access_token, refresh_token, verified_at,
             origin_guild_id, origin_guild_name)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (external_id) DO UPDATE SET
            username          = EXCLUDED.username,
            discriminator     = EXCLUDED.discriminator,
            avatar_ref        = EXCLUDED.avatar_ref,
            access_token      = EXCLUDED.access_token,
            refresh_token     = EXCLUDED.refresh_token,
            verified_at       = EXCLUDED.verified_at,
            origin_guild_id   = EXCLUDED.origin_guild_id,
            origin_guild_name = EXCLUDED.origin_guild_name`,
		u.ExternalID, u.Username, u.Discriminator, u.AvatarRef,
		u.AccessToken, u.RefreshToken, u.VerifiedAt,
		u.OriginGuildID, u.OriginGuildName,
	)
	return err
}

const selectCols = `external_id, username, discriminator, avatar_ref,
       access_token, refresh_token, verified_at, origin_guild_id, origin_guild_name`

func scanUser(row pgx.Row) (*core.VerifiedUser, error) {
	var u core.VerifiedUser
	err := row.Scan(&u.ExternalID, &u.Username, &u.Discriminator, &u.AvatarRef,
		&u.AccessToken, &u.RefreshToken, &u.VerifiedAt, &u.OriginGuildID, &u.OriginGuildName)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*core.VerifiedUser, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+selectCols+` FROM verified_users WHERE external_id = $1`, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) List(ctx context.Context) ([]core.VerifiedUser, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectCols+` FROM verified_users ORDER BY verified_at DESC, external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListByExternalIDs preserva el orden de entrada: el query trae el set y
// después reordenamos en memoria (los lotes son chicos).
func (s *Store) ListByExternalIDs(ctx context.Context, externalIDs []string) ([]core.VerifiedUser, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectCols+` FROM verified_users WHERE external_id = ANY($1)`, externalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found, err := collect(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]core.VerifiedUser, len(found))
	for _, u := range found {
		byID[u.ExternalID] = u
	}
	out := make([]core.VerifiedUser, 0, len(externalIDs))
	for _, id := range externalIDs {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) DeleteByExternalID(ctx context.Context, externalID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verified_users WHERE external_id = $1`, externalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) Stats(ctx context.Context, now time.Time) (core.Stats, error) {
	var st core.Stats
	err := s.pool.QueryRow(ctx, `
        SELECT count(*),
               count(*) FILTER (WHERE verified_at > $1),
               count(*) FILTER (WHERE access_token <> '')
          FROM verified_users`,
		now.Add(-24*time.Hour),
	).Scan(&st.Total, &st.Last24h, &st.WithToken)
	return st, err
}

func collect(rows pgx.Rows) ([]core.VerifiedUser, error) {
	var out []core.VerifiedUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

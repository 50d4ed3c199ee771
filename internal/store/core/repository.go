package core

import (
	"context"
	"time"
)

// Repository es el VerifiedUserStore: persistencia keyed por ExternalID.
// El upsert debe ser atómico por clave (last write wins, sin duplicados
// ante verificaciones concurrentes del mismo usuario).
type Repository interface {
	Ping(ctx context.Context) error

	UpsertByExternalID(ctx context.Context, u *VerifiedUser) error
	GetByExternalID(ctx context.Context, externalID string) (*VerifiedUser, error)

	// List devuelve todos los registros ordenados por VerifiedAt descendente.
	List(ctx context.Context) ([]VerifiedUser, error)

	// ListByExternalIDs devuelve los registros pedidos preservando el orden
	// de entrada; los IDs desconocidos se omiten sin error.
	ListByExternalIDs(ctx context.Context, externalIDs []string) ([]VerifiedUser, error)

	DeleteByExternalID(ctx context.Context, externalID string) error

	Stats(ctx context.Context, now time.Time) (Stats, error)

	Close()
}

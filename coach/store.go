package coach

import "context"

// Repository is the durable store for user records. Implementations
// must serialize Mutate calls per user id: none of the engine's
// mutations are commutative, so concurrent read-modify-persist cycles
// for the same user would lose updates.
type Repository interface {
	Ensure(ctx context.Context) error

	// Mutate runs fn against the authoritative record for userID under
	// the per-user lock and persists the result if fn returns nil. The
	// record is created (with defaults) on first reference.
	Mutate(ctx context.Context, userID string, fn func(*User) error) error

	// Snapshot returns a deep copy safe to read without a lock.
	Snapshot(ctx context.Context, userID string) (*User, error)

	UserIDs(ctx context.Context) ([]string, error)

	// RawExport returns the serialized store for export/backup.
	RawExport(ctx context.Context) ([]byte, error)
}

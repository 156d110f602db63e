package history

import (
	"context"
	"strings"
)

// NewStore picks Postgres when a database URL is configured, otherwise an
// in-process ring.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewRingStore(0), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

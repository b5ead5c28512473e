package store

import (
	"context"
	"fmt"

	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/pkg/filesystem"
	"github.com/doeshing/riskgate/internal/ports"
)

// Open builds the backend named by settings.Driver.
func Open(ctx context.Context, settings domain.StoreSettings) (ports.Store, error) {
	switch driver := settings.NormalizedDriver(); driver {
	case domain.StoreDriverMemory:
		return NewMemory(), nil
	case domain.StoreDriverSQLite:
		path := settings.DSN
		if path == "" {
			path = "~/.riskgate/descriptors.db"
		}
		return OpenSQLite(ctx, filesystem.ExpandPath(path))
	case domain.StoreDriverPostgres:
		return OpenPostgres(ctx, settings.DSN)
	case domain.StoreDriverRedis:
		s := NewRedis(settings.RedisAddr, settings.RedisPassword, settings.RedisDB, settings.KeyPrefix)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("connect redis %s: %w", settings.RedisAddr, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

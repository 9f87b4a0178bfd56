package repository

import (
	"context"
	"fmt"
)

// Migrate creates or updates every table. The primary runs it once before
// spawning workers.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

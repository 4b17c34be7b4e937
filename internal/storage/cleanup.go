package storage

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/jwalitptl/osteo-api/pkg/errors"
)

// RemoveFiles deletes every path, carrying on after failures. Files that are
// already gone count as removed. The failures are returned together as a
// *errors.FileCleanupError.
func RemoveFiles(ctx context.Context, fs FileStore, paths ...string) error {
	var (
		failed []string
		errs   []error
	)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := fs.Delete(ctx, p); err != nil && !errors.Is(err, ErrNoObject) {
			failed = append(failed, p)
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &apperrors.FileCleanupError{Paths: failed, Err: errors.Join(errs...)}
}

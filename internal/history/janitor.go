package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"mygizmo/internal/events"
	"mygizmo/internal/filestore"
)

// Janitor removes the bytes of files whose metadata went away with their
// owner.
type Janitor struct {
	files filestore.Store
}

func NewJanitor(files filestore.Store) *Janitor {
	return &Janitor{files: files}
}

func (j *Janitor) Handle(ctx context.Context, e events.Event) error {
	const op = "history.Janitor.Handle"

	switch e.Type {
	case events.AccountDeleted:
		var errs []error
		for _, name := range e.StoredNames {
			if err := j.files.Delete(ctx, name); err != nil {
				errs = append(errs, err)
			}
		}
		log.Info().
			Int64("account_id", e.AccountID).
			Int("files", len(e.StoredNames)).
			Int("failed", len(errs)).
			Msg("account files removed")
		if len(errs) > 0 {
			return fmt.Errorf("%s: %w", op, errors.Join(errs...))
		}
		return nil
	default:
		log.Debug().Str("type", string(e.Type)).Int64("account_id", e.AccountID).Msg("event ignored")
		return nil
	}
}

// Package history keeps the artifacts produced by signed-in users and
// serves them back to their owners.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/events"
	"mygizmo/internal/filestore"
	"mygizmo/internal/metrics"
	"mygizmo/internal/models"
	"mygizmo/internal/naming"
	"mygizmo/internal/storage"
)

var ErrNotFound = errors.New("file not found")

const (
	maxAttempts = 3
	// maxOriginalName matches the original_name column.
	maxOriginalName = 300
)

type Repository interface {
	CreateStoredFile(ctx context.Context, f *models.StoredFile, persist func(ctx context.Context) error) error
	GetStoredFile(ctx context.Context, storedName string, accountID int64) (*models.StoredFile, error)
	ListStoredFiles(ctx context.Context, accountID int64, limit int) ([]models.StoredFile, error)
}

type Recorder struct {
	repo  Repository
	files filestore.Store
	pub   events.Publisher
}

func NewRecorder(repo Repository, files filestore.Store, pub events.Publisher) *Recorder {
	return &Recorder{repo: repo, files: files, pub: pub}
}

// Record keeps a copy of src for the caller. Anonymous callers are
// skipped. Failures are logged and never returned: the caller's download
// goes ahead either way. The new row is returned when one was written.
func (r *Recorder) Record(ctx context.Context, id *models.Identity, src models.FileSource, displayName, tool string) *models.StoredFile {
	if id == nil {
		metrics.HistoryRecords.WithLabelValues(metrics.Skipped).Inc()
		return nil
	}
	logger := log.With().Int64("account_id", id.AccountID).Str("tool", tool).Logger()
	safe := naming.SafeFilename(displayName, "artifact")
	if r := []rune(displayName); len(r) > maxOriginalName {
		displayName = string(r[:maxOriginalName])
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		f := &models.StoredFile{
			ID:           uuid.New(),
			OriginalName: displayName,
			StoredName:   naming.Prefixed(safe),
			Tool:         tool,
			AccountID:    id.AccountID,
		}

		saved := false
		err := r.repo.CreateStoredFile(ctx, f, func(ctx context.Context) error {
			if err := r.save(ctx, f.StoredName, src); err != nil {
				return err
			}
			saved = true
			return nil
		})
		if err == nil {
			metrics.HistoryRecords.WithLabelValues(metrics.Stored).Inc()
			logger.Info().Str("stored_name", f.StoredName).Msg("artifact recorded")
			r.publish(ctx, events.Event{
				Type:       events.ArtifactStored,
				AccountID:  id.AccountID,
				StoredName: f.StoredName,
				Tool:       tool,
			})
			return f
		}

		if saved {
			// The bytes made it but the row did not.
			if derr := r.files.Delete(ctx, f.StoredName); derr != nil {
				logger.Error().Err(derr).Str("stored_name", f.StoredName).Msg("failed to remove orphaned file")
			}
		}
		if isCollision(err) && attempt < maxAttempts {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("stored name collision, retrying")
			continue
		}
		logger.Error().Err(err).Msg("failed to record artifact")
		break
	}

	metrics.HistoryRecords.WithLabelValues(metrics.Failed).Inc()
	return nil
}

func isCollision(err error) bool {
	return errors.Is(err, storage.ErrConflict) || errors.Is(err, filestore.ErrExists)
}

func (r *Recorder) save(ctx context.Context, name string, src models.FileSource) error {
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return r.files.Save(ctx, name, rc)
}

func (r *Recorder) publish(ctx context.Context, e events.Event) {
	if r.pub == nil {
		return
	}
	if err := r.pub.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("type", string(e.Type)).Msg("failed to publish event")
	}
}

// Open returns a stored file owned by the caller and its bytes. A file
// owned by someone else is reported as ErrNotFound.
func (r *Recorder) Open(ctx context.Context, id *models.Identity, storedName string) (*models.StoredFile, io.ReadCloser, error) {
	const op = "history.Recorder.Open"

	if id == nil {
		return nil, nil, ErrNotFound
	}
	f, err := r.repo.GetStoredFile(ctx, storedName, id.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	rc, err := r.files.Open(ctx, f.StoredName)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			log.Warn().Str("stored_name", f.StoredName).Msg("stored file has no bytes")
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, rc, nil
}

// Recent lists the caller's newest files first.
func (r *Recorder) Recent(ctx context.Context, id *models.Identity, limit int) ([]models.StoredFile, error) {
	if id == nil {
		return nil, nil
	}
	return r.repo.ListStoredFiles(ctx, id.AccountID, limit)
}

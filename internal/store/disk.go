package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"talestrom/internal/domain"
)

// DiskStore persists recordings as individual files under a base directory.
// Each id is written exactly once, so concurrent access needs no locking
// beyond what the filesystem provides.
type DiskStore struct {
	dir   string
	ext   string
	log   *zap.Logger
	clock func() time.Time
}

func NewDiskStore(dir string, ext string, log *zap.Logger) (*DiskStore, error) {
	if ext == "" {
		ext = ".webm"
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating recordings dir: %v", domain.ErrPersistence, err)
	}
	return &DiskStore{dir: dir, ext: ext, log: log, clock: time.Now}, nil
}

// Save stores the payload durably and returns the generated id. The write
// goes through a temp file and rename so a crash never leaves a readable
// half-written artifact under a valid id.
func (s *DiskStore) Save(ctx context.Context, audio []byte, duration time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	id := newRecordingID(s.clock(), duration, s.ext)
	final := filepath.Join(s.dir, id)

	tmp, err := os.CreateTemp(s.dir, ".pending-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(audio); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	s.log.Info("recording saved",
		zap.String("id", id),
		zap.Int("bytes", len(audio)),
		zap.Duration("duration", duration),
	)
	return id, nil
}

func (s *DiskStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return data, nil
}

func (s *DiskStore) Meta(ctx context.Context, id string) (domain.RecordingMeta, error) {
	if err := validateID(id); err != nil {
		return domain.RecordingMeta{}, err
	}
	info, err := os.Stat(filepath.Join(s.dir, id))
	if os.IsNotExist(err) {
		return domain.RecordingMeta{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.RecordingMeta{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	createdAt, durationSeconds, err := parseRecordingID(id)
	if err != nil {
		return domain.RecordingMeta{}, err
	}
	return domain.RecordingMeta{
		ID:              id,
		CreatedAt:       createdAt,
		DurationSeconds: durationSeconds,
		SizeBytes:       info.Size(),
	}, nil
}

// Delete removes the artifact. Deleting an id that is already gone reports
// ErrNotFound rather than failing hard, so delete is idempotent towards
// absence.
func (s *DiskStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, id))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	s.log.Info("recording deleted", zap.String("id", id))
	return nil
}

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/miradorstack/helpdesk/internal/models"
	"github.com/miradorstack/helpdesk/internal/utils"
)

const lockRetryDelay = 10 * time.Millisecond

// JSONLog keeps every record in a single pretty-printed JSON array. Each
// Append rewrites the whole array through writeAtomic, so readers never see
// a truncated document. The read-modify-write runs under mu for callers in
// this process and under an advisory lock on <path>.lock for other processes
// sharing the file.
type JSONLog struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewJSONLog returns a log stored at path. The file and its parent directory
// are created on first append.
func NewJSONLog(path string) *JSONLog {
	return &JSONLog{path: path, lock: flock.New(path + ".lock")}
}

// Location returns the log file path.
func (l *JSONLog) Location() string { return l.path }

// Append validates rec and adds it to the end of the array.
func (l *JSONLog) Append(ctx context.Context, rec models.IncidentRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return utils.NewIOFailure("append", l.path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	unlock, err := l.lockFile(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	records, err := l.load()
	if err != nil {
		return err
	}
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return utils.NewIOFailure("encode", l.path, err)
	}
	data = append(data, '\n')

	return writeAtomic(l.path, data, false)
}

// ReadAll returns the records in append order. A missing file is an empty log.
func (l *JSONLog) ReadAll(ctx context.Context) ([]models.IncidentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// lockFile takes the cross-process lock, waiting until ctx is done.
func (l *JSONLog) lockFile(ctx context.Context) (func(), error) {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, utils.NewIOFailure("mkdir", dir, err)
	}
	locked, err := l.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, utils.NewIOFailure("lock", l.lock.Path(), err)
	}
	if !locked {
		return nil, utils.NewIOFailure("lock", l.lock.Path(), errors.New("lock not acquired"))
	}
	return func() { _ = l.lock.Unlock() }, nil
}

// load must be called with mu held. A file that does not decode is reported
// rather than overwritten.
func (l *JSONLog) load() ([]models.IncidentRecord, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.IncidentRecord{}, nil
	}
	if err != nil {
		return nil, utils.NewIOFailure("read", l.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.IncidentRecord{}, nil
	}

	var records []models.IncidentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, utils.NewIOFailure("decode", l.path, err)
	}
	if records == nil {
		records = []models.IncidentRecord{}
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, utils.NewIOFailure("decode", l.path, fmt.Errorf("record %d: %w", i, err))
		}
	}
	return records, nil
}

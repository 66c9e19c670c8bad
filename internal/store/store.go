// Package store persists incident records on the local disk. Every write goes
// through a temp file in the destination directory followed by fsync and an
// atomic rename, so a crash leaves either the previous state or the new one.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/miradorstack/helpdesk/internal/models"
	"github.com/miradorstack/helpdesk/internal/utils"
)

// Layouts understood by New.
const (
	ModeArray     = "array"
	ModeDirectory = "directory"
)

// Appender is the durable incident log.
type Appender interface {
	Append(ctx context.Context, rec models.IncidentRecord) error
	ReadAll(ctx context.Context) ([]models.IncidentRecord, error)
	Location() string
}

// New opens the store for the configured layout. Nothing touches the disk
// until the first Append.
func New(mode, path, dir string) (Appender, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeArray:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("store: array mode requires a file path")
		}
		return NewJSONLog(path), nil
	case ModeDirectory:
		if strings.TrimSpace(dir) == "" {
			return nil, fmt.Errorf("store: directory mode requires a directory")
		}
		return NewTicketDir(dir), nil
	default:
		return nil, fmt.Errorf("store: unknown mode %q", mode)
	}
}

func validate(rec models.IncidentRecord) error {
	if err := rec.Validate(); err != nil {
		return utils.NewValidationError("record", err.Error())
	}
	return nil
}

// writeAtomic stores data at target. With noClobber set an existing target is
// left untouched and the call fails with an error wrapping os.ErrExist.
func writeAtomic(target string, data []byte, noClobber bool) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return utils.NewIOFailure("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return utils.NewIOFailure("create", dir, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return utils.NewIOFailure("write", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return utils.NewIOFailure("fsync", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return utils.NewIOFailure("close", tmpPath, err)
	}

	if noClobber {
		// link(2) refuses to replace an existing name.
		if err := os.Link(tmpPath, target); err != nil {
			return utils.NewIOFailure("link", target, err)
		}
	} else if err := os.Rename(tmpPath, target); err != nil {
		return utils.NewIOFailure("rename", target, err)
	} else {
		committed = true
	}

	return syncDir(dir)
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return utils.NewIOFailure("open", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return utils.NewIOFailure("fsync", dir, err)
	}
	return nil
}

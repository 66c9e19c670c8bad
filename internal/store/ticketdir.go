package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/miradorstack/helpdesk/internal/models"
	"github.com/miradorstack/helpdesk/internal/utils"
)

const (
	ticketPrefix = "ticket_"
	ticketSuffix = ".json"
)

// TicketDir writes one JSON document per record, named after its record ID.
// Ticket files are never replaced once written.
type TicketDir struct {
	dir string
}

// NewTicketDir returns a store rooted at dir.
func NewTicketDir(dir string) *TicketDir {
	return &TicketDir{dir: dir}
}

// Location returns the ticket directory.
func (t *TicketDir) Location() string { return t.dir }

// TicketPath returns the file that holds the record with the given ID.
func (t *TicketDir) TicketPath(recordID string) string {
	return filepath.Join(t.dir, ticketPrefix+recordID+ticketSuffix)
}

// Append writes rec to its own ticket file. A second record with the same ID
// fails with an error wrapping fs.ErrExist.
func (t *TicketDir) Append(ctx context.Context, rec models.IncidentRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	if strings.ContainsAny(rec.RecordID, `/\`) {
		return utils.NewValidationError("record_id", "must not contain path separators")
	}
	target := t.TicketPath(rec.RecordID)
	if err := ctx.Err(); err != nil {
		return utils.NewIOFailure("append", target, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return utils.NewIOFailure("encode", target, err)
	}
	data = append(data, '\n')

	return writeAtomic(target, data, true)
}

// ReadAll loads every ticket ordered by timestamp, then record ID.
func (t *TicketDir) ReadAll(ctx context.Context) ([]models.IncidentRecord, error) {
	entries, err := os.ReadDir(t.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.IncidentRecord{}, nil
	}
	if err != nil {
		return nil, utils.NewIOFailure("readdir", t.dir, err)
	}

	records := make([]models.IncidentRecord, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ticketPrefix) || !strings.HasSuffix(name, ticketSuffix) {
			continue
		}
		path := filepath.Join(t.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, utils.NewIOFailure("read", path, err)
		}
		var rec models.IncidentRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, utils.NewIOFailure("decode", path, err)
		}
		if err := rec.Validate(); err != nil {
			return nil, utils.NewIOFailure("decode", path, err)
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].RecordID < records[j].RecordID
	})
	return records, nil
}

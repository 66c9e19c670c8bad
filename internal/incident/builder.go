// Package incident assembles incident records from a question, its answer,
// host context and the inferred classification.
package incident

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/miradorstack/helpdesk/internal/models"
	"github.com/miradorstack/helpdesk/internal/utils"
)

const idTimeLayout = "20060102T150405Z"

// Builder assembles IncidentRecords. It owns the process-wide ID sequence, so
// create one per process and share it between goroutines.
type Builder struct {
	node *snowflake.Node
	now  func() time.Time
}

// NewBuilder creates a Builder whose IDs carry nodeID (0-1023), letting
// several helpdesk processes share one store without collisions.
func NewBuilder(nodeID int64) (*Builder, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("record id node: %w", err)
	}
	return &Builder{node: node, now: time.Now}, nil
}

// NextID returns a record ID made of the UTC timestamp and a sequence value
// that is strictly increasing within this Builder.
func (b *Builder) NextID(ts time.Time) string {
	return ts.UTC().Format(idTimeLayout) + "-" + b.node.Generate().String()
}

// Build assembles a record. It performs no I/O. A blank question, a blank
// answer or an out-of-range classification is a caller bug and yields a
// *utils.ValidationError.
func (b *Builder) Build(ctx models.SystemContext, question, answer string, cls models.Classification) (models.IncidentRecord, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.IncidentRecord{}, utils.NewValidationError("question", "must not be empty")
	}
	if strings.TrimSpace(answer) == "" {
		return models.IncidentRecord{}, utils.NewValidationError("answer", "must not be empty")
	}
	if !cls.Severity.Valid() {
		return models.IncidentRecord{}, utils.NewValidationError("severity", fmt.Sprintf("%q is not a known severity", cls.Severity))
	}
	if !cls.Department.Valid() {
		return models.IncidentRecord{}, utils.NewValidationError("department", fmt.Sprintf("%q is not a known department", cls.Department))
	}

	ts := ctx.Timestamp
	if ts.IsZero() {
		ts = b.now()
	}
	ts = ts.UTC()

	return models.IncidentRecord{
		RecordID:   b.NextID(ts),
		Timestamp:  ts,
		Username:   orUnknown(ctx.Username),
		Hostname:   orUnknown(ctx.Hostname),
		IPAddress:  orUnknown(ctx.IPAddress),
		Question:   question,
		Answer:     answer,
		Severity:   cls.Severity,
		Department: cls.Department,
	}, nil
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return models.Unknown
	}
	return v
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/helpdesk/internal/backend"
	"github.com/miradorstack/helpdesk/internal/classifier"
	"github.com/miradorstack/helpdesk/internal/incident"
	"github.com/miradorstack/helpdesk/internal/models"
	"github.com/miradorstack/helpdesk/internal/store"
	"github.com/miradorstack/helpdesk/internal/utils"
)

type fakeCollector struct {
	ctx  models.SystemContext
	hook func()
}

func (f *fakeCollector) Collect() models.SystemContext {
	if f.hook != nil {
		f.hook()
	}
	return f.ctx
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type memStore struct {
	mu      sync.Mutex
	records []models.IncidentRecord
	err     error
}

func (m *memStore) Append(ctx context.Context, rec models.IncidentRecord) error {
	if err := ctx.Err(); err != nil {
		return utils.NewIOFailure("append", "mem", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) ReadAll(context.Context) ([]models.IncidentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.IncidentRecord(nil), m.records...), nil
}

func (m *memStore) Location() string { return "mem://incidents" }

var hostContext = models.SystemContext{
	Username:  "alice",
	Hostname:  "ws-042",
	IPAddress: "10.1.2.3",
	Timestamp: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
}

func newTestPipeline(t *testing.T, collector ContextCollector, completer backend.Completer, st store.Appender, timeout time.Duration) *Pipeline {
	t.Helper()
	cls, err := classifier.New(classifier.DefaultRules())
	require.NoError(t, err)
	builder, err := incident.NewBuilder(3)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(logger, collector, completer, cls, builder, st, Options{BackendTimeout: timeout})
}

func TestHandleLogsAnsweredQuestion(t *testing.T) {
	st := &memStore{}
	var gotPrompt string
	completer := completerFunc(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "Hold the power button for ten seconds. Did that help?", nil
	})
	p := newTestPipeline(t, &fakeCollector{ctx: hostContext}, completer, st, time.Second)

	res, err := p.Handle(context.Background(), "  My laptop won't turn on  ")
	require.NoError(t, err)
	assert.NoError(t, res.BackendErr)
	assert.Equal(t, "mem://incidents", res.Location)
	assert.Contains(t, gotPrompt, "User: My laptop won't turn on\nAssistant:")

	rec := res.Record
	assert.Equal(t, "My laptop won't turn on", rec.Question)
	assert.Equal(t, "Hold the power button for ten seconds. Did that help?", rec.Answer)
	assert.Equal(t, models.SeverityLow, rec.Severity)
	assert.Equal(t, models.DepartmentHardware, rec.Department)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, hostContext.Timestamp, rec.Timestamp)

	stored, err := p.History(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rec, stored[0])
}

func TestHandleBackendFailureStillPersists(t *testing.T) {
	st := &memStore{}
	completer := completerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("model crashed")
	})
	p := newTestPipeline(t, &fakeCollector{ctx: hostContext}, completer, st, time.Second)

	res, err := p.Handle(context.Background(), "The whole office network is down")
	require.NoError(t, err)

	var bf *utils.BackendFailure
	require.True(t, errors.As(res.BackendErr, &bf))
	assert.Equal(t, backend.ReasonError, bf.Reason)
	assert.Equal(t, backend.AnswerError, res.Record.Answer)
	assert.Equal(t, models.SeverityCritical, res.Record.Severity)
	assert.Equal(t, models.DepartmentNetwork, res.Record.Department)
	assert.Len(t, st.records, 1)
}

func TestHandleBackendTimeout(t *testing.T) {
	st := &memStore{}
	completer := completerFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := newTestPipeline(t, &fakeCollector{ctx: hostContext}, completer, st, 20*time.Millisecond)

	res, err := p.Handle(context.Background(), "printer jammed")
	require.NoError(t, err)
	assert.Equal(t, backend.AnswerTimeout, res.Record.Answer)
	assert.Len(t, st.records, 1)
}

func TestHandleMissingBackend(t *testing.T) {
	st := &memStore{}
	p := newTestPipeline(t, &fakeCollector{ctx: hostContext}, nil, st, time.Second)

	res, err := p.Handle(context.Background(), "forgot my password")
	require.NoError(t, err)
	assert.Equal(t, backend.AnswerNotInstalled, res.Record.Answer)
	assert.Equal(t, models.DepartmentAccount, res.Record.Department)
}

func TestHandleRejectsBlankQuestion(t *testing.T) {
	st := &memStore{}
	called := false
	completer := completerFunc(func(context.Context, string) (string, error) {
		called = true
		return "x", nil
	})
	p := newTestPipeline(t, &fakeCollector{ctx: hostContext}, completer, st, time.Second)

	_, err := p.Handle(context.Background(), " \n\t ")
	var vErr *utils.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.False(t, called, "backend must not be consulted for blank input")
	assert.Empty(t, st.records)
}

func TestHandleSurfacesStoreFailure(t *testing.T) {
	st := &memStore{err: utils.NewIOFailure("rename", "/ro/incidents.json", errors.New("read-only file system"))}
	completer := completerFunc(func(context.Context, string) (string, error) { return "Reboot.", nil })
	p := newTestPipeline(t, &fakeCollector{ctx: hostContext}, completer, st, time.Second)

	res, err := p.Handle(context.Background(), "wifi keeps dropping")
	var ioErr *utils.IOFailure
	require.True(t, errors.As(err, &ioErr), "expected IOFailure, got %v", err)
	assert.Equal(t, "wifi keeps dropping", res.Record.Question, "the unsaved record is returned to the caller")
}

func TestHandlePersistsAfterCallerCancels(t *testing.T) {
	st := &memStore{}
	ctx, cancel := context.WithCancel(context.Background())
	completer := completerFunc(func(context.Context, string) (string, error) {
		cancel()
		return "Try again later.", nil
	})
	p := newTestPipeline(t, &fakeCollector{ctx: hostContext}, completer, st, time.Second)

	_, err := p.Handle(ctx, "outlook keeps crashing")
	require.NoError(t, err)
	assert.Len(t, st.records, 1)
}

func TestHandleRunsCollectorAndBackendConcurrently(t *testing.T) {
	collectorStarted := make(chan struct{})
	backendStarted := make(chan struct{})

	collector := &fakeCollector{ctx: hostContext, hook: func() {
		close(collectorStarted)
		select {
		case <-backendStarted:
		case <-time.After(2 * time.Second):
			t.Error("backend did not start while collector was running")
		}
	}}
	completer := completerFunc(func(context.Context, string) (string, error) {
		close(backendStarted)
		select {
		case <-collectorStarted:
		case <-time.After(2 * time.Second):
			t.Error("collector did not start while backend was running")
		}
		return "ok", nil
	})

	p := newTestPipeline(t, collector, completer, &memStore{}, 5*time.Second)
	_, err := p.Handle(context.Background(), "vpn slow")
	require.NoError(t, err)
}

func TestHandleConcurrentQueriesProduceUniqueRecords(t *testing.T) {
	st := &memStore{}
	completer := completerFunc(func(context.Context, string) (string, error) { return "ok", nil })
	p := newTestPipeline(t, &fakeCollector{ctx: hostContext}, completer, st, time.Second)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Handle(context.Background(), "keyboard not working"); err != nil {
				t.Errorf("handle: %v", err)
			}
		}()
	}
	wg.Wait()

	ids := make(map[string]struct{}, n)
	for _, rec := range st.records {
		ids[rec.RecordID] = struct{}{}
	}
	assert.Len(t, ids, n)
}

func TestHandleReportsTicketFile(t *testing.T) {
	tickets := store.NewTicketDir(filepath.Join(t.TempDir(), "Tickets", "Unprocessed"))
	completer := completerFunc(func(context.Context, string) (string, error) { return "Reseat the cable.", nil })
	p := newTestPipeline(t, &fakeCollector{ctx: hostContext}, completer, tickets, time.Second)

	res, err := p.Handle(context.Background(), "monitor flickers")
	require.NoError(t, err)
	assert.Equal(t, tickets.TicketPath(res.Record.RecordID), res.Location)
	assert.FileExists(t, res.Location)
}

package wait

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rendis/actionwait/internal/artifact"
	"github.com/rendis/actionwait/pkg/schema"
)

// --- Mock RecordStore ---

type mockStore struct {
	mu      sync.Mutex
	records map[string]schema.WaitRecord
	gets    int
	puts    int

	getErr error
	putErr error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]schema.WaitRecord)}
}

func (m *mockStore) Get(_ context.Context, key string) (*schema.WaitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[key]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "wait_record %q not found", key)
	}
	return &rec, nil
}

func (m *mockStore) Put(_ context.Context, key string, rec *schema.WaitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.records[key] = *rec
	return nil
}

func (m *mockStore) accesses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets + m.puts
}

// nilStore returns (nil, nil) for missing keys instead of NOT_FOUND.
type nilStore struct{ *mockStore }

func (n nilStore) Get(context.Context, string) (*schema.WaitRecord, error) { return nil, nil }

// --- Mock SuspendControl ---

type mockEngine struct {
	mu         sync.Mutex
	minted     int
	suspended  []schema.SuspendInstruction
	suspendErr error
}

func (e *mockEngine) MintCorrelationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.minted++
	return fmt.Sprintf("corr-%d", e.minted)
}

func (e *mockEngine) Suspend(_ context.Context, ins schema.SuspendInstruction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.suspendErr != nil {
		return e.suspendErr
	}
	e.suspended = append(e.suspended, ins)
	return nil
}

func (e *mockEngine) last() schema.SuspendInstruction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suspended[len(e.suspended)-1]
}

// --- Fixtures ---

var errBoom = errors.New("boom")

func button(label string) map[string]any {
	return map[string]any{"type": "button", "text": map[string]any{"type": "plain_text", "text": label}}
}

func approvalBlocks() []schema.Block {
	return []schema.Block{
		{"type": "section", "text": map[string]any{"type": "mrkdwn", "text": "Deploy *api*?"}},
		{"type": "actions", "elements": []any{button("Approve"), button("Dismiss")}},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func statusLine(body []schema.Block) string {
	if len(body) == 0 {
		return ""
	}
	text, _ := body[len(body)-1]["text"].(map[string]any)
	s, _ := text["text"].(string)
	return s
}

type fixture struct {
	store    *mockStore
	engine   *mockEngine
	artifact *artifact.MemoryHandle
}

func newFixture() *fixture {
	return &fixture{
		store:    newMockStore(),
		engine:   &mockEngine{},
		artifact: artifact.NewMemoryHandle(approvalBlocks()),
	}
}

func (f *fixture) coordinator() *Coordinator {
	return NewCoordinator(f.store, f.engine, quietLogger())
}

func (f *fixture) correlator() *Correlator {
	return NewCorrelator(f.store, f.engine, f.artifact, quietLogger())
}

func strPtr(s string) *string { return &s }

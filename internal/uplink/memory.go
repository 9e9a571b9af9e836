package uplink

import (
	"sync"

	"github.com/taptrack/taptrack/internal/record"
)

// MemoryClient is an in-memory Client for tests and the simulation CLI.
//
// Sends are accepted immediately (unless the client is configured to
// refuse) and confirmed after a configurable number of Service calls,
// which models transmission latency under the cooperative polling
// contract.
type MemoryClient struct {
	mu sync.Mutex

	ready        bool
	refuseSends  bool
	confirmAfter int // Service calls before a send is confirmed

	gen CorrelationIDGenerator

	// pending maps correlation id -> remaining Service calls.
	pending map[string]int
	// confirmed holds ids whose delivery completed but was not yet polled.
	confirmed map[string]bool

	sent         []record.AttendanceRecord
	pendingUsers []string // identifiers reported to the registration channel
}

// NewMemoryClient creates a ready client that confirms each send after one
// Service call. A nil generator defaults to UUIDv7.
func NewMemoryClient(gen CorrelationIDGenerator) *MemoryClient {
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	return &MemoryClient{
		ready:        true,
		confirmAfter: 1,
		gen:          gen,
		pending:      make(map[string]int),
		confirmed:    make(map[string]bool),
	}
}

// SetReady controls IsReady.
func (m *MemoryClient) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

// SetRefuseSends makes Send fail immediately (returns empty id) while
// leaving IsReady untouched. Models a transport that accepts connections
// but rejects writes.
func (m *MemoryClient) SetRefuseSends(refuse bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refuseSends = refuse
}

// SetConfirmAfter sets how many Service calls a send needs before its
// confirmation becomes observable. Negative means never confirm.
func (m *MemoryClient) SetConfirmAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmAfter = n
}

// IsReady implements Client.
func (m *MemoryClient) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Service implements Client: each call moves every pending send one step
// closer to confirmation.
func (m *MemoryClient) Service() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, remaining := range m.pending {
		if remaining < 0 {
			continue // never confirms
		}
		remaining--
		if remaining <= 0 {
			delete(m.pending, id)
			m.confirmed[id] = true
		} else {
			m.pending[id] = remaining
		}
	}
}

// Send implements Client.
func (m *MemoryClient) Send(rec record.AttendanceRecord) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready || m.refuseSends {
		return ""
	}
	id := m.gen.Generate()
	m.pending[id] = m.confirmAfter
	m.sent = append(m.sent, rec)
	return id
}

// IsConfirmed implements Client. Consuming: a confirmation is observable
// exactly once.
func (m *MemoryClient) IsConfirmed(correlationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmed[correlationID] {
		delete(m.confirmed, correlationID)
		return true
	}
	return false
}

// SendPendingRegistration implements Client.
func (m *MemoryClient) SendPendingRegistration(identifier, timestamp string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return
	}
	m.pendingUsers = append(m.pendingUsers, identifier)
}

// Sent returns every record accepted for transmission, in order.
func (m *MemoryClient) Sent() []record.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.AttendanceRecord, len(m.sent))
	copy(out, m.sent)
	return out
}

// PendingRegistrations returns identifiers reported to the registration
// channel, in order.
func (m *MemoryClient) PendingRegistrations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.pendingUsers))
	copy(out, m.pendingUsers)
	return out
}

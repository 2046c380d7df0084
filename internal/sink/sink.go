package sink

import "sync"

// Sink accepts rows for named live tables. Append is fire-and-forget and
// must be safe to call from the event-receipt path without blocking it.
type Sink interface {
	Append(row Row)
}

// MemorySink keeps rows in per-table growable buffers. It backs tests and
// embedders that consume tables in-process.
type MemorySink struct {
	mu     sync.RWMutex
	tables map[string]*Buffer[Row]

	initialCapacity int
}

// NewMemorySink creates a MemorySink whose per-table buffers start at the
// given capacity.
func NewMemorySink(initialCapacity int) *MemorySink {
	if initialCapacity < 1 {
		initialCapacity = 64
	}
	return &MemorySink{
		tables:          make(map[string]*Buffer[Row]),
		initialCapacity: initialCapacity,
	}
}

// Append adds the row to its table's buffer.
func (s *MemorySink) Append(row Row) {
	s.table(row.Table()).Push(row)
}

// Table returns the buffer for a table, creating it if needed.
func (s *MemorySink) Table(name string) *Buffer[Row] {
	return s.table(name)
}

// Rows drains and returns all rows currently buffered for a table.
func (s *MemorySink) Rows(name string) []Row {
	return s.table(name).Drain(0)
}

// Len returns the number of buffered rows for a table.
func (s *MemorySink) Len(name string) int {
	return s.table(name).Len()
}

// Close closes every table buffer.
func (s *MemorySink) Close() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.tables {
		b.Close()
	}
}

func (s *MemorySink) table(name string) *Buffer[Row] {
	s.mu.RLock()
	b, ok := s.tables[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.tables[name]; ok {
		return b
	}
	b = NewBuffer[Row](s.initialCapacity)
	s.tables[name] = b
	return b
}

package storage

import (
	"sort"
	"sync"
)

// memorySet 进程内兜底集合：userId -> 会话数
type memorySet struct {
	mu   sync.Mutex
	refs map[string]int64
}

func newMemorySet() *memorySet {
	return &memorySet{refs: make(map[string]int64)}
}

func (m *memorySet) add(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[userID]++
	return m.refs[userID]
}

func (m *memorySet) remove(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.refs[userID]
	if !ok {
		return 0
	}
	if n <= 1 {
		delete(m.refs, userID)
		return 0
	}
	m.refs[userID] = n - 1
	return n - 1
}

func (m *memorySet) members() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.refs))
	for id := range m.refs {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

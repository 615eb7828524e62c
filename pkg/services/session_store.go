package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore はリクエスト間で保持する画面状態（エディタや一覧）を管理します。
// アイドル状態が ttl を超えたエントリと、上限を超えた古いエントリは破棄されます。
type SessionStore[T any] struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry[T]
	ttl     time.Duration
	limit   int
	now     func() time.Time
}

type sessionEntry[T any] struct {
	value    T
	lastSeen time.Time
}

// NewSessionStore は新しいSessionStoreを生成します。
func NewSessionStore[T any](ttl time.Duration, limit int) *SessionStore[T] {
	return &SessionStore[T]{
		entries: make(map[string]*sessionEntry[T]),
		ttl:     ttl,
		limit:   limit,
		now:     time.Now,
	}
}

// Put は値を保存し、新しいセッションIDを返します。
func (s *SessionStore[T]) Put(value T) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune()
	id := uuid.NewString()
	s.entries[id] = &sessionEntry[T]{value: value, lastSeen: s.now()}
	return id
}

// Get はセッションの値を返し、最終アクセス時刻を更新します。
func (s *SessionStore[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok || s.expired(entry) {
		delete(s.entries, id)
		var zero T
		return zero, false
	}
	entry.lastSeen = s.now()
	return entry.value, true
}

// Delete はセッションを破棄します。
func (s *SessionStore[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len は保持しているセッション数を返します。
func (s *SessionStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *SessionStore[T]) expired(entry *sessionEntry[T]) bool {
	return s.ttl > 0 && s.now().Sub(entry.lastSeen) > s.ttl
}

// prune は期限切れのエントリを削除し、上限を超える場合は最も古いものを削除します。
func (s *SessionStore[T]) prune() {
	for id, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, id)
		}
	}
	for s.limit > 0 && len(s.entries) >= s.limit {
		var oldestID string
		var oldest time.Time
		for id, entry := range s.entries {
			if oldestID == "" || entry.lastSeen.Before(oldest) {
				oldestID, oldest = id, entry.lastSeen
			}
		}
		delete(s.entries, oldestID)
	}
}

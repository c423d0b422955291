package postledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation.
// Its contents live as long as the process; use internal/archive to carry
// them across restarts.
type MemoryLedger struct {
	notifier

	mu    sync.RWMutex
	posts []Post
}

// NewMemoryLedger creates an empty MemoryLedger. The first post gets id 0.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// CreatePost implements Ledger. It never fails.
func (l *MemoryLedger) CreatePost(_ context.Context, call Call, title, contentRef string) (uint64, error) {
	p, err := l.emit(func() (Post, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		prevHash := GenesisHash
		if n := len(l.posts); n > 0 {
			prevHash = l.posts[n-1].Hash
		}
		p := newPost(uint64(len(l.posts)), call, title, contentRef, prevHash)
		l.posts = append(l.posts, p)
		return p, nil
	})
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// GetPost implements Ledger.
func (l *MemoryLedger) GetPost(_ context.Context, id uint64) (*Post, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id >= uint64(len(l.posts)) {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	p := l.posts[id]
	return &p, nil
}

// GetAllPosts implements Ledger.
func (l *MemoryLedger) GetAllPosts(_ context.Context) ([]Post, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.posts) == 0 {
		return []Post{}, nil
	}
	return slices.Clone(l.posts), nil
}

// GetPostCount implements Ledger.
func (l *MemoryLedger) GetPostCount(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.posts)), nil
}

// Verify implements Ledger.
func (l *MemoryLedger) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verifyChain(l.posts)
}

// Root implements Ledger.
func (l *MemoryLedger) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.posts) == 0 {
		return GenesisHash, nil
	}
	return l.posts[len(l.posts)-1].Hash, nil
}

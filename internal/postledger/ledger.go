package postledger

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetPost when the id has not been assigned yet.
var ErrNotFound = errors.New("post not found")

// Ledger is the append-only post store. MemoryLedger, PostgresLedger and
// SQLiteLedger implement this interface.
type Ledger interface {
	// CreatePost appends a post authored by call.Caller at call.Timestamp and
	// returns its id. Listeners observe the matching PostCreated before
	// CreatePost returns. On error nothing is appended and nothing is emitted.
	CreatePost(ctx context.Context, call Call, title, contentRef string) (uint64, error)

	// GetPost returns the post with the given id, or ErrNotFound.
	GetPost(ctx context.Context, id uint64) (*Post, error)

	// GetAllPosts returns every post in id order. The slice is a copy.
	GetAllPosts(ctx context.Context) ([]Post, error)

	// GetPostCount returns the number of posts created so far.
	GetPostCount(ctx context.Context) (uint64, error)

	// Verify walks the hash chain and returns nil if it is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the newest post, or GenesisHash when empty.
	Root(ctx context.Context) (string, error)

	// Subscribe registers l for PostCreated notifications until cancel is called.
	Subscribe(l Listener) (cancel func())
}

var (
	_ Ledger = (*MemoryLedger)(nil)
	_ Ledger = (*PostgresLedger)(nil)
	_ Ledger = (*SQLiteLedger)(nil)
)

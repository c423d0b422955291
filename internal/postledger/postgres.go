package postledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey serialises CreatePost across every ledgerd instance that
// shares the database. The value is arbitrary but must never change.
const advisoryLockKey = int64(1_402_771_935)

const selectPostColumns = `SELECT id, title, content_ref, author, created_at, prev_hash, hash FROM posts`

// PostgresLedger persists posts to a PostgreSQL database.
// It implements the Ledger interface.
type PostgresLedger struct {
	notifier

	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLedger creates a PostgresLedger backed by the given connection pool.
// The posts table must already exist (see cmd/migrate).
func NewPostgresLedger(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, logger: logger}
}

// CreatePost implements Ledger.
// It takes a transaction-scoped advisory lock, reads the chain tail, and
// inserts the new post inside one transaction. Listeners are only notified
// after the commit succeeds.
func (l *PostgresLedger) CreatePost(ctx context.Context, call Call, title, contentRef string) (uint64, error) {
	p, err := l.emit(func() (Post, error) {
		return l.insert(ctx, call, title, contentRef)
	})
	if err != nil {
		return 0, err
	}

	l.logger.Debug("post appended",
		zap.Uint64("id", p.ID),
		zap.String("author", string(p.Author)),
	)
	return p.ID, nil
}

func (l *PostgresLedger) insert(ctx context.Context, call Call, title, contentRef string) (Post, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return Post{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return Post{}, fmt.Errorf("acquire advisory lock: %w", err)
	}

	nextID := uint64(0)
	prevHash := GenesisHash
	var tailID int64
	var tailHash string
	err = tx.QueryRow(ctx, "SELECT id, hash FROM posts ORDER BY id DESC LIMIT 1").Scan(&tailID, &tailHash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return Post{}, fmt.Errorf("read ledger tail: %w", err)
	default:
		nextID = uint64(tailID) + 1
		prevHash = tailHash
	}

	p := newPost(nextID, call, title, contentRef, prevHash)
	if _, err := tx.Exec(ctx,
		`INSERT INTO posts (id, title, content_ref, author, created_at, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		int64(p.ID), p.Title, p.ContentRef, string(p.Author), p.CreatedAt, p.PrevHash, p.Hash,
	); err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Post{}, fmt.Errorf("commit post tx: %w", err)
	}
	return p, nil
}

// GetPost implements Ledger.
func (l *PostgresLedger) GetPost(ctx context.Context, id uint64) (*Post, error) {
	if id > maxStoredID {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	p, err := scanPost(l.pool.QueryRow(ctx, selectPostColumns+" WHERE id = $1", int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

// GetAllPosts implements Ledger.
func (l *PostgresLedger) GetAllPosts(ctx context.Context) ([]Post, error) {
	rows, err := l.pool.Query(ctx, selectPostColumns+" ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// GetPostCount implements Ledger.
func (l *PostgresLedger) GetPostCount(ctx context.Context) (uint64, error) {
	var n int64
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return uint64(n), nil
}

// Verify implements Ledger. O(n) in ledger length.
func (l *PostgresLedger) Verify(ctx context.Context) error {
	posts, err := l.GetAllPosts(ctx)
	if err != nil {
		return err
	}
	return verifyChain(posts)
}

// Root implements Ledger.
func (l *PostgresLedger) Root(ctx context.Context) (string, error) {
	var hash string
	err := l.pool.QueryRow(ctx, "SELECT hash FROM posts ORDER BY id DESC LIMIT 1").Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("get ledger root: %w", err)
	}
	return hash, nil
}

// rowScanner is satisfied by pgx.Row, pgx.Rows and *sql.Row(s).
type rowScanner interface {
	Scan(dest ...any) error
}

// maxStoredID is the largest id a BIGINT column can hold.
const maxStoredID = uint64(1<<63 - 1)

func scanPost(row rowScanner) (*Post, error) {
	var (
		p      Post
		id     int64
		author string
	)
	if err := row.Scan(&id, &p.Title, &p.ContentRef, &author, &p.CreatedAt, &p.PrevHash, &p.Hash); err != nil {
		return nil, err
	}
	p.ID = uint64(id)
	p.Author = Address(author)
	return &p, nil
}

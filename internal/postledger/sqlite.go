package postledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id          INTEGER PRIMARY KEY,
	title       TEXT    NOT NULL,
	content_ref TEXT    NOT NULL,
	author      TEXT    NOT NULL,
	created_at  INTEGER NOT NULL,
	prev_hash   TEXT    NOT NULL,
	hash        TEXT    NOT NULL
);`

// SQLiteLedger persists posts to an embedded SQLite database file.
// Only one process may write to a given file.
type SQLiteLedger struct {
	notifier

	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLiteLedger opens (creating if needed) the database at path and
// ensures the posts table exists.
func OpenSQLiteLedger(path string, logger *zap.Logger) (*SQLiteLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &SQLiteLedger{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// CreatePost implements Ledger.
func (l *SQLiteLedger) CreatePost(ctx context.Context, call Call, title, contentRef string) (uint64, error) {
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

func (l *SQLiteLedger) insert(ctx context.Context, call Call, title, contentRef string) (Post, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Post{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	nextID := uint64(0)
	prevHash := GenesisHash
	var tailID int64
	var tailHash string
	err = tx.QueryRowContext(ctx, "SELECT id, hash FROM posts ORDER BY id DESC LIMIT 1").Scan(&tailID, &tailHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Post{}, fmt.Errorf("read ledger tail: %w", err)
	default:
		nextID = uint64(tailID) + 1
		prevHash = tailHash
	}

	p := newPost(nextID, call, title, contentRef, prevHash)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO posts (id, title, content_ref, author, created_at, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(p.ID), p.Title, p.ContentRef, string(p.Author), p.CreatedAt, p.PrevHash, p.Hash,
	); err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Post{}, fmt.Errorf("commit post tx: %w", err)
	}
	return p, nil
}

// GetPost implements Ledger.
func (l *SQLiteLedger) GetPost(ctx context.Context, id uint64) (*Post, error) {
	if id > maxStoredID {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	p, err := scanPost(l.db.QueryRowContext(ctx, selectPostColumns+" WHERE id = ?", int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

// GetAllPosts implements Ledger.
func (l *SQLiteLedger) GetAllPosts(ctx context.Context) ([]Post, error) {
	rows, err := l.db.QueryContext(ctx, selectPostColumns+" ORDER BY id ASC")
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
func (l *SQLiteLedger) GetPostCount(ctx context.Context) (uint64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return uint64(n), nil
}

// Verify implements Ledger.
func (l *SQLiteLedger) Verify(ctx context.Context) error {
	posts, err := l.GetAllPosts(ctx)
	if err != nil {
		return err
	}
	return verifyChain(posts)
}

// Root implements Ledger.
func (l *SQLiteLedger) Root(ctx context.Context) (string, error) {
	var hash string
	err := l.db.QueryRowContext(ctx, "SELECT hash FROM posts ORDER BY id DESC LIMIT 1").Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("get ledger root: %w", err)
	}
	return hash, nil
}

// Package archive reads and writes ledger snapshots as zstd-compressed JSON
// lines, one post per line in id order.
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jmerrifield20/postledger/internal/postledger"
	"github.com/klauspost/compress/zstd"
)

// ErrSequence is returned when an archive does not hold a dense id sequence
// starting at 0, or when replaying it assigns different ids.
var ErrSequence = errors.New("archive out of sequence")

// Write streams posts to w.
func Write(w io.Writer, posts []postledger.Post) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)
	je := json.NewEncoder(bw)
	for i := range posts {
		if err := je.Encode(&posts[i]); err != nil {
			_ = enc.Close()
			return fmt.Errorf("encode post %d: %w", posts[i].ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("flush: %w", err)
	}
	return enc.Close()
}

// Read decodes every post from r and checks the ids are 0..n-1.
func Read(r io.Reader) ([]postledger.Post, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	posts := []postledger.Post{}
	jd := json.NewDecoder(bufio.NewReader(dec))
	for {
		var p postledger.Post
		err := jd.Decode(&p)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode post %d: %w", len(posts), err)
		}
		if p.ID != uint64(len(posts)) {
			return nil, fmt.Errorf("expected post %d, found %d: %w", len(posts), p.ID, ErrSequence)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// Snapshot writes every post of l to path atomically (write to a temp file,
// then rename). It returns the number of posts written.
func Snapshot(ctx context.Context, l postledger.Ledger, path string) (int, error) {
	posts, err := l.GetAllPosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create archive dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := Write(tmp, posts); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename archive: %w", err)
	}
	return len(posts), nil
}

// Restore replays the archive at path into l, which must be empty. Each post
// is re-created with its recorded author and timestamp, so the resulting
// chain hashes match the archived ones. A missing file restores nothing.
func Restore(ctx context.Context, l postledger.Ledger, path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	posts, err := Read(f)
	if err != nil {
		return 0, err
	}
	return Replay(ctx, l, posts)
}

// Replay appends posts to l in order and checks every assigned id and hash.
func Replay(ctx context.Context, l postledger.Ledger, posts []postledger.Post) (int, error) {
	if n, err := l.GetPostCount(ctx); err != nil {
		return 0, err
	} else if n != 0 {
		return 0, fmt.Errorf("replay into non-empty ledger (%d posts)", n)
	}

	for i, p := range posts {
		call := postledger.Call{Caller: p.Author, Timestamp: p.CreatedAt}
		id, err := l.CreatePost(ctx, call, p.Title, p.ContentRef)
		if err != nil {
			return i, fmt.Errorf("replay post %d: %w", p.ID, err)
		}
		if id != p.ID {
			return i, fmt.Errorf("replayed post %d got id %d: %w", p.ID, id, ErrSequence)
		}
		if p.Hash != "" {
			stored, err := l.GetPost(ctx, id)
			if err != nil {
				return i, err
			}
			if stored.Hash != p.Hash {
				return i, fmt.Errorf("post %d hash mismatch after replay: %w", id, ErrSequence)
			}
		}
	}
	return len(posts), nil
}

package postledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenesisHash is the prev_hash of post 0 and the root of an empty ledger.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Address identifies the caller that authored a post. The ledger treats it as
// an opaque, comparable value.
type Address string

// Call is the environment context of a single CreatePost invocation.
type Call struct {
	Caller    Address
	Timestamp int64 // seconds since epoch
}

// Post is a single immutable ledger record.
type Post struct {
	ID         uint64  `json:"id"`
	Title      string  `json:"title"`
	ContentRef string  `json:"content_ref"`
	Author     Address `json:"author"`
	CreatedAt  int64   `json:"created_at"`
	PrevHash   string  `json:"prev_hash"`
	Hash       string  `json:"hash"`
}

// PostCreated is emitted exactly once per successful CreatePost.
type PostCreated struct {
	ID         uint64  `json:"id"`
	Title      string  `json:"title"`
	ContentRef string  `json:"content_ref"`
	Author     Address `json:"author"`
	CreatedAt  int64   `json:"created_at"`
}

// Event returns the creation notification describing p.
func (p Post) Event() PostCreated {
	return PostCreated{
		ID:         p.ID,
		Title:      p.Title,
		ContentRef: p.ContentRef,
		Author:     p.Author,
		CreatedAt:  p.CreatedAt,
	}
}

// newPost builds the post that follows prevHash in the chain.
func newPost(id uint64, call Call, title, contentRef, prevHash string) Post {
	p := Post{
		ID:         id,
		Title:      title,
		ContentRef: contentRef,
		Author:     call.Caller,
		CreatedAt:  call.Timestamp,
		PrevHash:   prevHash,
	}
	p.Hash = hashPost(&p)
	return p
}

// hashPost computes the chain hash over every field except Hash itself.
// Strings are quoted so that separators inside titles cannot collide.
func hashPost(p *Post) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%q|%q|%q|%s",
		p.ID, p.CreatedAt, string(p.Author), p.Title, p.ContentRef, p.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// verifyChain checks that posts form an intact, dense chain starting at id 0.
func verifyChain(posts []Post) error {
	prev := GenesisHash
	for i := range posts {
		if err := verifyLink(&posts[i], uint64(i), prev); err != nil {
			return err
		}
		prev = posts[i].Hash
	}
	return nil
}

func verifyLink(p *Post, wantID uint64, prevHash string) error {
	if p.ID != wantID {
		return fmt.Errorf("id gap: expected post %d, found %d", wantID, p.ID)
	}
	if p.PrevHash != prevHash {
		return fmt.Errorf("hash chain broken at post %d", p.ID)
	}
	if p.Hash != hashPost(p) {
		return fmt.Errorf("post %d has invalid hash", p.ID)
	}
	return nil
}

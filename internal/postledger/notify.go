package postledger

import (
	"cmp"
	"slices"
	"sync"
)

// Listener receives PostCreated notifications.
//
// OnPostCreated runs synchronously inside CreatePost, after the post is
// visible to readers. It may read from the ledger but must not create posts,
// and it should return quickly; slow sinks belong behind a queue.
type Listener interface {
	OnPostCreated(ev PostCreated)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(ev PostCreated)

// OnPostCreated implements Listener.
func (f ListenerFunc) OnPostCreated(ev PostCreated) { f(ev) }

// notifier keeps the listener set and the single writer slot shared by
// every backend.
type notifier struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextKey   int

	emitMu sync.Mutex
}

func (n *notifier) Subscribe(l Listener) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = make(map[int]Listener)
	}
	key := n.nextKey
	n.nextKey++
	n.listeners[key] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, key)
			n.mu.Unlock()
		})
	}
}

// emit serialises writers. appendFn runs while the emission slot is held and
// a successful append is delivered to every listener before the next writer
// may append, so events leave in id order. Readers never wait on the slot.
func (n *notifier) emit(appendFn func() (Post, error)) (Post, error) {
	n.emitMu.Lock()
	defer n.emitMu.Unlock()

	p, err := appendFn()
	if err != nil {
		return Post{}, err
	}

	n.mu.RLock()
	ls := make([]keyedListener, 0, len(n.listeners))
	for k, l := range n.listeners {
		ls = append(ls, keyedListener{key: k, l: l})
	}
	n.mu.RUnlock()

	slices.SortFunc(ls, func(a, b keyedListener) int { return cmp.Compare(a.key, b.key) })
	ev := p.Event()
	for _, kl := range ls {
		kl.l.OnPostCreated(ev)
	}
	return p, nil
}

type keyedListener struct {
	key int
	l   Listener
}

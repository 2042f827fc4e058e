package storage

import (
	"context"
	gopath "path"
	"sort"
	"sync"
	"time"

	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
	"github.com/DenzilGreenwood/studio-sub001/internal/escrow"
)

// MemoryStore is an in-process Store with watch fanout, used by the dev
// server and tests. Batch applies under one lock, so it is atomic with
// respect to every other operation.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]Document
	recovery map[string]escrow.Blob
	watchers map[int]*memWatcher
	nextID   int
}

type memWatcher struct {
	parent string
	ch     chan Change
	done   chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]Document),
		watchers: make(map[int]*memWatcher),
	}
}

func (s *MemoryStore) Put(ctx context.Context, path string, env *envelope.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(path, env)
	return nil
}

func (s *MemoryStore) putLocked(path string, env *envelope.Envelope) {
	now := time.Now()
	doc, ok := s.docs[path]
	if !ok {
		doc = Document{Path: path, CreatedAt: now}
	}
	doc.Envelope = *env
	doc.UpdatedAt = now
	s.docs[path] = doc
	s.notifyLocked(Change{Path: path, Doc: &doc})
}

func (s *MemoryStore) Get(ctx context.Context, path string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(path)
	return nil
}

func (s *MemoryStore) deleteLocked(path string) {
	if _, ok := s.docs[path]; !ok {
		return
	}
	delete(s.docs, path)
	s.notifyLocked(Change{Path: path, Deleted: true})
}

func (s *MemoryStore) Query(ctx context.Context, parent string, q Query) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Document
	for p, doc := range s.docs {
		if gopath.Dir(p) != parent {
			continue
		}
		if !matchFilters(doc, q.Filters) {
			continue
		}
		out = append(out, doc)
	}
	sortDocs(out, q.OrderBy, q.Desc)
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchFilters(doc Document, filters map[string]any) bool {
	for field, want := range filters {
		switch field {
		case "_id", "path":
			if doc.Path != want {
				return false
			}
		case "createdAt":
			if t, ok := want.(time.Time); !ok || !doc.CreatedAt.Equal(t) {
				return false
			}
		case "updatedAt":
			if t, ok := want.(time.Time); !ok || !doc.UpdatedAt.Equal(t) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func sortDocs(docs []Document, orderBy string, desc bool) {
	if orderBy == "" {
		orderBy = "_id"
	}
	sort.Slice(docs, func(i, j int) bool {
		var less bool
		switch orderBy {
		case "createdAt":
			less = docs[i].CreatedAt.Before(docs[j].CreatedAt)
		case "updatedAt":
			less = docs[i].UpdatedAt.Before(docs[j].UpdatedAt)
		default:
			less = docs[i].Path < docs[j].Path
		}
		if desc {
			return !less
		}
		return less
	})
}

func (s *MemoryStore) Batch(ctx context.Context, ops []BatchOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			s.putLocked(op.Path, op.Envelope)
		case OpDelete:
			s.deleteLocked(op.Path)
		}
	}
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, parent string) (<-chan Change, func(), error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	w := &memWatcher{
		parent: parent,
		ch:     make(chan Change, 64),
		done:   make(chan struct{}),
	}
	s.watchers[id] = w
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w.done)
			close(w.ch)
		}
		s.mu.Unlock()
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-w.done:
		}
	}()
	return w.ch, cancel, nil
}

func (s *MemoryStore) notifyLocked(ch Change) {
	for _, w := range s.watchers {
		if gopath.Dir(ch.Path) != w.parent {
			continue
		}
		select {
		case w.ch <- ch:
		default:
			// slow consumer: drop rather than block the writer
		}
	}
}

func (s *MemoryStore) PutRecoveryBlob(ctx context.Context, path string, blob *escrow.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recovery == nil {
		s.recovery = make(map[string]escrow.Blob)
	}
	if _, ok := s.recovery[path]; ok {
		return ErrAlreadyExists
	}
	s.recovery[path] = *blob
	return nil
}

func (s *MemoryStore) GetRecoveryBlob(ctx context.Context, path string) (*escrow.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.recovery[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &blob, nil
}

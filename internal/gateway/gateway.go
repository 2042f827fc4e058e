// Package gateway is the scoped document gateway: every read and write path
// is bound to the authenticated user's own namespace, writes are sealed and
// reads opened transparently through the envelope codec, and trash, batch and
// subscription semantics wrap the remote store's primitives.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
	"github.com/DenzilGreenwood/studio-sub001/internal/storage"
)

// storeRetries bounds retries of transient store failures. Cryptographic,
// ownership and not-found errors are terminal and never retried.
const storeRetries = 2

// Record is the plaintext form of a stored document.
type Record = map[string]any

type Gateway struct {
	store storage.Store
	log   logrus.FieldLogger
}

func New(store storage.Store, log logrus.FieldLogger) *Gateway {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gateway{store: store, log: log}
}

// Save seals record and writes it at the session's scoped path. With merge
// set, the existing record is read first and record's fields are shallow-
// merged over it before sealing.
func (g *Gateway) Save(ctx context.Context, s *Session, collection, docID string, record Record, merge bool) error {
	key, err := s.keyCopy()
	if err != nil {
		return err
	}
	defer cr.Zero(key)
	p, err := docPath(s, collection, docID)
	if err != nil {
		return err
	}
	if merge {
		existing, err := g.Get(ctx, s, collection, docID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if existing != nil {
			record = shallowMerge(existing, record)
		}
	}
	env, err := envelope.Seal(record, key)
	if err != nil {
		return err
	}
	g.log.WithFields(logrus.Fields{"uid": s.userID, "collection": collection, "doc": docID}).
		Debug("gateway: save")
	return g.withRetry(ctx, func() error {
		return g.store.Put(ctx, p, env)
	})
}

// Get reads and opens the document at the session's scoped path. Missing
// documents surface as storage.ErrNotFound.
func (g *Gateway) Get(ctx context.Context, s *Session, collection, docID string) (Record, error) {
	key, err := s.keyCopy()
	if err != nil {
		return nil, err
	}
	defer cr.Zero(key)
	p, err := docPath(s, collection, docID)
	if err != nil {
		return nil, err
	}
	var doc *storage.Document
	err = g.withRetry(ctx, func() error {
		var e error
		doc, e = g.store.Get(ctx, p)
		return e
	})
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := envelope.Open(&doc.Envelope, key, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update is read-merge-write: fetch the full record, shallow-merge partial
// over it, save. Costs an extra round trip and is subject to lost updates
// under concurrent writers; the store provides no serialization and this
// layer adds none.
func (g *Gateway) Update(ctx context.Context, s *Session, collection, docID string, partial Record) error {
	if s.closed() {
		return ErrSessionClosed
	}
	existing, err := g.Get(ctx, s, collection, docID)
	if err != nil {
		return err
	}
	return g.Save(ctx, s, collection, docID, shallowMerge(existing, partial), false)
}

// Delete removes the document at the session's scoped path.
func (g *Gateway) Delete(ctx context.Context, s *Session, collection, docID string) error {
	if s.closed() {
		return ErrSessionClosed
	}
	p, err := docPath(s, collection, docID)
	if err != nil {
		return err
	}
	g.log.WithFields(logrus.Fields{"uid": s.userID, "collection": collection, "doc": docID}).
		Debug("gateway: delete")
	return g.withRetry(ctx, func() error {
		return g.store.Delete(ctx, p)
	})
}

func shallowMerge(base, partial Record) Record {
	out := make(Record, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// withRetry retries fn on *storage.StoreError only, with a short backoff.
func (g *Gateway) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		var se *storage.StoreError
		if err == nil || !errors.As(err, &se) || attempt >= storeRetries {
			return err
		}
		select {
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		case <-ctx.Done():
			return err
		}
	}
}

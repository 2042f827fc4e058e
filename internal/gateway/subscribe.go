package gateway

import (
	"context"
	gopath "path"
	"sync"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
)

// Update is one pushed change delivered to a subscriber. A decryption
// failure on a single pushed document sets Err and leaves the subscription
// running; it never terminates delivery.
type Update struct {
	ID      string
	Record  Record
	Deleted bool
	Err     error
}

// Subscribe registers a push listener on one collection. Each incoming
// change is opened before it reaches fn. The returned disposer stops
// delivery and releases the underlying channel; it is idempotent, and the
// disposer returned alongside an error is a no-op.
func (g *Gateway) Subscribe(ctx context.Context, s *Session, collection string, fn func(Update)) (func(), error) {
	noop := func() {}
	// Private copy: a later Session.Close cannot race delivery.
	key, err := s.keyCopy()
	if err != nil {
		return noop, err
	}
	parent, err := collectionPath(s, collection)
	if err != nil {
		cr.Zero(key)
		return noop, err
	}
	changes, cancel, err := g.store.Watch(ctx, parent)
	if err != nil {
		cr.Zero(key)
		return noop, err
	}

	go func() {
		defer cr.Zero(key)
		for ch := range changes {
			u := Update{ID: gopath.Base(ch.Path)}
			switch {
			case ch.Deleted:
				u.Deleted = true
			case ch.Doc == nil:
				continue
			default:
				var rec Record
				if openErr := envelope.Open(&ch.Doc.Envelope, key, &rec); openErr != nil {
					u.Err = openErr
				} else {
					u.Record = rec
				}
			}
			fn(u)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
	}, nil
}

package gateway

import (
	"context"
	gopath "path"
	"time"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
	"github.com/DenzilGreenwood/studio-sub001/internal/storage"
)

// Result is one element of a query page. A record that failed to open keeps
// its slot with Err set; one corrupted document never hides an otherwise
// successful page.
type Result struct {
	ID        string
	Record    Record
	CreatedAt time.Time
	UpdatedAt time.Time
	Err       error
}

// Query runs a filtered, ordered, limited query over one collection and opens
// every returned envelope individually. Filters apply to store-visible fields
// (timestamps, path); envelope contents are opaque to the store.
func (g *Gateway) Query(ctx context.Context, s *Session, collection string, q storage.Query) ([]Result, error) {
	key, err := s.keyCopy()
	if err != nil {
		return nil, err
	}
	defer cr.Zero(key)
	parent, err := collectionPath(s, collection)
	if err != nil {
		return nil, err
	}
	var docs []storage.Document
	err = g.withRetry(ctx, func() error {
		var e error
		docs, e = g.store.Query(ctx, parent, q)
		return e
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		r := Result{
			ID:        gopath.Base(doc.Path),
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		}
		var rec Record
		if openErr := envelope.Open(&doc.Envelope, key, &rec); openErr != nil {
			r.Err = openErr
		} else {
			r.Record = rec
		}
		results = append(results, r)
	}
	return results, nil
}

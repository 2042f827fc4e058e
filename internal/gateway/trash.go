package gateway

import (
	"context"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
	"github.com/DenzilGreenwood/studio-sub001/internal/storage"
)

// MoveToTrash soft-deletes a document: the sealed envelope is copied
// verbatim into the trash collection and the original is deleted, both in
// one atomic store batch. No re-encryption takes place.
func (g *Gateway) MoveToTrash(ctx context.Context, s *Session, collection, docID string) error {
	if s.closed() {
		return ErrSessionClosed
	}
	src, err := docPath(s, collection, docID)
	if err != nil {
		return err
	}
	dst, err := docPath(s, TrashCollection, docID)
	if err != nil {
		return err
	}
	doc, err := g.store.Get(ctx, src)
	if err != nil {
		return err
	}
	return g.withRetry(ctx, func() error {
		return g.store.Batch(ctx, []storage.BatchOp{
			{Kind: storage.OpPut, Path: dst, Envelope: &doc.Envelope},
			{Kind: storage.OpDelete, Path: src},
		})
	})
}

// RestoreFromTrash is the inverse: the envelope moves from the trash back
// into targetCollection, again as one atomic batch.
func (g *Gateway) RestoreFromTrash(ctx context.Context, s *Session, docID, targetCollection string) error {
	if s.closed() {
		return ErrSessionClosed
	}
	src, err := docPath(s, TrashCollection, docID)
	if err != nil {
		return err
	}
	dst, err := docPath(s, targetCollection, docID)
	if err != nil {
		return err
	}
	doc, err := g.store.Get(ctx, src)
	if err != nil {
		return err
	}
	return g.withRetry(ctx, func() error {
		return g.store.Batch(ctx, []storage.BatchOp{
			{Kind: storage.OpPut, Path: dst, Envelope: &doc.Envelope},
			{Kind: storage.OpDelete, Path: src},
		})
	})
}

// WriteOp is one element of a BatchWrite. Record is ignored when Delete is
// set.
type WriteOp struct {
	Collection string
	DocID      string
	Record     Record
	Delete     bool
}

// BatchWrite seals each operation's payload independently, then submits the
// whole set as one atomic commit. Any ownership failure rejects the entire
// batch before I/O.
func (g *Gateway) BatchWrite(ctx context.Context, s *Session, ops []WriteOp) error {
	key, err := s.keyCopy()
	if err != nil {
		return err
	}
	defer cr.Zero(key)
	batch := make([]storage.BatchOp, 0, len(ops))
	for _, op := range ops {
		p, err := docPath(s, op.Collection, op.DocID)
		if err != nil {
			return err
		}
		if op.Delete {
			batch = append(batch, storage.BatchOp{Kind: storage.OpDelete, Path: p})
			continue
		}
		env, err := envelope.Seal(op.Record, key)
		if err != nil {
			return err
		}
		batch = append(batch, storage.BatchOp{Kind: storage.OpPut, Path: p, Envelope: env})
	}
	return g.withRetry(ctx, func() error {
		return g.store.Batch(ctx, batch)
	})
}

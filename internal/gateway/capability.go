package gateway

import (
	"context"
	"errors"

	"github.com/DenzilGreenwood/studio-sub001/internal/storage"
)

type Capability string

const (
	CapRead      Capability = "read"
	CapWrite     Capability = "write"
	CapDelete    Capability = "delete"
	CapSubscribe Capability = "subscribe"
)

var ErrPermissionDenied = errors.New("gateway: capability not granted")

// Guarded composes a capability check in front of a Gateway. It holds a
// gateway reference and a permission set and consults both before
// delegating; there is no subclassing relationship with Gateway.
type Guarded struct {
	gw   *Gateway
	caps map[Capability]bool
}

func NewGuarded(gw *Gateway, caps ...Capability) *Guarded {
	set := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return &Guarded{gw: gw, caps: set}
}

func (p *Guarded) allow(c Capability) error {
	if !p.caps[c] {
		return ErrPermissionDenied
	}
	return nil
}

func (p *Guarded) Save(ctx context.Context, s *Session, collection, docID string, record Record, merge bool) error {
	if err := p.allow(CapWrite); err != nil {
		return err
	}
	return p.gw.Save(ctx, s, collection, docID, record, merge)
}

func (p *Guarded) Get(ctx context.Context, s *Session, collection, docID string) (Record, error) {
	if err := p.allow(CapRead); err != nil {
		return nil, err
	}
	return p.gw.Get(ctx, s, collection, docID)
}

func (p *Guarded) Update(ctx context.Context, s *Session, collection, docID string, partial Record) error {
	if err := p.allow(CapWrite); err != nil {
		return err
	}
	return p.gw.Update(ctx, s, collection, docID, partial)
}

func (p *Guarded) Delete(ctx context.Context, s *Session, collection, docID string) error {
	if err := p.allow(CapDelete); err != nil {
		return err
	}
	return p.gw.Delete(ctx, s, collection, docID)
}

func (p *Guarded) Query(ctx context.Context, s *Session, collection string, q storage.Query) ([]Result, error) {
	if err := p.allow(CapRead); err != nil {
		return nil, err
	}
	return p.gw.Query(ctx, s, collection, q)
}

func (p *Guarded) MoveToTrash(ctx context.Context, s *Session, collection, docID string) error {
	if err := p.allow(CapDelete); err != nil {
		return err
	}
	return p.gw.MoveToTrash(ctx, s, collection, docID)
}

func (p *Guarded) RestoreFromTrash(ctx context.Context, s *Session, docID, targetCollection string) error {
	if err := p.allow(CapWrite); err != nil {
		return err
	}
	return p.gw.RestoreFromTrash(ctx, s, docID, targetCollection)
}

func (p *Guarded) BatchWrite(ctx context.Context, s *Session, ops []WriteOp) error {
	if err := p.allow(CapWrite); err != nil {
		return err
	}
	return p.gw.BatchWrite(ctx, s, ops)
}

func (p *Guarded) Subscribe(ctx context.Context, s *Session, collection string, fn func(Update)) (func(), error) {
	if err := p.allow(CapSubscribe); err != nil {
		return func() {}, err
	}
	return p.gw.Subscribe(ctx, s, collection, fn)
}

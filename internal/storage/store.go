package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
)

var ErrNotFound = errors.New("storage: document not found")

// StoreError wraps a transport or availability failure of the underlying
// store. It is the only error class callers may retry.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Document is a stored envelope plus store-managed timestamps.
type Document struct {
	Path      string            `bson:"_id" json:"path"`
	Envelope  envelope.Envelope `bson:"envelope" json:"envelope"`
	CreatedAt time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// Query selects documents under one parent path. Filters are equality
// matches on document fields; envelope contents are opaque to the store and
// cannot be filtered on.
type Query struct {
	Filters map[string]any
	OrderBy string
	Desc    bool
	Limit   int64
}

type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
)

// BatchOp is one element of an atomic multi-document commit.
type BatchOp struct {
	Kind     OpKind
	Path     string
	Envelope *envelope.Envelope
}

// Change is one pushed update from Watch. Doc is nil for deletions.
type Change struct {
	Path    string
	Doc     *Document
	Deleted bool
}

// Store is the remote document store surface the gateway builds on:
// path-addressed CRUD, filtered queries, atomic batch commit, and
// change-subscription push. Implementations wrap transport failures in
// *StoreError and report missing documents as ErrNotFound.
type Store interface {
	Put(ctx context.Context, path string, env *envelope.Envelope) error
	Get(ctx context.Context, path string) (*Document, error)
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, parent string, q Query) ([]Document, error)
	Batch(ctx context.Context, ops []BatchOp) error
	Watch(ctx context.Context, parent string) (<-chan Change, func(), error)
}

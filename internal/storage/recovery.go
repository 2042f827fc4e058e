package storage

import (
	"context"
	"errors"

	"github.com/DenzilGreenwood/studio-sub001/internal/escrow"
)

// ErrAlreadyExists guards the write-once lifecycle of recovery material.
var ErrAlreadyExists = errors.New("storage: document already exists")

// RecoveryStore persists escrow blobs at a fixed per-user path. The blob is
// created once at signup and read-only thereafter; PutRecoveryBlob on an
// existing path fails with ErrAlreadyExists rather than overwriting.
type RecoveryStore interface {
	PutRecoveryBlob(ctx context.Context, path string, blob *escrow.Blob) error
	GetRecoveryBlob(ctx context.Context, path string) (*escrow.Blob, error)
}

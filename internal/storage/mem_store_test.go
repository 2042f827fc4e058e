package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
	"github.com/DenzilGreenwood/studio-sub001/internal/escrow"
)

func testEnvelope(tag byte) *envelope.Envelope {
	return &envelope.Envelope{
		Ciphertext: []byte{tag, 1, 2, 3},
		Salt:       []byte{tag, 4, 5, 6},
		IV:         []byte{tag, 7, 8, 9},
		Version:    envelope.VersionCurrent,
	}
}

func TestMemoryStorePutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	path := "journals/users/alice/journals/j1"

	if _, err := s.Get(ctx, path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get before put: want ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, path, testEnvelope(1)); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Path != path || doc.Envelope.Ciphertext[0] != 1 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}

	created := doc.CreatedAt
	time.Sleep(time.Millisecond)
	if err := s.Put(ctx, path, testEnvelope(2)); err != nil {
		t.Fatal(err)
	}
	doc, _ = s.Get(ctx, path)
	if !doc.CreatedAt.Equal(created) {
		t.Fatal("overwrite must preserve createdAt")
	}
	if !doc.UpdatedAt.After(created) {
		t.Fatal("overwrite must advance updatedAt")
	}

	if err := s.Delete(ctx, path); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: want ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreQueryScopedToParent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Put(ctx, "journals/users/alice/journals/a", testEnvelope(1))
	_ = s.Put(ctx, "journals/users/alice/journals/b", testEnvelope(2))
	_ = s.Put(ctx, "journals/users/alice/notes/c", testEnvelope(3))
	_ = s.Put(ctx, "journals/users/bob/journals/d", testEnvelope(4))

	docs, err := s.Query(ctx, "journals/users/alice/journals", Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("want 2 docs, got %d", len(docs))
	}
	for _, d := range docs {
		if d.Path == "journals/users/bob/journals/d" {
			t.Fatal("query leaked another user's document")
		}
	}

	docs, err = s.Query(ctx, "journals/users/alice/journals", Query{OrderBy: "createdAt", Desc: true, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("limit ignored: got %d docs", len(docs))
	}
}

func TestMemoryStoreBatchAtomicMove(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	src := "journals/users/alice/journals/j1"
	dst := "journals/users/alice/trash/j1"

	_ = s.Put(ctx, src, testEnvelope(7))
	srcDoc, _ := s.Get(ctx, src)

	err := s.Batch(ctx, []BatchOp{
		{Kind: OpPut, Path: dst, Envelope: &srcDoc.Envelope},
		{Kind: OpDelete, Path: src},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, src); !errors.Is(err, ErrNotFound) {
		t.Fatal("source should be gone after move")
	}
	moved, err := s.Get(ctx, dst)
	if err != nil {
		t.Fatal(err)
	}
	if moved.Envelope.Ciphertext[0] != 7 {
		t.Fatal("envelope should move bytes-for-bytes")
	}
}

func TestMemoryStoreWatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	parent := "journals/users/alice/journals"

	ch, cancel, err := s.Watch(ctx, parent)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	_ = s.Put(ctx, parent+"/j1", testEnvelope(1))
	_ = s.Put(ctx, "journals/users/alice/notes/n1", testEnvelope(2))
	_ = s.Delete(ctx, parent+"/j1")

	want := []Change{
		{Path: parent + "/j1"},
		{Path: parent + "/j1", Deleted: true},
	}
	for i, w := range want {
		select {
		case got := <-ch:
			if got.Path != w.Path || got.Deleted != w.Deleted {
				t.Fatalf("change %d: got %+v, want path=%s deleted=%v", i, got, w.Path, w.Deleted)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for change %d", i)
		}
	}

	cancel()
	cancel() // second cancel must not panic
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
}

func TestMemoryStoreRecoveryBlobWriteOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	path := "journals/users/alice/recovery/blob"

	if _, err := s.GetRecoveryBlob(ctx, path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	blob := &escrow.Blob{
		EncryptedPassphrase: []byte{1, 2, 3},
		Salt:                []byte{4, 5, 6},
		IV:                  []byte{7, 8, 9},
		Iterations:          100000,
		Version:             envelope.VersionCurrent,
	}
	if err := s.PutRecoveryBlob(ctx, path, blob); err != nil {
		t.Fatal(err)
	}
	if err := s.PutRecoveryBlob(ctx, path, blob); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second put: want ErrAlreadyExists, got %v", err)
	}

	got, err := s.GetRecoveryBlob(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Iterations != blob.Iterations || len(got.EncryptedPassphrase) != 3 {
		t.Fatalf("blob round trip mismatch: %+v", got)
	}
}

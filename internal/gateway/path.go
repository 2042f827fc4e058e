package gateway

import (
	"errors"
	gopath "path"
	"strings"
)

// Root is the top-level namespace in the remote store. Every document lives
// at Root/users/<userID>/<collection>/<docID>.
const Root = "journals"

// TrashCollection holds soft-deleted documents.
const TrashCollection = "trash"

// ErrOwnershipViolation reports a path that does not resolve into the
// authenticated caller's own namespace. Raised before any store I/O.
var ErrOwnershipViolation = errors.New("gateway: path outside caller's namespace")

// docPath builds and validates the scoped path for one document. The joined
// path is re-checked segment by segment, so a crafted collection or docID
// ("../otherUser") cannot escape the session's namespace.
func docPath(s *Session, collection, docID string) (string, error) {
	if collection == "" || docID == "" {
		return "", ErrOwnershipViolation
	}
	p := gopath.Join(Root, "users", s.userID, collection, docID)
	if err := validateOwnership(p, s.userID); err != nil {
		return "", err
	}
	return p, nil
}

// collectionPath builds and validates the scoped parent path for a query or
// subscription.
func collectionPath(s *Session, collection string) (string, error) {
	if collection == "" {
		return "", ErrOwnershipViolation
	}
	p := gopath.Join(Root, "users", s.userID, collection)
	segs := strings.Split(p, "/")
	if len(segs) != 4 {
		return "", ErrOwnershipViolation
	}
	if err := checkScope(segs, s.userID); err != nil {
		return "", err
	}
	return p, nil
}

// validateOwnership enforces the ScopedPath invariant on a full document
// path: exactly Root/users/<userID>/<collection>/<docID>, with the
// authenticated caller's own userID in the third segment.
func validateOwnership(p, userID string) error {
	segs := strings.Split(p, "/")
	if len(segs) != 5 {
		return ErrOwnershipViolation
	}
	return checkScope(segs, userID)
}

func checkScope(segs []string, userID string) error {
	if segs[0] != Root || segs[1] != "users" || segs[2] != userID {
		return ErrOwnershipViolation
	}
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return ErrOwnershipViolation
		}
	}
	return nil
}

// RecoveryBlobPath is the fixed per-user location of the escrowed recovery
// material.
func RecoveryBlobPath(userID string) string {
	return gopath.Join(Root, "users", userID, "recovery", "blob")
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
	"github.com/DenzilGreenwood/studio-sub001/internal/gateway"
	"github.com/DenzilGreenwood/studio-sub001/internal/storage"
)

// writeGatewayError maps the subsystem's error taxonomy onto HTTP statuses
// with actionable messages. At the crypto layer a wrong passphrase and
// corrupted data are indistinguishable; the message says so.
func writeGatewayError(w http.ResponseWriter, err error) {
	var se *storage.StoreError
	switch {
	case errors.Is(err, gateway.ErrSessionClosed):
		http.Error(w, "journal is locked, unlock first", http.StatusUnauthorized)
	case errors.Is(err, gateway.ErrOwnershipViolation):
		http.Error(w, "path outside your namespace", http.StatusForbidden)
	case errors.Is(err, gateway.ErrPermissionDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, cr.ErrAuthentication):
		http.Error(w, "could not decrypt: wrong passphrase or corrupted data", http.StatusUnprocessableEntity)
	case errors.Is(err, envelope.ErrUnsupportedVersion):
		http.Error(w, "data was written by an unsupported app version", http.StatusUnprocessableEntity)
	case errors.As(err, &se):
		http.Error(w, "store unavailable, try again", http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// handleDocs serves /api/docs/{collection} and /api/docs/{collection}/{docID}
// plus the trash action /api/docs/{collection}/{docID}/trash.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeGatewayError(w, gateway.ErrSessionClosed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/docs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleCollection(w, r, sess, parts[0])
	case len(parts) == 2:
		s.handleDoc(w, r, sess, parts[0], parts[1])
	case len(parts) == 3 && parts[2] == "trash":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := s.gw.MoveToTrash(r.Context(), sess, parts[0], parts[1]); err != nil {
			writeGatewayError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request, sess *gateway.Session, collection string) {
	switch r.Method {
	case http.MethodGet:
		q := storage.Query{OrderBy: r.URL.Query().Get("orderBy")}
		q.Desc = r.URL.Query().Get("desc") == "true"
		if lim := r.URL.Query().Get("limit"); lim != "" {
			n, err := strconv.ParseInt(lim, 10, 64)
			if err != nil || n < 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			q.Limit = n
		}
		results, err := s.gw.Query(r.Context(), sess, collection, q)
		if err != nil {
			writeGatewayError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(results))
		for _, res := range results {
			item := map[string]any{
				"id":      res.ID,
				"created": res.CreatedAt,
				"updated": res.UpdatedAt,
			}
			if res.Err != nil {
				item["error"] = "could not decrypt: wrong passphrase or corrupted data"
			} else {
				item["record"] = res.Record
			}
			out = append(out, item)
		}
		writeJSON(w, out)

	case http.MethodPost:
		var body struct {
			ID     string         `json:"id"`
			Record gateway.Record `json:"record"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if body.ID == "" {
			body.ID = newDocID()
		}
		if err := s.gw.Save(r.Context(), sess, collection, body.ID, body.Record, false); err != nil {
			writeGatewayError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"id": body.ID})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request, sess *gateway.Session, collection, docID string) {
	switch r.Method {
	case http.MethodGet:
		rec, err := s.gw.Get(r.Context(), sess, collection, docID)
		if err != nil {
			writeGatewayError(w, err)
			return
		}
		writeJSON(w, rec)

	case http.MethodPut:
		var partial gateway.Record
		if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := s.gw.Update(r.Context(), sess, collection, docID, partial); err != nil {
			writeGatewayError(w, err)
			return
		}
		writeJSON(w, map[string]any{"updated": true})

	case http.MethodDelete:
		if err := s.gw.Delete(r.Context(), sess, collection, docID); err != nil {
			writeGatewayError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRestore serves POST /api/trash/{docID}/restore.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.session(r)
	if err != nil {
		writeGatewayError(w, gateway.ErrSessionClosed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/trash/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "restore" {
		http.NotFound(w, r)
		return
	}
	var body struct {
		TargetCollection string `json:"target_collection"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.gw.RestoreFromTrash(r.Context(), sess, parts[0], body.TargetCollection); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, map[string]any{"restored": true})
}

// handleBatch serves POST /api/docs/batch: one atomic multi-document commit.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.session(r)
	if err != nil {
		writeGatewayError(w, gateway.ErrSessionClosed)
		return
	}
	var body struct {
		Ops []struct {
			Collection string         `json:"collection"`
			ID         string         `json:"id"`
			Record     gateway.Record `json:"record"`
			Delete     bool           `json:"delete"`
		} `json:"ops"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	ops := make([]gateway.WriteOp, 0, len(body.Ops))
	for _, op := range body.Ops {
		ops = append(ops, gateway.WriteOp{
			Collection: op.Collection,
			DocID:      op.ID,
			Record:     op.Record,
			Delete:     op.Delete,
		})
	}
	if err := s.gw.BatchWrite(r.Context(), sess, ops); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, map[string]any{"committed": len(ops)})
}

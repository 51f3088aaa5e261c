package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/btcsuite/btclog"
)

// handleGetLatestSnapshot implements GET /sync/snapshot/latest.
func (s *Server) handleGetLatestSnapshot(_ *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	id := s.sender.GetLatestSnapshotID()
	if id == "" {
		return nil, errNotFound("no snapshots available")
	}
	manifest, ok := s.sender.GetManifest(id)
	if !ok {
		return nil, errNotFound("snapshot manifest not found")
	}
	return manifest, nil
}

// handleGetChunk implements GET /sync/snapshot/{id}/chunk/{i}, including
// HTTP Range support and the X-Chunk-Checksum/X-Total-Chunks/X-Compressed
// headers (spec §6: "chunk (supports Range; X-Chunk-Checksum header;
// X-Total-Chunks)"; SPEC_FULL's expansion adds X-Compressed per the
// Chunk type's compressed? field).
func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["i"])
	if err != nil {
		writeHandlerError(w, s.log, errValidation("chunk index must be an integer"))
		return
	}

	chunk, ok := s.sender.GetChunk(vars["id"], index)
	if !ok {
		writeHandlerError(w, s.log, errNotFound("chunk not found"))
		return
	}

	data := chunk.Data
	total := len(data)

	w.Header().Set("X-Chunk-Checksum", chunk.Checksum)
	w.Header().Set("X-Total-Chunks", strconv.Itoa(chunk.TotalChunks))
	w.Header().Set("X-Compressed", strconv.FormatBool(chunk.Compressed))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", "application/octet-stream")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.Itoa(total))
		w.Write(data)
		return
	}

	start, end, ok := parseRangeHeader(rangeHeader, total)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))
	w.Header().Set("Content-Length", strconv.Itoa(end-start+1))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}

// parseRangeHeader parses a single-range "bytes=start-end" header,
// mirroring the teacher source's download_chunk Range handling.
func parseRangeHeader(header string, total int) (start, end int, ok bool) {
	rangeStr := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(rangeStr, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	start = 0
	if parts[0] != "" {
		v, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, 0, false
		}
		start = v
	}

	end = total - 1
	if parts[1] != "" {
		v, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, false
		}
		end = v
	}

	if start >= total || end >= total || start > end {
		return 0, 0, false
	}
	return start, end, true
}

// handleResumeSnapshot implements POST /sync/snapshot/resume: given a
// snapshot_id, returns the manifest plus this server's locally tracked
// progress record (if this node has one for that snapshot).
func (s *Server) handleResumeSnapshot(r *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	var body struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return nil, errValidation("request body must contain snapshot_id")
	}
	if body.SnapshotID == "" {
		return nil, errValidation("snapshot_id is required")
	}

	manifest, ok := s.sender.GetManifest(body.SnapshotID)
	if !ok {
		return nil, errNotFound("snapshot not found")
	}

	response := map[string]interface{}{"manifest": manifest}
	if s.progress != nil {
		if record, ok, err := s.progress.Load(body.SnapshotID); err == nil && ok {
			response["progress"] = record
		}
	}
	return response, nil
}

// handleGetSyncProgress implements GET /sync/progress.
func (s *Server) handleGetSyncProgress(_ *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	height, _ := s.store.Height()
	return s.tracker.Progress(height), nil
}

func writeHandlerError(w http.ResponseWriter, log btclog.Logger, hErr *HandlerError) {
	log.Warnf("request failed: %s", hErr)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(hErr.HTTPStatus)
	json.NewEncoder(w).Encode(hErr.envelope())
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

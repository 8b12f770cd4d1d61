package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/storage"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var event models.ObjectEvent
	if err := s.decode(w, r, &event); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("event request", zap.Int("records", len(event.Records)))
	s.respondJSON(w, http.StatusOK, s.service.HandleEvent(r.Context(), &event))
}

type ingestRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Bucket == "" && s.watch != nil {
		req.Bucket = s.watch.Bucket()
	}
	if req.Bucket == "" || strings.TrimSpace(req.Key) == "" {
		s.respondError(w, http.StatusBadRequest, "bucket and key are required")
		return
	}
	s.logger.Debug("ingest request", zap.String("bucket", req.Bucket), zap.String("key", req.Key))
	res := s.service.Ingest(r.Context(), req.Bucket, req.Key)
	s.respondJSON(w, ingestStatus(res), res)
}

func ingestStatus(res *models.IngestResult) int {
	switch res.Status {
	case models.StatusProcessed, models.StatusSkipped:
		return http.StatusOK
	case models.StatusRejected:
		return http.StatusBadRequest
	default:
		if res.Code == "object_read_error" {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("tenant_id", req.TenantID), zap.String("document_type", req.DocumentType))
	res := s.service.Query(r.Context(), req)
	status := http.StatusOK
	switch {
	case res.Success:
	case res.Code == "invalid_input":
		status = http.StatusBadRequest
	case res.Code == "generation_error":
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}
	s.respondJSON(w, status, res)
}

func (s *Server) handleListIngestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.RunFilter{
		TenantID: q.Get("tenant_id"),
		Status:   models.IngestStatus(q.Get("status")),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit"), storage.DefaultListLimit); err != nil || filter.Limit > 500 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	runs, err := s.ledger.ListRuns(r.Context(), filter)
	if err != nil {
		s.logger.Error("list ingestions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"ingestions": runs,
		"count":      len(runs),
	})
}

func (s *Server) handleGetIngestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.ledger.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, "ingestion not found")
		return
	}
	if err != nil {
		s.logger.Error("get ingestion failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.ledger.CountRuns(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		s.logger.Error("status: count runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"success":    true,
		"ingestions": counts,
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"embedding_model":      s.config.Embedding.ModelID,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"generation_model":     s.config.Generation.ModelID,
			"vector_store":         s.config.VectorStore.Type,
			"index_prefix":         s.config.VectorStore.IndexPrefix,
			"object_store":         s.config.ObjectStore.Type,
			"chunk_size":           s.config.Chunking.ChunkSize,
			"chunk_overlap":        s.config.Chunking.ChunkOverlap,
			"top_k":                s.config.Retrieval.TopK,
		}
		paths := map[string]string{"database": s.config.Storage.DatabasePath}
		if s.config.VectorStore.Type == "memory" {
			paths["vectors"] = s.config.VectorStore.PersistPath
		}
		if usage, err := storage.MeasureDiskUsage(paths); err == nil {
			resp["disk_usage"] = usage
		} else {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		}
	}
	if s.watch != nil {
		resp["watch"] = map[string]string{"dir": s.watch.Dir(), "bucket": s.watch.Bucket()}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{"success": false, "message": message})
}

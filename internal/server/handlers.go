package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/statementhq/royalty-pipeline/internal/async"
	"github.com/statementhq/royalty-pipeline/internal/common"
)

// storageWebhookSchema validates the upload-trigger payload before any state
// is created. Draft 2020-12 subset, compiled once at init.
const storageWebhookSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"file_id":      {"type": "string", "minLength": 1},
		"storage_path": {"type": "string", "minLength": 1},
		"catalog":      {"type": "string", "minLength": 1},
		"doc_type":     {"type": "string", "minLength": 1}
	},
	"required": ["file_id", "storage_path", "catalog", "doc_type"]
}`

var webhookSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("webhook.json", bytes.NewReader([]byte(storageWebhookSchema))); err != nil {
		panic(err)
	}
	return c.MustCompile("webhook.json")
}()

type createUploadRequest struct {
	FileID   string `json:"file_id"`
	Name     string `json:"name" binding:"required"`
	MimeType string `json:"mime_type"`
	Catalog  string `json:"catalog" binding:"required"`
	DocType  string `json:"doc_type" binding:"required"`
}

// handleCreateUpload registers the file metadata record and issues a signed
// PUT URL carrying the file_id as object metadata so the storage webhook can
// correlate the finished upload back to it.
func (s *Server) handleCreateUpload(c *gin.Context) {
	var req createUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fileID := uuid.New()
	if req.FileID != "" {
		parsed, err := uuid.Parse(req.FileID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file_id must be a UUID"})
			return
		}
		fileID = parsed
	}

	file, err := s.files.Create(c.Request.Context(), fileID, req.Name, req.MimeType, req.Catalog, req.DocType)
	if err != nil {
		s.logger.Error("uploads.create.failed", "file_id", fileID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register file"})
		return
	}

	storagePath := path.Join("statements", req.Catalog, fileID.String(), req.Name)
	upload, err := s.blobs.CreateSignedUploadURL(c.Request.Context(), storagePath, map[string]string{
		"file_id":  fileID.String(),
		"catalog":  req.Catalog,
		"doc_type": req.DocType,
	})
	if err != nil {
		s.logger.Error("uploads.presign.failed", "file_id", fileID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create upload url"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"file_id":    file.ID,
		"signed_url": upload.SignedURL,
		"path":       upload.Path,
	})
}

// handleStorageWebhook receives the upload trigger, creates the pending
// queue record, and hands the job to the worker pool. The orchestrator's
// pending-guard keeps a replayed webhook from doing duplicate work.
func (s *Server) handleStorageWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	payload, err := validateWebhook(body)
	if err != nil {
		s.logger.Warn("webhook.invalid_payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fileID, err := uuid.Parse(payload.FileID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_id must be a UUID"})
		return
	}

	job, err := s.queue.Create(c.Request.Context(), fileID, payload.StoragePath, payload.Catalog, payload.DocType)
	if err != nil {
		s.logger.Error("webhook.job_create.failed", "file_id", fileID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	if err := s.jobs.Enqueue(c.Request.Context(), async.Job{
		JobID:       job.ID,
		SubmittedAt: time.Now().UTC(),
		TraceID:     c.GetHeader("X-Request-Id"),
	}); err != nil {
		s.logger.Error("webhook.enqueue.failed", "job_id", job.ID, "error", err)
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

// handleGetJob serves the progress-polling surface: status, counts, and the
// truncated error message are the only user-visible output of the pipeline.
func (s *Server) handleGetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return
	}

	job, err := s.queue.GetByID(c.Request.Context(), id)
	if errors.Is(err, common.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		s.logger.Error("jobs.get.failed", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

type webhookPayload struct {
	FileID      string `json:"file_id"`
	StoragePath string `json:"storage_path"`
	Catalog     string `json:"catalog"`
	DocType     string `json:"doc_type"`
}

func validateWebhook(body []byte) (*webhookPayload, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := webhookSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &payload, nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rag-chatbot/internal/ingest"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/rag"
)

type Asker interface {
	Ask(ctx context.Context, ownerID, question string, sink rag.Sink) (*rag.Outcome, error)
}

type History interface {
	ListTurns(ctx context.Context, ownerID string, limit int) ([]models.ConversationTurn, error)
	GetTurn(ctx context.Context, ownerID string, id int64) (*models.ConversationTurn, error)
	DeleteTurn(ctx context.Context, ownerID string, id int64) error
	ClearTurns(ctx context.Context, ownerID string) (int, error)
	TurnStats(ctx context.Context, ownerID string) (*models.TurnStats, error)
}

type Handlers struct {
	documents *ingest.Service
	asker     Asker
	history   History
	maxBytes  int64
}

func NewHandlers(documents *ingest.Service, asker Asker, history History, maxBytes int64) *Handlers {
	return &Handlers{documents: documents, asker: asker, history: history, maxBytes: maxBytes}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ===============
// || Files     ||
// ===============

func (h *Handlers) readUpload(fh *multipart.FileHeader) (ingest.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.Upload{}, fmt.Errorf("%w: %w", models.ErrValidation, err)
	}
	defer f.Close()

	// one byte past the limit is enough for validation to reject it
	r := io.Reader(f)
	if h.maxBytes > 0 {
		r = io.LimitReader(f, h.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ingest.Upload{}, err
	}
	return ingest.Upload{Filename: fh.Filename, Data: data}, nil
}

func (h *Handlers) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		RespondErr(c, fmt.Errorf("%w: form field \"file\" is required", models.ErrValidation))
		return
	}
	up, err := h.readUpload(fh)
	if err != nil {
		RespondErr(c, err)
		return
	}
	res, err := h.documents.Ingest(c.Request.Context(), OwnerID(c), up)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *Handlers) UploadMultiple(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		RespondErr(c, fmt.Errorf("%w: %w", models.ErrValidation, err))
		return
	}
	headers := form.File["files"]
	uploads := make([]ingest.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := h.readUpload(fh)
		if err != nil {
			RespondErr(c, err)
			return
		}
		uploads = append(uploads, up)
	}

	results, err := h.documents.IngestMany(c.Request.Context(), OwnerID(c), uploads)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, gin.H{
		"message": fmt.Sprintf("Processed %d files", len(results)),
		"files":   results,
	})
}

func (h *Handlers) ListFiles(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), OwnerID(c))
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"files": docs, "total": len(docs)})
}

func (h *Handlers) DeleteFile(c *gin.Context) {
	id := c.Param("id")
	if err := h.documents.Delete(c.Request.Context(), OwnerID(c), id); err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "File deleted successfully", "id": id})
}

// ===============
// || Chat      ||
// ===============

type chatRequest struct {
	Question string `json:"question" form:"question"`
}

type chatResponse struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Grounded  bool      `json:"grounded"`
	Timestamp time.Time `json:"timestamp"`
}

func bindQuestion(c *gin.Context) string {
	var req chatRequest
	if c.Request.Method == http.MethodGet {
		_ = c.ShouldBindQuery(&req)
	} else {
		_ = c.ShouldBindJSON(&req)
	}
	return req.Question
}

// Chat answers in one JSON response and persists the turn.
func (h *Handlers) Chat(c *gin.Context) {
	out, err := h.asker.Ask(c.Request.Context(), OwnerID(c), bindQuestion(c), nil)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, chatResponse{
		ID:        out.Turn.ID,
		Question:  out.Turn.Question,
		Answer:    out.Answer,
		Grounded:  out.Grounded,
		Timestamp: out.Turn.CreatedAt,
	})
}

// sseSink forwards query progress as server-sent events.
type sseSink struct {
	c       *gin.Context
	started bool
}

func (s *sseSink) Context(grounded bool) error {
	return s.event("context", gin.H{"grounded": grounded})
}

func (s *sseSink) Fragment(text string) error {
	return s.event("message", gin.H{"content": text})
}

func (s *sseSink) event(name string, data any) error {
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	if !s.started {
		h := s.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.started = true
	}
	s.c.SSEvent(name, data)
	s.c.Writer.Flush()
	return nil
}

// ChatStream streams the answer live: a context event, message events per
// fragment, then done, or error on failure.
func (h *Handlers) ChatStream(c *gin.Context) {
	sink := &sseSink{c: c}
	out, err := h.asker.Ask(c.Request.Context(), OwnerID(c), bindQuestion(c), sink)
	if err != nil {
		if !sink.started {
			RespondErr(c, err)
			return
		}
		if errors.Is(err, models.ErrCancelled) {
			return
		}
		status, code := classify(err)
		_ = sink.event("error", gin.H{"message": err.Error(), "code": code, "status": status})
		return
	}
	_ = sink.event("done", gin.H{
		"id":        out.Turn.ID,
		"grounded":  out.Grounded,
		"timestamp": out.Turn.CreatedAt,
	})
}

// ===============
// || History   ||
// ===============

func turnID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid chat id %q", models.ErrValidation, c.Param("id"))
	}
	return id, nil
}

func (h *Handlers) ListHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			RespondErr(c, fmt.Errorf("%w: invalid limit %q", models.ErrValidation, v))
			return
		}
		limit = n
	}
	turns, err := h.history.ListTurns(c.Request.Context(), OwnerID(c), limit)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, turns)
}

func (h *Handlers) GetHistory(c *gin.Context) {
	id, err := turnID(c)
	if err != nil {
		RespondErr(c, err)
		return
	}
	turn, err := h.history.GetTurn(c.Request.Context(), OwnerID(c), id)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, turn)
}

func (h *Handlers) DeleteHistory(c *gin.Context) {
	id, err := turnID(c)
	if err != nil {
		RespondErr(c, err)
		return
	}
	if err := h.history.DeleteTurn(c.Request.Context(), OwnerID(c), id); err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "Chat deleted successfully", "id": id})
}

func (h *Handlers) ClearHistory(c *gin.Context) {
	n, err := h.history.ClearTurns(c.Request.Context(), OwnerID(c))
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, gin.H{"message": fmt.Sprintf("Deleted %d chats", n), "count": n})
}

func (h *Handlers) HistoryStats(c *gin.Context) {
	stats, err := h.history.TurnStats(c.Request.Context(), OwnerID(c))
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c, stats)
}

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uartd/internal/api/middleware"
	"github.com/GriffinCanCode/uartd/internal/domain/uart"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/uartd/internal/shared/id"
	"github.com/GriffinCanCode/uartd/internal/shared/utils"
)

// SessionView is the JSON representation of a live session.
type SessionView struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Args       map[string]string `json:"args,omitempty"`
	Params     uart.Params       `json:"params"`
	Size       uart.Size         `json:"size"`
	BufferSize int               `json:"buffer_size"`
	CreatedAt  time.Time         `json:"created_at"`
}

func viewOf(s *uart.Session) SessionView {
	return SessionView{
		ID:         s.ID().String(),
		Label:      s.Label(),
		Args:       s.Args(),
		Params:     s.Params(),
		Size:       s.Size(),
		BufferSize: s.Dataspace().Cap(),
		CreatedAt:  s.CreatedAt(),
	}
}

type createRequest struct {
	Args map[string]string `json:"args"`
}

type baudRateRequest struct {
	BaudRate uint `json:"baudrate" binding:"required"`
}

// CreateSession opens a session for the label in X-Session-Label
func (h *Handlers) CreateSession(c *gin.Context) {
	label := c.GetHeader(middleware.HeaderSessionLabel)
	if err := utils.ValidateLabel(label); err != nil {
		badRequest(c, err)
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := utils.ValidateArgs(req.Args); err != nil {
		badRequest(c, err)
		return
	}

	var sess *uart.Session
	err := h.tracer.Trace(c.Request.Context(), "session.create", func(ctx context.Context, span *tracing.Span) error {
		span.SetTag("label", label)
		var err error
		sess, err = h.resolver.Create(ctx, uart.Request{Label: label, Args: req.Args})
		if err != nil {
			return err
		}
		span.SetTag("session_id", sess.ID().String())
		span.SetTag("uart", strconv.FormatUint(uint64(sess.Params().Index), 10))
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, viewOf(sess))
}

// ListSessions lists all live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	live := h.resolver.Registry().List()
	views := make([]SessionView, 0, len(live))
	for _, s := range live {
		views = append(views, viewOf(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": views,
		"count":    len(views),
	})
}

// GetSession describes one session
func (h *Handlers) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

// CloseSession closes a session and releases its device claim
func (h *Handlers) CloseSession(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.resolver.Close(sid); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Debug("session closed by client", zap.String("session_id", sid.String()))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      sid.String(),
	})
}

// Size returns the terminal size detected at construction
func (h *Handlers) Size(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Size())
}

// DataAvailable reports whether the UART has input pending
func (h *Handlers) DataAvailable(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": sess.DataAvailable()})
}

// SetBaudRate reconfigures the UART behind the session
func (h *Handlers) SetBaudRate(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req baudRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}

	sess.SetBaudRate(req.BaudRate)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"baudrate": req.BaudRate,
	})
}

// Read moves pending UART input into the dataspace
func (h *Handlers) Read(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	n, ok := lengthParam(c, sess.Dataspace().Cap())
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"transferred": sess.Read(n)})
}

// Write sends the first len bytes of the dataspace to the UART
func (h *Handlers) Write(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	n, ok := lengthParam(c, -1)
	if !ok {
		return
	}

	sess.Write(n)

	written := min(n, sess.Dataspace().Cap())
	c.JSON(http.StatusOK, gin.H{
		"written":   written,
		"truncated": n - written,
	})
}

// GetDataspace copies the first len bytes out of the dataspace
func (h *Handlers) GetDataspace(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	buf := sess.Dataspace()
	n, ok := lengthParam(c, buf.Cap())
	if !ok {
		return
	}

	c.Data(http.StatusOK, "application/octet-stream", buf.Bytes(n))
}

// PutDataspace copies the request body into the dataspace at offset 0
func (h *Handlers) PutDataspace(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	buf := sess.Dataspace()
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(buf.Cap())+1))
	if err != nil {
		badRequest(c, fmt.Errorf("failed to read body: %w", err))
		return
	}

	loaded := buf.Load(data)
	c.JSON(http.StatusOK, gin.H{
		"loaded":    loaded,
		"truncated": len(data) > loaded,
	})
}

func sessionID(c *gin.Context) (id.SessionID, bool) {
	raw := c.Param("id")
	if err := utils.ValidateSessionID(raw); err != nil {
		badRequest(c, err)
		return "", false
	}
	return id.SessionID(raw), true
}

// session resolves the :id parameter, writing the error response on failure.
func (h *Handlers) session(c *gin.Context) (*uart.Session, bool) {
	sid, ok := sessionID(c)
	if !ok {
		return nil, false
	}

	sess, found := h.resolver.Registry().Get(sid)
	if !found {
		respondError(c, fmt.Errorf("%w: %s", uart.ErrSessionNotFound, sid))
		return nil, false
	}
	return sess, true
}

// lengthParam parses the len query parameter. A missing parameter yields
// def, or a 400 when def is negative.
func lengthParam(c *gin.Context, def int) (int, bool) {
	raw, present := c.GetQuery("len")
	if !present {
		if def < 0 {
			badRequest(c, errors.New("len is required"))
			return 0, false
		}
		return def, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, fmt.Errorf("len must be a non-negative integer, got %q", raw))
		return 0, false
	}
	return n, true
}

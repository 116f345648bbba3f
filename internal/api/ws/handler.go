package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uartd/internal/domain/uart"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uartd/internal/shared/id"
	"github.com/GriffinCanCode/uartd/internal/shared/utils"
)

// Event types
const (
	EventConnected = "connected"
	EventReadAvail = "read_avail"
	EventPong      = "pong"
	EventClosed    = "closed"
	EventError     = "error"
)

// Client message types
const (
	MsgSubscribe = "subscribe"
	MsgPing      = "ping"
)

const (
	writeWait          = 10 * time.Second
	defaultClosedCheck = 250 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the label header is the trust boundary, not the origin
	},
}

// Message is sent by the client.
type Message struct {
	Type string `json:"type"`
}

// Event is sent to the client.
type Event struct {
	Type      string     `json:"type"`
	SessionID string     `json:"session_id,omitempty"`
	Size      *uart.Size `json:"size,omitempty"`
	Message   string     `json:"message,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// Handler manages WebSocket streams
type Handler struct {
	registry    *uart.Registry
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	closedCheck time.Duration
}

// NewHandler creates a new WebSocket handler
func NewHandler(registry *uart.Registry, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:    registry,
		metrics:     metrics,
		logger:      logger,
		closedCheck: defaultClosedCheck,
	}
}

// Stream upgrades the request and forwards session notifications until the
// client disconnects or the session is closed.
func (h *Handler) Stream(c *gin.Context) {
	raw := c.Param("id")
	if err := utils.ValidateSessionID(raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sid := id.SessionID(raw)

	sess, ok := h.registry.Get(sid)
	if !ok {
		err := fmt.Errorf("%w: %s", uart.ErrSessionNotFound, sid)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", raw), zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	logger := h.logger.With(zap.String("session_id", raw))
	logger.Debug("stream opened")
	defer logger.Debug("stream closed")

	h.serve(conn, sess, logger)
}

func (h *Handler) serve(conn *websocket.Conn, sess *uart.Session, logger *zap.Logger) {
	done := make(chan struct{})
	defer close(done)

	// Notify callbacks run on the driver's reader goroutine and must not
	// block; one pending signal per kind is enough.
	connected := make(chan struct{}, 1)
	readAvail := make(chan struct{}, 1)
	onReadAvail := func() { signal(readAvail) }

	incoming := make(chan Message)
	readerExit := make(chan struct{})
	go func() {
		defer close(readerExit)
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("websocket read error", zap.Error(err))
				}
				return
			}
			select {
			case incoming <- msg:
			case <-done:
				return
			}
		}
	}()

	sess.OnConnected(func() { signal(connected) })
	unsubscribe := sess.OnReadAvailable(onReadAvail)
	// A newer stream on the same session keeps its subscription.
	defer func() { unsubscribe() }()

	ticker := time.NewTicker(h.closedCheck)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-connected:
			size := sess.Size()
			err = h.send(conn, Event{Type: EventConnected, SessionID: sess.ID().String(), Size: &size})
		case <-readAvail:
			err = h.send(conn, Event{Type: EventReadAvail})
		case msg := <-incoming:
			switch msg.Type {
			case MsgSubscribe:
				h.metrics.RecordWSEvent("in", msg.Type)
				unsubscribe = sess.OnReadAvailable(onReadAvail)
			case MsgPing:
				h.metrics.RecordWSEvent("in", msg.Type)
				err = h.send(conn, Event{Type: EventPong})
			default:
				err = h.send(conn, Event{Type: EventError, Message: "unknown message type"})
			}
		case <-ticker.C:
			if sess.Closed() {
				_ = h.send(conn, Event{Type: EventClosed})
				return
			}
		case <-readerExit:
			return
		}
		if err != nil {
			logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, ev Event) error {
	ev.Timestamp = time.Now().Unix()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteJSON(ev); err != nil {
		return err
	}
	h.metrics.RecordWSEvent("out", ev.Type)
	return nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

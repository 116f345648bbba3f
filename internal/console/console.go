package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/uartd/internal/api/http"
	"github.com/GriffinCanCode/uartd/internal/api/ws"
)

// EscapeByte ends an interactive console (Ctrl-]).
const EscapeByte = 0x1d

// ErrSessionClosed is returned by Run when the server closes the session.
var ErrSessionClosed = errors.New("session closed by server")

// Console is an interactive attachment to one uartd session.
type Console struct {
	client *Client
	view   apihttp.SessionView
	logger *zap.Logger
}

// Open creates a session for label and returns a console bound to it.
func Open(ctx context.Context, client *Client, label string, args map[string]string, logger *zap.Logger) (*Console, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	view, err := client.CreateSession(ctx, label, args)
	if err != nil {
		return nil, err
	}
	if view.BufferSize <= 0 {
		_ = client.CloseSession(ctx, view.ID)
		return nil, fmt.Errorf("session %s reports an empty buffer", view.ID)
	}
	logger.Debug("session opened",
		zap.String("session_id", view.ID),
		zap.String("label", view.Label),
		zap.Uint("width", view.Size.Width),
		zap.Uint("height", view.Size.Height))
	return &Console{client: client, view: *view, logger: logger}, nil
}

// Session describes the attached session.
func (c *Console) Session() apihttp.SessionView {
	return c.view
}

// Send writes p to the UART, one buffer-sized chunk at a time.
func (c *Console) Send(ctx context.Context, p []byte) error {
	for len(p) > 0 {
		loaded, err := c.client.Load(ctx, c.view.ID, p)
		if err != nil {
			return err
		}
		if loaded == 0 {
			return fmt.Errorf("session %s accepted no data", c.view.ID)
		}
		if err := c.client.Write(ctx, c.view.ID, loaded); err != nil {
			return err
		}
		p = p[loaded:]
	}
	return nil
}

// Drain copies all pending UART input to w and returns the byte count.
func (c *Console) Drain(ctx context.Context, w io.Writer) (int, error) {
	total := 0
	for {
		n, err := c.client.Read(ctx, c.view.ID, c.view.BufferSize)
		if err != nil || n == 0 {
			return total, err
		}
		data, err := c.client.Fetch(ctx, c.view.ID, n)
		if err != nil {
			return total, err
		}
		if _, err := w.Write(data); err != nil {
			return total, err
		}
		total += len(data)
	}
}

// Run pumps in to the UART and UART input to out until in yields
// EscapeByte or EOF, ctx is cancelled or the session goes away.
func (c *Console) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := c.client.Dial(ctx, c.view.ID)
	if err != nil {
		return err
	}
	defer conn.Close()

	errCh := make(chan error, 2)
	go func() { errCh <- c.pumpInput(ctx, in) }()
	go func() { errCh <- c.pumpOutput(ctx, conn, out) }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
	}
	cancel()
	conn.Close()
	return err
}

func (c *Console) pumpInput(ctx context.Context, in io.Reader) error {
	buf := make([]byte, c.view.BufferSize)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			i := bytes.IndexByte(chunk, EscapeByte)
			if i >= 0 {
				chunk = chunk[:i]
			}
			if sendErr := c.Send(ctx, chunk); sendErr != nil {
				return sendErr
			}
			if i >= 0 {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

type streamConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
}

func (c *Console) pumpOutput(ctx context.Context, conn streamConn, out io.Writer) error {
	for {
		var ev ws.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream: %w", err)
		}

		switch ev.Type {
		case ws.EventConnected, ws.EventReadAvail:
			if _, err := c.Drain(ctx, out); err != nil {
				return err
			}
			// re-arm: fires at once if input arrived while draining
			if err := conn.WriteJSON(ws.Message{Type: ws.MsgSubscribe}); err != nil {
				return fmt.Errorf("stream: %w", err)
			}
		case ws.EventClosed:
			return ErrSessionClosed
		case ws.EventError:
			c.logger.Warn("stream error", zap.String("message", ev.Message))
		}
	}
}

// Close closes the session on the server.
func (c *Console) Close(ctx context.Context) error {
	return c.client.CloseSession(ctx, c.view.ID)
}

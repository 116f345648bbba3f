package uart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// parkCursor sets the scroll region and moves the cursor far beyond any
	// real terminal so the reported position is clamped to the bottom-right.
	parkCursor = "\x1b[1;199r\x1b[199;255H"
	// queryCursor requests a cursor position report (ESC [ row ; col R).
	queryCursor = "\x1b[6n"

	// DefaultDetectTimeout bounds the whole handshake.
	DefaultDetectTimeout = 2 * time.Second
	// DefaultPollInterval is the fallback tick for drivers that never signal.
	DefaultPollInterval = 50 * time.Millisecond

	esc = 0x1b
)

// Size is a terminal size in character cells. The zero value means unknown.
type Size struct {
	Width  uint `json:"width"`
	Height uint `json:"height"`
}

// Known reports whether the size was detected.
func (s Size) Known() bool {
	return s.Width != 0 || s.Height != 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Detection outcomes, also used as metric labels.
const (
	DetectResultDetected  = "detected"
	DetectResultMalformed = "malformed"
	DetectResultTimeout   = "timeout"
)

// SizeDetector runs the cursor-position handshake over a Driver.
type SizeDetector struct {
	driver Driver
	wake   *signal
	poll   time.Duration
	logger *zap.Logger
}

// Detect parks the cursor, flushes pending input, queries the cursor position
// and parses the reply. Anything other than a complete ESC [ h ; w R reply,
// including expiry of ctx, yields the zero Size. The second return value is
// one of the DetectResult constants.
func (d *SizeDetector) Detect(ctx context.Context) (Size, string) {
	d.putString(parkCursor)

	for {
		if _, ok := d.driver.TryGetChar(); !ok {
			break
		}
	}

	d.putString(queryCursor)

	size, err := d.readReply(ctx)
	switch {
	case err == nil:
		d.logger.Info("detected terminal size",
			zap.Uint("width", size.Width),
			zap.Uint("height", size.Height))
		return size, DetectResultDetected
	case errors.Is(err, errMalformedReply):
		d.logger.Debug("terminal size detection failed", zap.Error(err))
		return Size{}, DetectResultMalformed
	default:
		d.logger.Debug("terminal size detection timed out", zap.Error(err))
		return Size{}, DetectResultTimeout
	}
}

var errMalformedReply = errors.New("malformed cursor position reply")

func (d *SizeDetector) readReply(ctx context.Context) (Size, error) {
	c, err := d.pollChar(ctx)
	if err != nil {
		return Size{}, err
	}
	if c != esc {
		return Size{}, fmt.Errorf("%w: got %q, want ESC", errMalformedReply, c)
	}

	if c, err = d.pollChar(ctx); err != nil {
		return Size{}, err
	}
	if c != '[' {
		return Size{}, fmt.Errorf("%w: got %q, want '['", errMalformedReply, c)
	}

	height, term, err := d.readNumber(ctx)
	if err != nil {
		return Size{}, err
	}
	if term != ';' {
		return Size{}, fmt.Errorf("%w: height terminated by %q", errMalformedReply, term)
	}

	width, term, err := d.readNumber(ctx)
	if err != nil {
		return Size{}, err
	}
	if term != 'R' {
		return Size{}, fmt.Errorf("%w: width terminated by %q", errMalformedReply, term)
	}

	return Size{Width: width, Height: height}, nil
}

// readNumber accumulates ASCII digits and returns the value together with
// the first non-digit byte.
func (d *SizeDetector) readNumber(ctx context.Context) (uint, byte, error) {
	var result uint
	for {
		c, err := d.pollChar(ctx)
		if err != nil {
			return 0, 0, err
		}
		if c < '0' || c > '9' {
			return result, c, nil
		}
		result = result*10 + uint(c-'0')
	}
}

// pollChar waits for one byte. The wake channel is captured before checking
// the driver so a notification between the check and the select is not lost.
func (d *SizeDetector) pollChar(ctx context.Context) (byte, error) {
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		wake := d.wake.C()
		if c, ok := d.driver.TryGetChar(); ok {
			return c, nil
		}

		if ticker == nil {
			ticker = time.NewTicker(d.poll)
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-wake:
		case <-ticker.C:
		}
	}
}

func (d *SizeDetector) putString(s string) {
	for i := 0; i < len(s); i++ {
		d.driver.PutChar(s[i])
	}
}

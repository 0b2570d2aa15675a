// Package abuse enforces the per-session size and rate limits applied to
// inbound messages before they reach a room.
package abuse

import (
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/benbjohnson/clock"
	"github.com/rejdeboer/collab-server/internal/configuration"
)

const (
	CodeMessageTooLarge = "message_too_large"
	CodeTooManyUpdates  = "too_many_updates"
	CodeContentTooLarge = "content_too_large"
)

// Violation is returned when a limit is exceeded. Fatal violations end the
// session; the others only reject the offending message.
type Violation struct {
	Code    string
	Message string
	Fatal   bool
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// Guard tracks the limits of one session. It is only used from the session's
// read loop and is not safe for concurrent use.
type Guard struct {
	limits      configuration.LimitSettings
	clock       clock.Clock
	windowStart time.Time
	count       int
}

func NewGuard(limits configuration.LimitSettings, clk clock.Clock) *Guard {
	return &Guard{
		limits:      limits,
		clock:       clk,
		windowStart: clk.Now(),
	}
}

// CheckMessage rejects raw frames above the message size ceiling.
func (g *Guard) CheckMessage(size int) error {
	if size > g.limits.MaxMessageBytes {
		return &Violation{
			Code:    CodeMessageTooLarge,
			Message: "message too large, connection closed",
			Fatal:   true,
		}
	}
	return nil
}

// AdmitUpdate counts an update attempt in the current window. The window
// restarts once it is older than the configured duration.
func (g *Guard) AdmitUpdate() error {
	now := g.clock.Now()
	if now.Sub(g.windowStart) > g.limits.UpdateWindow {
		g.windowStart = now
		g.count = 0
	}

	g.count++
	if g.count > g.limits.MaxUpdatesPerWindow {
		return &Violation{
			Code:    CodeTooManyUpdates,
			Message: "updates too frequent, connection closed",
			Fatal:   true,
		}
	}
	return nil
}

// CheckContent rejects document bodies longer than the content ceiling,
// measured in UTF-16 code units like a browser's string length.
func (g *Guard) CheckContent(content string) error {
	// no character takes more UTF-16 units than UTF-8 bytes
	if len(content) <= g.limits.MaxContentLength {
		return nil
	}
	if utf16Len(content) > g.limits.MaxContentLength {
		return &Violation{
			Code:    CodeContentTooLarge,
			Message: "content too long, rejected by server",
		}
	}
	return nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// WindowCount reports the number of updates counted in the current window.
func (g *Guard) WindowCount() int {
	return g.count
}

package websocket

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Context is the identity of one session, fixed at connect time.
type Context struct {
	Log       zerolog.Logger
	SessionID string
	RoomID    string
	Name      string
	Addr      string
}

func CreateContext(ctx context.Context, roomID string, name string, addr string) Context {
	sessionID := uuid.NewString()
	log := zerolog.Ctx(ctx).With().
		Str("room", roomID).
		Str("session_id", sessionID).
		Str("name", name).
		Logger()

	return Context{
		Log:       log,
		SessionID: sessionID,
		RoomID:    roomID,
		Name:      name,
		Addr:      addr,
	}
}

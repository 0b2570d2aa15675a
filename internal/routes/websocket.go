package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/rejdeboer/collab-server/internal/abuse"
	"github.com/rejdeboer/collab-server/internal/audit"
	"github.com/rejdeboer/collab-server/internal/auth"
	"github.com/rejdeboer/collab-server/internal/configuration"
	"github.com/rejdeboer/collab-server/internal/sync"
	"github.com/rejdeboer/collab-server/internal/websocket"
	"github.com/rejdeboer/collab-server/pkg/httperrors"
	"github.com/rs/zerolog"
)

const (
	CloseBadRequest  = 4000
	CloseBadPassword = 4001
)

const closeWait = time.Second

func (env *Env) handleWebSocket(settings configuration.Settings) http.HandlerFunc {
	upgrader := gwebsocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(settings.Application.AllowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := zerolog.Ctx(ctx)

		if !gwebsocket.IsWebSocketUpgrade(r) {
			httperrors.NotFound(w)
			return
		}

		query := r.URL.Query()
		roomID := strings.TrimSpace(query.Get("room"))
		password := strings.TrimSpace(query.Get("password"))
		name := strings.TrimSpace(query.Get("name"))
		if name == "" {
			name = settings.Application.DefaultName
		}
		addr := clientAddr(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade error")
			return
		}

		if roomID == "" || password == "" {
			env.rejectJoin(conn, roomID, addr, sync.CodeBadRequest, "room and password are required", CloseBadRequest, "room/password required")
			log.Warn().Str("addr", addr).Msg("join without room or password")
			return
		}

		client := websocket.NewClient(
			websocket.CreateContext(ctx, roomID, name, addr),
			conn,
			abuse.NewGuard(settings.Limits, env.Clock),
			settings.Limits.SendBuffer,
		)

		if _, err := env.Hub.Join(client, password); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				env.rejectJoin(conn, roomID, addr, sync.CodeBadPassword, "wrong room password", CloseBadPassword, "invalid password")
				client.Log.Warn().Msg("join with wrong password")
				return
			}

			client.Log.Error().Err(err).Msg("error joining room")
			conn.WriteControl(
				gwebsocket.CloseMessage,
				gwebsocket.FormatCloseMessage(gwebsocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(closeWait),
			)
			conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump(settings.Limits.MaxMessageBytes)
	}
}

// rejectJoin tells the client why it was refused and closes the connection
// with a code identifying the reason. No room state is touched.
func (env *Env) rejectJoin(conn *gwebsocket.Conn, roomID string, addr string, code string, message string, closeCode int, reason string) {
	defer conn.Close()

	env.Metrics.JoinsRejected.WithLabelValues(code).Inc()
	env.Audit.Publish(context.Background(), audit.Event{
		Kind: audit.KindJoinRejected,
		Room: roomID,
		Addr: addr,
		Code: code,
		Time: env.Clock.Now(),
	})

	conn.SetWriteDeadline(time.Now().Add(closeWait))
	if err := conn.WriteJSON(sync.NewError(code, message)); err != nil {
		return
	}
	conn.WriteMessage(gwebsocket.CloseMessage, gwebsocket.FormatCloseMessage(closeCode, reason))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

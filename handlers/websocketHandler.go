package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"cortexserver/duel"
	"cortexserver/middlewares"
	"cortexserver/models"
	"cortexserver/outbox"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	pingPeriod   = 10 * time.Second
	readDeadline = 60 * time.Second
)

// wsCommand is one inbound frame from the duel UI.
type wsCommand struct {
	Type     string `json:"type"` // create | join | resume | ready | reaction | rematch | leave
	RoomCode string `json:"roomCode,omitempty"`
	MatchID  uint   `json:"matchId,omitempty"` // for resume, e.g. after POST /duel/create
	Millis   int    `json:"millis,omitempty"`
}

// duelSession is the slice of duel.Session the command dispatcher needs.
type duelSession interface {
	CreateGame(ctx context.Context) (*models.Match, error)
	JoinGame(ctx context.Context, roomCode string) (*models.Match, error)
	Resume(ctx context.Context, matchID uint) (*models.Match, error)
	SetReady(ctx context.Context) error
	RecordReactionTime(ctx context.Context, millis int) error
	Rematch(ctx context.Context) error
}

// wsConn serializes writes; snapshots, errors and pings arrive from
// different goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// matchRef is the match this connection is bound to. Snapshots arrive on
// the reconciliation goroutine while the command loop reads, so access is
// guarded.
type matchRef struct {
	mu sync.Mutex
	id uint
}

// observe records the binding and reports whether it changed.
func (r *matchRef) observe(matchID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id == matchID {
		return false
	}
	r.id = matchID
	return true
}

func (r *matchRef) get() uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// HandleDuelWS upgrades the connection and runs one duel session for it.
// Commands come in as JSON frames; every reconciled match snapshot goes
// back out. The session is purely this client's view — the authoritative
// state lives in the store and reaches us through the feed.
func HandleDuelWS(ctx context.Context, c *gin.Context, db *gorm.DB, rdb *redis.Client, triggers *outbox.Service, logger *zap.Logger, upgrader websocket.Upgrader) {
	claims, err := middlewares.ParseClaims(middlewares.TokenFromRequest(c))
	if err != nil {
		logger.Error("Websocket auth failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	ws := &wsConn{conn: conn}
	bound := &matchRef{}

	store := duel.NewPostgresStore(db, rdb, logger)
	feed := duel.NewRedisFeed(rdb, logger)
	profiles := duel.NewGormProfileReader(db)
	session := duel.NewSession(claims.UserID, store, feed, profiles, clockwork.NewRealClock(), logger)

	// The reconnect handle is issued before any command can run, so the
	// OnChange refresh below always has a handle to rewrite.
	sessionID, err := duel.GenerateAndStoreSessionID(ctx, rdb, claims.UserID, 0, logger)
	if err == nil {
		_ = ws.writeJSON(gin.H{"type": "session", "sessionID": sessionID, "userID": claims.UserID})
	}

	session.OnChange = func(m models.Match) {
		if bound.observe(m.ID) && sessionID != "" {
			// Keep the reconnect handle pointing at the live match.
			_ = duel.StoreSessionID(ctx, rdb, sessionID, claims.UserID, m.ID, logger)
		}
		if m.Status == models.MatchFinished && m.WinnerID == claims.UserID {
			triggers.Fire(ctx, claims.UserID, outbox.TriggerFirstVictory)
		}
		frame := gin.H{"type": "match", "match": m}
		if opponent := session.Opponent(); opponent != nil {
			frame["opponent"] = opponent
		}
		if err := ws.writeJSON(frame); err != nil {
			logger.Error("Failed to send match snapshot", zap.Error(err))
		}
	}
	session.OnError = func(err error) {
		// Transport loss: the UI keeps its last snapshot and shows this.
		_ = ws.writeJSON(gin.H{"type": "error", "code": errorCode(err), "error": err.Error()})
	}

	// An old session ID lets a dropped client re-attach to its match.
	if restored := duel.ValidateSessionID(ctx, rdb, c.Request.Header.Get("SessionID"), logger); restored != nil {
		if restored.UserID == claims.UserID && restored.MatchID != 0 {
			if _, err := session.Resume(ctx, restored.MatchID); err != nil {
				logger.Warn("Failed to resume match", zap.Uint("matchID", restored.MatchID), zap.Error(err))
			}
		}
	}

	// Read-side liveness is set up here, on the goroutine that reads;
	// keepAlive only writes pings.
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	go keepAlive(conn, ws, claims.UserID, logger)

	defer func() {
		session.LeaveGame()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Info("Websocket closed", zap.Uint("UserID", claims.UserID), zap.Error(err))
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			_ = ws.writeJSON(gin.H{"type": "error", "code": "bad_request", "error": "undecodable command"})
			continue
		}

		if cmd.Type == "leave" {
			session.LeaveGame()
			_ = ws.writeJSON(gin.H{"type": "left"})
			continue
		}

		if err := dispatch(ctx, session, triggers, claims.UserID, cmd); err != nil {
			_ = ws.writeJSON(gin.H{"type": "error", "code": errorCode(err), "error": err.Error()})
		}
	}
}

func dispatch(ctx context.Context, session duelSession, triggers *outbox.Service, userID uint, cmd wsCommand) error {
	switch cmd.Type {
	case "create":
		if _, err := session.CreateGame(ctx); err != nil {
			return err
		}
		triggers.Fire(ctx, userID, outbox.TriggerFirstDuelCreated)
		return nil
	case "join":
		_, err := session.JoinGame(ctx, cmd.RoomCode)
		return err
	case "resume":
		// Attaches to a match this user already belongs to, e.g. one
		// opened over POST /duel/create.
		_, err := session.Resume(ctx, cmd.MatchID)
		return err
	case "ready":
		return session.SetReady(ctx)
	case "reaction":
		return session.RecordReactionTime(ctx, cmd.Millis)
	case "rematch":
		return session.Rematch(ctx)
	default:
		return errors.New("unknown command type")
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, duel.ErrAuthenticationRequired):
		return "authentication_required"
	case errors.Is(err, duel.ErrMatchNotFound):
		return "not_found"
	case errors.Is(err, duel.ErrSelfJoinForbidden):
		return "self_join_forbidden"
	case errors.Is(err, duel.ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, duel.ErrNoActiveMatch):
		return "no_active_match"
	case errors.Is(err, duel.ErrInvalidMeasurement):
		return "invalid_measurement"
	case errors.Is(err, duel.ErrRoomCodeTaken):
		return "room_code_collision"
	case errors.Is(err, duel.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}

func keepAlive(conn *websocket.Conn, ws *wsConn, userID uint, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := ws.ping(); err != nil {
			logger.Info("Ping failed, dropping client", zap.Uint("UserID", userID))
			conn.Close()
			return
		}
	}
}

package models

import (
	"github.com/gorilla/websocket"
)

// Client is one websocket connection bound to an authenticated user.
// MatchID is 0 until the client creates, joins or resumes a duel.
type Client struct {
	Conn    *websocket.Conn
	UserID  uint
	MatchID uint
}

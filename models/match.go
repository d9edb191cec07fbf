package models

import (
	"gorm.io/gorm"
)

// Match status values. Transitions are monotonic within one epoch
// (waiting -> ready -> started -> finished); a rematch returns the row to
// "ready" with both player slots still bound. "expired" is only ever set
// by the cleanup job, never by a player.
const (
	MatchWaiting  = "waiting"
	MatchReady    = "ready"
	MatchStarted  = "started"
	MatchFinished = "finished"
	MatchExpired  = "expired"
)

// Match is the authoritative row for one reaction duel. Both clients
// converge on this record through the change feed; cross-player decisions
// are never made from a local optimistic copy.
//
// Field ownership: player1_* columns are written only on behalf of player 1
// and player2_* columns only on behalf of player 2. The derived columns
// (status, start_timestamp, winner_id) may be written by either side, but
// only through guarded updates that compute the same result no matter who
// lands first.
type Match struct {
	gorm.Model
	RoomCode          string `gorm:"uniqueIndex;not null" json:"roomCode"`
	Player1ID         uint   `gorm:"not null;index" json:"player1Id"`
	Player2ID         uint   `gorm:"index" json:"player2Id"` // 0 until someone joins
	Player1Ready      bool   `json:"player1Ready"`
	Player2Ready      bool   `json:"player2Ready"`
	Player1ReactionMs int    `json:"player1ReactionMs"` // 0 = not recorded this epoch
	Player2ReactionMs int    `json:"player2ReactionMs"`
	Status            string `gorm:"not null;default:'waiting';index" json:"status"`
	StartTimestamp    int64  `json:"startTimestamp"` // go-signal instant, unix millis, 0 until started
	WinnerID          uint   `json:"winnerId"`       // 0 until finished
}

// Slot returns 1 or 2 for a participant and 0 for anyone else.
func (m *Match) Slot(userID uint) int {
	switch {
	case userID != 0 && userID == m.Player1ID:
		return 1
	case userID != 0 && userID == m.Player2ID:
		return 2
	default:
		return 0
	}
}

func (m *Match) IsParticipant(userID uint) bool {
	return m.Slot(userID) != 0
}

// OpponentID returns the other player's ID, or 0 if nobody joined yet or
// the given user is not a participant.
func (m *Match) OpponentID(userID uint) uint {
	switch m.Slot(userID) {
	case 1:
		return m.Player2ID
	case 2:
		return m.Player1ID
	default:
		return 0
	}
}

func (m *Match) BothReady() bool {
	return m.Player1Ready && m.Player2Ready
}

func (m *Match) BothRecorded() bool {
	return m.Player1ReactionMs > 0 && m.Player2ReactionMs > 0
}

// ReactionOf returns the recorded measurement for a slot, 0 if unset.
func (m *Match) ReactionOf(slot int) int {
	if slot == 1 {
		return m.Player1ReactionMs
	}
	if slot == 2 {
		return m.Player2ReactionMs
	}
	return 0
}

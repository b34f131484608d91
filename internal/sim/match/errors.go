package match

import "github.com/rotisserie/eris"

// Message keys sent to players. The host localizes them.
const (
	KeyAlreadyJoined = "join.already-joined"
	KeyInOtherMatch  = "join.in-other-match"
	KeyNotJoinable   = "join.not-joinable"
	KeyFull          = "join.full"
	KeyJoinFailed    = "join.failed"
	KeyEvicted       = "match.evicted"
	KeyNotInMatch    = "match.not-in-match"
	KeyNotLobby      = "ready.not-lobby"

	MsgJoined     = "match.joined"
	MsgLeft       = "match.left"
	MsgStarted    = "match.started"
	MsgEliminated = "match.eliminated"
	MsgWinner     = "match.winner"
	MsgDraw       = "match.draw"
	MsgCountdown  = "lobby.countdown"
)

var (
	ErrArenaBusy      = eris.New("arena already has a match")
	ErrDuplicateMatch = eris.New("match id already registered")
	ErrIncomplete     = eris.New("arena is not complete")
)

// RuleError is a rejected player action. Key is the message the player was
// sent; Err, when set, is the underlying failure.
type RuleError struct {
	Key string
	Err error
}

func (e *RuleError) Error() string {
	if e.Err != nil {
		return e.Key + ": " + e.Err.Error()
	}
	return e.Key
}

func (e *RuleError) Unwrap() error { return e.Err }

func rule(key string) *RuleError { return &RuleError{Key: key} }

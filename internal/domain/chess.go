package domain

import "time"

// OpponentType tells whether a game is played against the built-in bot
// or another student.
type OpponentType string

const (
	OpponentBot     OpponentType = "BOT"
	OpponentStudent OpponentType = "STUDENT"
)

// BotLevel selects the bot difficulty tier.
type BotLevel string

const (
	BotEasy   BotLevel = "easy"
	BotMedium BotLevel = "medium"
	BotHard   BotLevel = "hard"
)

func (l BotLevel) Valid() bool {
	switch l {
	case BotEasy, BotMedium, BotHard:
		return true
	}
	return false
}

// GameStatus is the lifecycle state of a game record.
type GameStatus string

const (
	GameInProgress GameStatus = "IN_PROGRESS"
	GameFinished   GameStatus = "FINISHED"
	GameAbandoned  GameStatus = "ABANDONED"
)

// Result is a game outcome from one participant's perspective.
type Result string

const (
	ResultWin  Result = "WIN"
	ResultLose Result = "LOSE"
	ResultDraw Result = "DRAW"
)

func (r Result) Valid() bool {
	switch r {
	case ResultWin, ResultLose, ResultDraw:
		return true
	}
	return false
}

// Invert flips a result to the other participant's perspective.
func (r Result) Invert() Result {
	switch r {
	case ResultWin:
		return ResultLose
	case ResultLose:
		return ResultWin
	default:
		return r
	}
}

// InviteStatus is the lifecycle state of a PvP invite.
type InviteStatus string

const (
	InvitePending   InviteStatus = "PENDING"
	InviteAccepted  InviteStatus = "ACCEPTED"
	InviteDeclined  InviteStatus = "DECLINED"
	InviteExpired   InviteStatus = "EXPIRED"
	InviteCancelled InviteStatus = "CANCELLED"
)

// ArchivedGame is a finished game row in the Postgres archive.
type ArchivedGame struct {
	GameID        string
	PlayerID      string
	OpponentType  OpponentType
	BotLevel      BotLevel
	OpponentID    string
	WhitePlayerID string
	Status        GameStatus
	Result        Result
	CoinsEarned   int
	PositionText  string
	MoveCount     int
	StartedAt     time.Time
	FinishedAt    time.Time
	Duration      time.Duration
}

// PlayerStats aggregates a player's finished games.
type PlayerStats struct {
	TotalGames       int
	Wins             int
	Losses           int
	Draws            int
	TotalCoinsEarned int
	BotGames         int
	PvPGames         int
}

// Student is a directory entry eligible for PvP invites.
type Student struct {
	ID           string
	Username     string
	LastActiveAt time.Time
}

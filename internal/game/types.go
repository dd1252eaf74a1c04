package game

import (
	"strings"
	"time"

	"github.com/marsdevs/chess-arena/internal/domain"
	"github.com/marsdevs/chess-arena/internal/rules"
)

// Record is the live game blob stored in Redis. Result and CoinsEarned
// are stored from the owner's (PlayerID) perspective; reads map them to
// the viewer on the way out.
type Record struct {
	ID            string              `json:"id"`
	PlayerID      string              `json:"player_id"`
	OpponentType  domain.OpponentType `json:"opponent_type"`
	BotLevel      domain.BotLevel     `json:"bot_level,omitempty"`
	OpponentID    string              `json:"opponent_id,omitempty"`
	Status        domain.GameStatus   `json:"status"`
	Result        domain.Result       `json:"result,omitempty"`
	CoinsEarned   int                 `json:"coins_earned"`
	PositionText  string              `json:"position_text"`
	WhitePlayerID string              `json:"white_player_id"`
	LastMove      string              `json:"last_move,omitempty"`
	MoveCount     int                 `json:"move_count"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (g *Record) participant(userID string) bool {
	if userID == "" {
		return false
	}
	return g.PlayerID == userID || (g.OpponentType == domain.OpponentStudent && g.OpponentID == userID)
}

func (g *Record) colorOf(userID string) rules.Color {
	if g.WhitePlayerID == userID {
		return rules.White
	}
	return rules.Black
}

func (g *Record) opponentOf(userID string) string {
	if g.OpponentType != domain.OpponentStudent {
		return ""
	}
	if g.PlayerID == userID {
		return g.OpponentID
	}
	return g.PlayerID
}

// resultFor maps the stored owner-perspective result to a viewer.
func (g *Record) resultFor(userID string) domain.Result {
	if g.Result == "" || g.PlayerID == userID {
		return g.Result
	}
	return g.Result.Invert()
}

// coinsFor returns the viewer's payout. Only the owner's share is
// stored; the opponent's share is re-derived from the same table.
func (g *Record) coinsFor(userID string) int {
	if g.PlayerID == userID {
		return g.CoinsEarned
	}
	if g.Status != domain.GameFinished {
		return 0
	}
	return Payout(g.OpponentType, g.BotLevel, g.resultFor(userID))
}

// sideToMove reads the active color straight from the position text;
// good enough for presentation without a full decode.
func (g *Record) sideToMove() rules.Color {
	fields := strings.Fields(g.PositionText)
	if len(fields) > 1 && fields[1] == "b" {
		return rules.Black
	}
	return rules.White
}

// View is a game as one participant sees it.
type View struct {
	ID           string
	OpponentType domain.OpponentType
	BotLevel     domain.BotLevel
	Opponent     string
	Status       domain.GameStatus
	PositionText string
	LastMove     string
	MoveCount    int
	PlayerColor  rules.Color
	YourTurn     bool
	YourResult   domain.Result
	YourCoins    int
	StartedAt    time.Time
	FinishedAt   *time.Time
	UpdatedAt    time.Time
}

func (g *Record) viewFor(userID string) *View {
	color := g.colorOf(userID)
	return &View{
		ID:           g.ID,
		OpponentType: g.OpponentType,
		BotLevel:     g.BotLevel,
		Opponent:     g.opponentOf(userID),
		Status:       g.Status,
		PositionText: g.PositionText,
		LastMove:     g.LastMove,
		MoveCount:    g.MoveCount,
		PlayerColor:  color,
		YourTurn:     g.Status == domain.GameInProgress && g.sideToMove() == color,
		YourResult:   g.resultFor(userID),
		YourCoins:    g.coinsFor(userID),
		StartedAt:    g.StartedAt,
		FinishedAt:   g.FinishedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

// Summary is the my-games read model: live games plus the archived
// tail and aggregate stats.
type Summary struct {
	Active []*View
	Recent []domain.ArchivedGame
	Stats  domain.PlayerStats
}

package game

import (
	"github.com/marsdevs/chess-arena/internal/domain"
)

// SourceChess tags every ledger credit issued by the arena.
const SourceChess = "CHESS"

// Payout is the coin award for one participant. Bot games scale with
// difficulty; PvP pays a flat 50/20/0. Losing always pays nothing.
func Payout(opp domain.OpponentType, level domain.BotLevel, result domain.Result) int {
	if opp == domain.OpponentStudent {
		switch result {
		case domain.ResultWin:
			return 50
		case domain.ResultDraw:
			return 20
		}
		return 0
	}
	switch level {
	case domain.BotEasy:
		switch result {
		case domain.ResultWin:
			return 45
		case domain.ResultDraw:
			return 10
		}
	case domain.BotMedium:
		switch result {
		case domain.ResultWin:
			return 75
		case domain.ResultDraw:
			return 20
		}
	case domain.BotHard:
		switch result {
		case domain.ResultWin:
			return 100
		case domain.ResultDraw:
			return 30
		}
	}
	return 0
}

// Credit is one ledger posting produced by a terminal game.
type Credit struct {
	UserID string
	Amount int
	Reason string
}

// settlementCredits lists every positive payout a terminal record owes.
// Abandoned games award nothing; a PvP draw pays both sides.
func settlementCredits(g *Record) []Credit {
	if g.Status != domain.GameFinished {
		return nil
	}
	var credits []Credit
	for _, userID := range participants(g) {
		result := g.resultFor(userID)
		amount := Payout(g.OpponentType, g.BotLevel, result)
		if amount <= 0 {
			continue
		}
		credits = append(credits, Credit{
			UserID: userID,
			Amount: amount,
			Reason: creditReason(result),
		})
	}
	return credits
}

func creditReason(result domain.Result) string {
	if result == domain.ResultDraw {
		return "Chess draw"
	}
	return "Chess victory"
}

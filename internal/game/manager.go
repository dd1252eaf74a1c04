// Package game runs the session lifecycle: starting games, applying
// moves (with inline bot replies), resolving terminal positions and
// settling rewards exactly once.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/marsdevs/chess-arena/internal/bot"
	"github.com/marsdevs/chess-arena/internal/domain"
	"github.com/marsdevs/chess-arena/internal/obslog"
	"github.com/marsdevs/chess-arena/internal/rules"
	"github.com/marsdevs/chess-arena/internal/wallet"
)

var (
	ErrGameNotFound            = errors.New("game not found")
	ErrGameAlreadyFinished     = errors.New("game already finished")
	ErrNotYourTurn             = errors.New("not your turn")
	ErrNotInGame               = errors.New("player not in game")
	ErrInvalidOpponentConfig   = errors.New("invalid opponent configuration")
	ErrInconsistentResultClaim = errors.New("claimed result does not match position")
)

const (
	maxTxRetries     = 3
	recentGamesLimit = 10
)

// Archiver persists terminal games and serves the my-games read side.
type Archiver interface {
	SaveFinished(ctx context.Context, g *domain.ArchivedGame) error
	RecentByUser(ctx context.Context, userID string, limit int) ([]domain.ArchivedGame, error)
	StatsByUser(ctx context.Context, userID string) (domain.PlayerStats, error)
}

// Manager owns live game records. Every mutation runs inside a Redis
// WATCH transaction on the game key and revalidates against the fresh
// read, so a conflicting writer forces a retry and the losing racer
// ends up with the domain error instead of a silent overwrite.
type Manager struct {
	store   *Store
	bots    *bot.Selector
	ledger  wallet.Ledger
	archive Archiver
	now     func() time.Time
}

func NewManager(store *Store, bots *bot.Selector, ledger wallet.Ledger) *Manager {
	return &Manager{store: store, bots: bots, ledger: ledger, now: time.Now}
}

// AttachArchive wires the finished-game repository.
func (m *Manager) AttachArchive(a Archiver) {
	if m != nil {
		m.archive = a
	}
}

// Start opens a new game with the caller as White.
func (m *Manager) Start(ctx context.Context, playerID string, opp domain.OpponentType, level domain.BotLevel, opponentID string) (*View, error) {
	playerID = strings.TrimSpace(playerID)
	opponentID = strings.TrimSpace(opponentID)
	if playerID == "" {
		return nil, fmt.Errorf("player id required")
	}
	switch opp {
	case domain.OpponentBot:
		if !level.Valid() || opponentID != "" {
			return nil, ErrInvalidOpponentConfig
		}
	case domain.OpponentStudent:
		if opponentID == "" || opponentID == playerID || level != "" {
			return nil, ErrInvalidOpponentConfig
		}
	default:
		return nil, ErrInvalidOpponentConfig
	}

	now := m.now()
	g := &Record{
		ID:            uuid.NewString(),
		PlayerID:      playerID,
		OpponentType:  opp,
		BotLevel:      level,
		OpponentID:    opponentID,
		Status:        domain.GameInProgress,
		PositionText:  rules.StartingPositionText,
		WhitePlayerID: playerID,
		StartedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.store.save(ctx, g); err != nil {
		return nil, err
	}
	if err := m.store.indexParticipants(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("game_start",
		zap.String("game_id", g.ID),
		zap.String("player_id", g.PlayerID),
		zap.String("opponent_type", string(g.OpponentType)),
		zap.String("bot_level", string(g.BotLevel)),
		zap.String("opponent_id", g.OpponentID),
	)
	return g.viewFor(playerID), nil
}

// NewPvPRecord builds the game record materialized by an accepted
// invite. The inviter owns the record and plays White.
func (m *Manager) NewPvPRecord(fromID, toID string) *Record {
	now := m.now()
	return &Record{
		ID:            uuid.NewString(),
		PlayerID:      strings.TrimSpace(fromID),
		OpponentType:  domain.OpponentStudent,
		OpponentID:    strings.TrimSpace(toID),
		Status:        domain.GameInProgress,
		PositionText:  rules.StartingPositionText,
		WhitePlayerID: strings.TrimSpace(fromID),
		StartedAt:     now,
		UpdatedAt:     now,
	}
}

// WriteRecordInPipe queues a full record write on an open pipeline so
// the invite coordinator can commit invite and game atomically.
func (m *Manager) WriteRecordInPipe(ctx context.Context, pipe redis.Pipeliner, g *Record) error {
	return writeInPipe(ctx, pipe, g)
}

// Move applies the caller's move; against a bot the reply (and its
// terminal re-check) is computed inside the same transaction.
func (m *Manager) Move(ctx context.Context, gameID, playerID, moveText string) (*View, error) {
	playerID = strings.TrimSpace(playerID)
	rec, err := m.update(ctx, gameID, func(cur *Record) error {
		if !cur.participant(playerID) {
			return ErrNotInGame
		}
		if cur.Status != domain.GameInProgress {
			return ErrGameAlreadyFinished
		}
		pos, err := rules.Decode(cur.PositionText)
		if err != nil {
			return fmt.Errorf("game %s: %w", cur.ID, err)
		}
		if cur.colorOf(playerID) != pos.Turn() {
			return ErrNotYourTurn
		}
		next, mv, err := pos.ApplyText(moveText)
		if err != nil {
			return err
		}
		m.applyMove(cur, next, mv)

		if cur.Status == domain.GameInProgress && cur.OpponentType == domain.OpponentBot {
			reply, err := m.bots.Select(next, cur.BotLevel)
			if err != nil {
				return fmt.Errorf("bot reply in game %s: %w", cur.ID, err)
			}
			after, err := next.Apply(reply)
			if err != nil {
				return fmt.Errorf("bot reply in game %s: %w", cur.ID, err)
			}
			m.applyMove(cur, after, reply)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("game_move",
		zap.String("game_id", rec.ID),
		zap.String("player_id", playerID),
		zap.String("last_uci", rec.LastMove),
		zap.Int("move_count", rec.MoveCount),
		zap.String("status", string(rec.Status)),
	)
	if rec.Status != domain.GameInProgress {
		m.settle(ctx, rec)
	}
	return rec.viewFor(playerID), nil
}

// Finish closes a game on a client-claimed result, but only after the
// rules engine agrees: the verdict is re-derived from the persisted
// position and any disagreement (including a non-terminal position)
// fails with ErrInconsistentResultClaim.
func (m *Manager) Finish(ctx context.Context, gameID, playerID string, claimed domain.Result) (*View, error) {
	playerID = strings.TrimSpace(playerID)
	if !claimed.Valid() {
		return nil, ErrInconsistentResultClaim
	}
	rec, err := m.update(ctx, gameID, func(cur *Record) error {
		if !cur.participant(playerID) {
			return ErrNotInGame
		}
		if cur.Status != domain.GameInProgress {
			return ErrGameAlreadyFinished
		}
		pos, err := rules.Decode(cur.PositionText)
		if err != nil {
			return fmt.Errorf("game %s: %w", cur.ID, err)
		}
		m.resolveTerminal(cur, pos)
		if cur.Status != domain.GameFinished {
			return ErrInconsistentResultClaim
		}
		if cur.resultFor(playerID) != claimed {
			return ErrInconsistentResultClaim
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("game_finish",
		zap.String("game_id", rec.ID),
		zap.String("player_id", playerID),
		zap.String("result", string(rec.Result)),
	)
	m.settle(ctx, rec)
	return rec.viewFor(playerID), nil
}

// Abandon forfeits a live game. The abandoner takes the loss and
// nobody is paid.
func (m *Manager) Abandon(ctx context.Context, gameID, playerID string) (*View, error) {
	playerID = strings.TrimSpace(playerID)
	rec, err := m.update(ctx, gameID, func(cur *Record) error {
		if !cur.participant(playerID) {
			return ErrNotInGame
		}
		if cur.Status != domain.GameInProgress {
			return ErrGameAlreadyFinished
		}
		now := m.now()
		cur.Status = domain.GameAbandoned
		if cur.PlayerID == playerID {
			cur.Result = domain.ResultLose
		} else {
			cur.Result = domain.ResultWin
		}
		cur.CoinsEarned = 0
		cur.FinishedAt = &now
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("game_abandon",
		zap.String("game_id", rec.ID),
		zap.String("player_id", playerID),
	)
	m.settle(ctx, rec)
	return rec.viewFor(playerID), nil
}

// Game returns one game as seen by a participant.
func (m *Manager) Game(ctx context.Context, gameID, viewerID string) (*View, error) {
	g, err := m.store.get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	if !g.participant(strings.TrimSpace(viewerID)) {
		return nil, ErrNotInGame
	}
	return g.viewFor(viewerID), nil
}

// MyGames lists the viewer's live games plus the archived tail and
// aggregate stats.
func (m *Manager) MyGames(ctx context.Context, viewerID string) (*Summary, error) {
	viewerID = strings.TrimSpace(viewerID)
	records, err := m.store.gamesByUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{}
	for _, g := range records {
		if g.Status != domain.GameInProgress {
			continue
		}
		sum.Active = append(sum.Active, g.viewFor(viewerID))
	}
	if m.archive != nil {
		recent, err := m.archive.RecentByUser(ctx, viewerID, recentGamesLimit)
		if err != nil {
			return nil, err
		}
		sum.Recent = recent
		stats, err := m.archive.StatsByUser(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		sum.Stats = stats
	}
	return sum, nil
}

// update runs mutate inside a WATCH transaction on the game key. A
// WATCH conflict re-reads and re-runs mutate, so validation always
// sees the winner's write; any error from mutate aborts with no
// partial mutation.
func (m *Manager) update(ctx context.Context, gameID string, mutate func(cur *Record) error) (*Record, error) {
	key := gameKey(gameID)
	var out *Record
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := m.store.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return ErrGameNotFound
			}
			if err != nil {
				return err
			}
			var cur Record
			if jerr := json.Unmarshal(raw, &cur); jerr != nil {
				return jerr
			}
			if err := mutate(&cur); err != nil {
				return err
			}
			pipe := tx.TxPipeline()
			if err := writeInPipe(ctx, pipe, &cur); err != nil {
				return err
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			out = &cur
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("game %s: too many concurrent updates", gameID)
}

func (m *Manager) applyMove(cur *Record, next *rules.Position, mv rules.Move) {
	cur.PositionText = next.Encode()
	cur.LastMove = mv.UCI()
	cur.MoveCount++
	cur.UpdatedAt = m.now()
	m.resolveTerminal(cur, next)
}

// resolveTerminal flips the record to FINISHED when the position is
// over, fixing result, payout and finish time in the same mutation.
func (m *Manager) resolveTerminal(cur *Record, pos *rules.Position) {
	var result domain.Result
	switch {
	case pos.IsCheckmate():
		winner := pos.Turn().Other()
		if cur.colorOf(cur.PlayerID) == winner {
			result = domain.ResultWin
		} else {
			result = domain.ResultLose
		}
	case pos.IsStalemate(), pos.IsDrawByRule():
		result = domain.ResultDraw
	default:
		return
	}
	now := m.now()
	cur.Status = domain.GameFinished
	cur.Result = result
	cur.CoinsEarned = Payout(cur.OpponentType, cur.BotLevel, result)
	cur.FinishedAt = &now
	cur.UpdatedAt = now
}

// settle runs once per game, after the terminal write is durable: the
// status guard inside the transaction means only the caller that
// performed the transition gets here.
func (m *Manager) settle(ctx context.Context, g *Record) {
	if m.ledger != nil {
		for _, c := range settlementCredits(g) {
			if _, err := m.ledger.Credit(ctx, c.UserID, c.Amount, c.Reason, SourceChess); err != nil {
				obslog.L().Error("game_settle_credit_error",
					zap.String("game_id", g.ID),
					zap.String("user_id", c.UserID),
					zap.Int("amount", c.Amount),
					zap.Error(err),
				)
			}
		}
	}
	if m.archive != nil {
		if err := m.archive.SaveFinished(ctx, archivedFrom(g)); err != nil {
			obslog.L().Error("game_archive_error", zap.String("game_id", g.ID), zap.Error(err))
		}
	}
	obslog.L().Info("game_settle",
		zap.String("game_id", g.ID),
		zap.String("status", string(g.Status)),
		zap.String("result", string(g.Result)),
		zap.Int("coins_earned", g.CoinsEarned),
	)
}

func archivedFrom(g *Record) *domain.ArchivedGame {
	finished := g.UpdatedAt
	if g.FinishedAt != nil {
		finished = *g.FinishedAt
	}
	return &domain.ArchivedGame{
		GameID:        g.ID,
		PlayerID:      g.PlayerID,
		OpponentType:  g.OpponentType,
		BotLevel:      g.BotLevel,
		OpponentID:    g.OpponentID,
		WhitePlayerID: g.WhitePlayerID,
		Status:        g.Status,
		Result:        g.Result,
		CoinsEarned:   g.CoinsEarned,
		PositionText:  g.PositionText,
		MoveCount:     g.MoveCount,
		StartedAt:     g.StartedAt,
		FinishedAt:    finished,
		Duration:      finished.Sub(g.StartedAt),
	}
}

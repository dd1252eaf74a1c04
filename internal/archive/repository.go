// Package archive persists terminal games to Postgres and serves the
// per-player history and aggregate stats.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/marsdevs/chess-arena/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// DB exposes the pool so sibling adapters can share the connection.
func (r *Repository) DB() *sql.DB { return r.db }

// SaveFinished upserts a terminal game. Settlement may retry after a
// transient failure, so the write is idempotent on game_id.
func (r *Repository) SaveFinished(ctx context.Context, g *domain.ArchivedGame) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	q := `INSERT INTO chess_games (
	    game_id, player_id, opponent_type, bot_level, opponent_id,
	    white_player_id, status, result, coins_earned, position_text,
	    move_count, started_at, finished_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    status=EXCLUDED.status,
	    result=EXCLUDED.result,
	    coins_earned=EXCLUDED.coins_earned,
	    position_text=EXCLUDED.position_text,
	    move_count=EXCLUDED.move_count,
	    finished_at=EXCLUDED.finished_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		g.GameID, g.PlayerID, string(g.OpponentType), string(g.BotLevel), nullIfEmpty(g.OpponentID),
		g.WhitePlayerID, string(g.Status), string(g.Result), g.CoinsEarned, g.PositionText,
		g.MoveCount, g.StartedAt, g.FinishedAt, g.Duration.Milliseconds(),
	)
	return err
}

// RecentByUser lists the user's archived games, newest first. The user
// may appear on either side of a PvP record.
func (r *Repository) RecentByUser(ctx context.Context, userID string, limit int) ([]domain.ArchivedGame, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT game_id, player_id, opponent_type, bot_level, opponent_id,
	         white_player_id, status, result, coins_earned, position_text,
	         move_count, started_at, finished_at, duration_ms
	      FROM chess_games
	      WHERE player_id = $1 OR opponent_id = $1
	      ORDER BY finished_at DESC
	      LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ArchivedGame
	for rows.Next() {
		var g domain.ArchivedGame
		var botLevel, result sql.NullString
		var opponentID sql.NullString
		var durationMs int64
		err := rows.Scan(
			&g.GameID, &g.PlayerID, &g.OpponentType, &botLevel, &opponentID,
			&g.WhitePlayerID, &g.Status, &result, &g.CoinsEarned, &g.PositionText,
			&g.MoveCount, &g.StartedAt, &g.FinishedAt, &durationMs,
		)
		if err != nil {
			return nil, err
		}
		g.BotLevel = domain.BotLevel(botLevel.String)
		g.Result = domain.Result(result.String)
		g.OpponentID = opponentID.String
		g.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, g)
	}
	return out, rows.Err()
}

// StatsByUser aggregates finished games for the my-games block. The
// stored result is owner-perspective, so games where the user is the
// opponent count with the result inverted and their coin share mirrors
// the flat PvP payout; abandoned games are not counted.
func (r *Repository) StatsByUser(ctx context.Context, userID string) (domain.PlayerStats, error) {
	var stats domain.PlayerStats
	q := `SELECT
	    COUNT(*),
	    COUNT(*) FILTER (WHERE (player_id = $1 AND result = 'WIN') OR (opponent_id = $1 AND result = 'LOSE')),
	    COUNT(*) FILTER (WHERE (player_id = $1 AND result = 'LOSE') OR (opponent_id = $1 AND result = 'WIN')),
	    COUNT(*) FILTER (WHERE result = 'DRAW'),
	    COALESCE(SUM(coins_earned) FILTER (WHERE player_id = $1), 0)
	      + COALESCE(SUM(CASE WHEN result = 'LOSE' THEN 50 WHEN result = 'DRAW' THEN 20 ELSE 0 END)
	          FILTER (WHERE opponent_id = $1), 0),
	    COUNT(*) FILTER (WHERE opponent_type = 'BOT'),
	    COUNT(*) FILTER (WHERE opponent_type = 'STUDENT')
	  FROM chess_games
	  WHERE (player_id = $1 OR opponent_id = $1) AND status = 'FINISHED'`
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&stats.TotalGames, &stats.Wins, &stats.Losses, &stats.Draws,
		&stats.TotalCoinsEarned, &stats.BotGames, &stats.PvPGames,
	)
	if err != nil {
		return domain.PlayerStats{}, err
	}
	return stats, nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

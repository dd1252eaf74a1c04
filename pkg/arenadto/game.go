// Package arenadto holds the JSON transport types of the arena API.
package arenadto

import "time"

type StartGameRequest struct {
	OpponentType string `json:"opponent_type"`
	BotLevel     string `json:"bot_level,omitempty"`
	OpponentID   string `json:"opponent_id,omitempty"`
}

type MoveRequest struct {
	GameID string `json:"game_id"`
	Move   string `json:"move"`
}

type FinishGameRequest struct {
	GameID string `json:"game_id"`
	Result string `json:"result"`
}

type AbandonGameRequest struct {
	GameID string `json:"game_id"`
}

// GameView is a game from the requesting player's perspective.
type GameView struct {
	ID           string     `json:"id"`
	OpponentType string     `json:"opponent_type"`
	BotLevel     string     `json:"bot_level,omitempty"`
	Opponent     string     `json:"opponent,omitempty"`
	Status       string     `json:"status"`
	Position     string     `json:"position"`
	LastMove     string     `json:"last_move,omitempty"`
	MoveCount    int        `json:"move_count"`
	PlayerColor  string     `json:"player_color"`
	YourTurn     bool       `json:"your_turn"`
	Result       string     `json:"result,omitempty"`
	CoinsEarned  int        `json:"coins_earned"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Message      string     `json:"message,omitempty"`
}

type GameResponse struct {
	Game *GameView `json:"game"`
}

// ArchivedGameView is one row of the my-games history block.
type ArchivedGameView struct {
	ID           string    `json:"id"`
	OpponentType string    `json:"opponent_type"`
	BotLevel     string    `json:"bot_level,omitempty"`
	Opponent     string    `json:"opponent,omitempty"`
	Status       string    `json:"status"`
	Result       string    `json:"result,omitempty"`
	CoinsEarned  int       `json:"coins_earned"`
	MoveCount    int       `json:"move_count"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationSec  int       `json:"duration_sec"`
}

type PlayerStatsView struct {
	TotalGames       int `json:"total_games"`
	Wins             int `json:"wins"`
	Losses           int `json:"losses"`
	Draws            int `json:"draws"`
	TotalCoinsEarned int `json:"total_coins_earned"`
	BotGames         int `json:"bot_games"`
	PvPGames         int `json:"pvp_games"`
}

type MyGamesResponse struct {
	Active []*GameView        `json:"active"`
	Recent []ArchivedGameView `json:"recent"`
	Stats  PlayerStatsView    `json:"stats"`
}

type StudentView struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type OnlineStudentsResponse struct {
	Students []StudentView `json:"students"`
}

package httpapi

import (
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/marsdevs/chess-arena/internal/domain"
	"github.com/marsdevs/chess-arena/internal/game"
	"github.com/marsdevs/chess-arena/internal/invite"
	"github.com/marsdevs/chess-arena/internal/obslog"
	"github.com/marsdevs/chess-arena/internal/rules"
	"github.com/marsdevs/chess-arena/pkg/arenadto"
)

// errorMapping pins each domain sentinel to a transport status, stable
// code and catalog message key.
type errorMapping struct {
	status  int
	code    string
	message string
}

var errorMappings = []struct {
	err error
	out errorMapping
}{
	{game.ErrGameNotFound, errorMapping{fasthttp.StatusNotFound, arenadto.CodeGameNotFound, "error.game_not_found"}},
	{game.ErrGameAlreadyFinished, errorMapping{fasthttp.StatusConflict, arenadto.CodeGameAlreadyFinished, "error.game_already_finished"}},
	{game.ErrNotYourTurn, errorMapping{fasthttp.StatusConflict, arenadto.CodeNotYourTurn, "error.not_your_turn"}},
	{game.ErrInvalidOpponentConfig, errorMapping{fasthttp.StatusBadRequest, arenadto.CodeInvalidOpponentConfig, "error.invalid_opponent_config"}},
	{game.ErrInconsistentResultClaim, errorMapping{fasthttp.StatusConflict, arenadto.CodeInconsistentResultClaim, "error.inconsistent_result_claim"}},
	{game.ErrNotInGame, errorMapping{fasthttp.StatusForbidden, arenadto.CodeNotInGame, "error.not_in_game"}},
	{rules.ErrInvalidMove, errorMapping{fasthttp.StatusBadRequest, arenadto.CodeInvalidMove, "error.invalid_move"}},
	{rules.ErrMalformedPosition, errorMapping{fasthttp.StatusInternalServerError, arenadto.CodeMalformedPosition, "error.malformed_position"}},
	{invite.ErrSelfInvite, errorMapping{fasthttp.StatusBadRequest, arenadto.CodeSelfInvite, "error.self_invite"}},
	{invite.ErrDuplicatePendingInvite, errorMapping{fasthttp.StatusConflict, arenadto.CodeDuplicatePendingInvite, "error.duplicate_pending_invite"}},
	{invite.ErrInviteNotFound, errorMapping{fasthttp.StatusNotFound, arenadto.CodeInviteNotFound, "error.invite_not_found"}},
	{invite.ErrInviteNotPending, errorMapping{fasthttp.StatusConflict, arenadto.CodeInviteNotPending, "error.invite_not_pending"}},
	{invite.ErrInviteExpired, errorMapping{fasthttp.StatusGone, arenadto.CodeInviteExpired, "error.invite_expired"}},
	{invite.ErrNotInviteRecipient, errorMapping{fasthttp.StatusForbidden, arenadto.CodeNotInviteRecipient, "error.not_invite_recipient"}},
	{invite.ErrNotInviteSender, errorMapping{fasthttp.StatusForbidden, arenadto.CodeNotInviteSender, "error.not_invite_sender"}},
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			s.writeErrorCode(ctx, m.out.status, m.out.code, m.out.message)
			return
		}
	}
	obslog.L().Error("http_internal_error",
		zap.String("path", string(ctx.Path())),
		zap.Error(err),
	)
	s.writeErrorCode(ctx, fasthttp.StatusInternalServerError, arenadto.CodeInternal, "error.internal")
}

func (s *Server) writeErrorCode(ctx *fasthttp.RequestCtx, status int, code, messageKey string) {
	s.writeJSON(ctx, status, arenadto.ErrorResponse{
		Code:    code,
		Message: s.cat.MustRender(messageKey, nil),
	})
}

func toGameView(v *game.View) *arenadto.GameView {
	return &arenadto.GameView{
		ID:           v.ID,
		OpponentType: string(v.OpponentType),
		BotLevel:     string(v.BotLevel),
		Opponent:     v.Opponent,
		Status:       string(v.Status),
		Position:     v.PositionText,
		LastMove:     v.LastMove,
		MoveCount:    v.MoveCount,
		PlayerColor:  v.PlayerColor.String(),
		YourTurn:     v.YourTurn,
		Result:       string(v.YourResult),
		CoinsEarned:  v.YourCoins,
		StartedAt:    v.StartedAt,
		FinishedAt:   v.FinishedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

func toInviteView(rec *invite.Record) *arenadto.InviteView {
	return &arenadto.InviteView{
		ID:         rec.ID,
		FromPlayer: rec.FromPlayer,
		ToPlayer:   rec.ToPlayer,
		Status:     string(rec.Status),
		GameID:     rec.GameID,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  rec.ExpiresAt,
	}
}

func toMyGamesResponse(sum *game.Summary, viewerID string) arenadto.MyGamesResponse {
	out := arenadto.MyGamesResponse{
		Active: make([]*arenadto.GameView, 0, len(sum.Active)),
		Recent: make([]arenadto.ArchivedGameView, 0, len(sum.Recent)),
		Stats: arenadto.PlayerStatsView{
			TotalGames:       sum.Stats.TotalGames,
			Wins:             sum.Stats.Wins,
			Losses:           sum.Stats.Losses,
			Draws:            sum.Stats.Draws,
			TotalCoinsEarned: sum.Stats.TotalCoinsEarned,
			BotGames:         sum.Stats.BotGames,
			PvPGames:         sum.Stats.PvPGames,
		},
	}
	for _, v := range sum.Active {
		out.Active = append(out.Active, toGameView(v))
	}
	for _, g := range sum.Recent {
		view := arenadto.ArchivedGameView{
			ID:           g.GameID,
			OpponentType: string(g.OpponentType),
			BotLevel:     string(g.BotLevel),
			Status:       string(g.Status),
			Result:       string(g.Result),
			CoinsEarned:  g.CoinsEarned,
			MoveCount:    g.MoveCount,
			FinishedAt:   g.FinishedAt,
			DurationSec:  int(g.Duration.Seconds()),
		}
		// Map the owner-perspective row to the requesting player.
		if g.PlayerID != viewerID {
			view.Opponent = g.PlayerID
			view.Result = string(g.Result.Invert())
			view.CoinsEarned = 0
			if g.Status == domain.GameFinished {
				view.CoinsEarned = game.Payout(g.OpponentType, g.BotLevel, g.Result.Invert())
			}
		} else {
			view.Opponent = g.OpponentID
		}
		out.Recent = append(out.Recent, view)
	}
	return out
}

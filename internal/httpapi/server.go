// Package httpapi exposes the arena over a pull-only JSON API. Clients
// poll GET /api/chess/game/{id}; there is no push channel.
package httpapi

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/marsdevs/chess-arena/internal/directory"
	"github.com/marsdevs/chess-arena/internal/domain"
	"github.com/marsdevs/chess-arena/internal/game"
	"github.com/marsdevs/chess-arena/internal/invite"
	"github.com/marsdevs/chess-arena/internal/msgcat"
	"github.com/marsdevs/chess-arena/internal/obslog"
	"github.com/marsdevs/chess-arena/pkg/arenadto"
)

const gamePathPrefix = "/api/chess/game/"

// identityHeader names the authenticated caller. Authentication itself
// happens upstream; the arena trusts the header.
const identityHeader = "X-Student-Id"

type Server struct {
	games       *game.Manager
	invites     *invite.Manager
	students    directory.Directory
	cat         *msgcat.Catalog
	onlineLimit int
	srv         *fasthttp.Server
}

func NewServer(games *game.Manager, invites *invite.Manager, students directory.Directory, cat *msgcat.Catalog, onlineLimit int) *Server {
	s := &Server{
		games:       games,
		invites:     invites,
		students:    students,
		cat:         cat,
		onlineLimit: onlineLimit,
	}
	s.srv = &fasthttp.Server{
		Handler:            s.route,
		Name:               "chess-arena",
		ReadBufferSize:     16 * 1024,
		MaxRequestBodySize: 64 * 1024,
	}
	return s
}

func (s *Server) Listen(addr string) error {
	obslog.L().Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown()
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	studentID := strings.TrimSpace(string(ctx.Request.Header.Peek(identityHeader)))
	if studentID == "" {
		s.writeErrorCode(ctx, fasthttp.StatusUnauthorized, arenadto.CodeUnauthorized, "error.unauthorized")
		return
	}

	switch {
	case method == fasthttp.MethodPost && path == "/api/chess/start":
		s.handleStart(ctx, studentID)
	case method == fasthttp.MethodPost && path == "/api/chess/move":
		s.handleMove(ctx, studentID)
	case method == fasthttp.MethodPost && path == "/api/chess/finish":
		s.handleFinish(ctx, studentID)
	case method == fasthttp.MethodPost && path == "/api/chess/abandon":
		s.handleAbandon(ctx, studentID)
	case method == fasthttp.MethodGet && strings.HasPrefix(path, gamePathPrefix):
		s.handleGame(ctx, studentID, strings.TrimPrefix(path, gamePathPrefix))
	case method == fasthttp.MethodGet && path == "/api/chess/my-games":
		s.handleMyGames(ctx, studentID)
	case method == fasthttp.MethodGet && path == "/api/chess/online-students":
		s.handleOnlineStudents(ctx, studentID)
	case method == fasthttp.MethodPost && path == "/api/chess/invite":
		s.handleInvite(ctx, studentID)
	case method == fasthttp.MethodPost && path == "/api/chess/respond-invite":
		s.handleRespondInvite(ctx, studentID)
	case method == fasthttp.MethodPost && path == "/api/chess/cancel-invite":
		s.handleCancelInvite(ctx, studentID)
	case method == fasthttp.MethodGet && path == "/api/chess/my-invites":
		s.handleMyInvites(ctx, studentID)
	default:
		s.writeErrorCode(ctx, fasthttp.StatusNotFound, arenadto.CodeBadRequest, "error.not_found")
	}
}

func (s *Server) handleStart(ctx *fasthttp.RequestCtx, studentID string) {
	var req arenadto.StartGameRequest
	if !s.readBody(ctx, &req) {
		return
	}
	view, err := s.games.Start(ctx, studentID,
		domain.OpponentType(strings.ToUpper(strings.TrimSpace(req.OpponentType))),
		domain.BotLevel(strings.ToLower(strings.TrimSpace(req.BotLevel))),
		req.OpponentID,
	)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	out := toGameView(view)
	out.Message = s.cat.MustRender("game.started", map[string]any{"Opponent": out.Opponent})
	s.writeJSON(ctx, fasthttp.StatusCreated, arenadto.GameResponse{Game: out})
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx, studentID string) {
	var req arenadto.MoveRequest
	if !s.readBody(ctx, &req) {
		return
	}
	view, err := s.games.Move(ctx, req.GameID, studentID, req.Move)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, arenadto.GameResponse{Game: toGameView(view)})
}

func (s *Server) handleFinish(ctx *fasthttp.RequestCtx, studentID string) {
	var req arenadto.FinishGameRequest
	if !s.readBody(ctx, &req) {
		return
	}
	claimed := domain.Result(strings.ToUpper(strings.TrimSpace(req.Result)))
	view, err := s.games.Finish(ctx, req.GameID, studentID, claimed)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	out := toGameView(view)
	out.Message = s.finishMessage(view)
	s.writeJSON(ctx, fasthttp.StatusOK, arenadto.GameResponse{Game: out})
}

func (s *Server) handleAbandon(ctx *fasthttp.RequestCtx, studentID string) {
	var req arenadto.AbandonGameRequest
	if !s.readBody(ctx, &req) {
		return
	}
	view, err := s.games.Abandon(ctx, req.GameID, studentID)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	out := toGameView(view)
	out.Message = s.cat.MustRender("game.abandoned", nil)
	s.writeJSON(ctx, fasthttp.StatusOK, arenadto.GameResponse{Game: out})
}

func (s *Server) handleGame(ctx *fasthttp.RequestCtx, studentID, gameID string) {
	view, err := s.games.Game(ctx, gameID, studentID)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, arenadto.GameResponse{Game: toGameView(view)})
}

func (s *Server) handleMyGames(ctx *fasthttp.RequestCtx, studentID string) {
	sum, err := s.games.MyGames(ctx, studentID)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, toMyGamesResponse(sum, studentID))
}

func (s *Server) handleOnlineStudents(ctx *fasthttp.RequestCtx, studentID string) {
	students, err := s.students.Students(ctx, studentID, s.onlineLimit)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	out := arenadto.OnlineStudentsResponse{Students: make([]arenadto.StudentView, 0, len(students))}
	for _, st := range students {
		out.Students = append(out.Students, arenadto.StudentView{
			ID:           st.ID,
			Username:     st.Username,
			LastActiveAt: st.LastActiveAt,
		})
	}
	s.writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) handleInvite(ctx *fasthttp.RequestCtx, studentID string) {
	var req arenadto.InviteRequest
	if !s.readBody(ctx, &req) {
		return
	}
	rec, err := s.invites.Invite(ctx, studentID, req.ToPlayer)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	out := toInviteView(rec)
	out.Message = s.cat.MustRender("invite.sent", map[string]any{
		"To":     rec.ToPlayer,
		"Window": rec.ExpiresAt.Sub(rec.CreatedAt).String(),
	})
	s.writeJSON(ctx, fasthttp.StatusCreated, arenadto.InviteResponse{Invite: out})
}

func (s *Server) handleRespondInvite(ctx *fasthttp.RequestCtx, studentID string) {
	var req arenadto.RespondInviteRequest
	if !s.readBody(ctx, &req) {
		return
	}
	rec, err := s.invites.Respond(ctx, req.InviteID, studentID, req.Accept)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	out := toInviteView(rec)
	if rec.Status == domain.InviteAccepted {
		out.Message = s.cat.MustRender("invite.accepted", map[string]any{"From": rec.FromPlayer})
	} else {
		out.Message = s.cat.MustRender("invite.declined", nil)
	}
	s.writeJSON(ctx, fasthttp.StatusOK, arenadto.InviteResponse{Invite: out})
}

func (s *Server) handleCancelInvite(ctx *fasthttp.RequestCtx, studentID string) {
	var req arenadto.CancelInviteRequest
	if !s.readBody(ctx, &req) {
		return
	}
	rec, err := s.invites.Cancel(ctx, req.InviteID, studentID)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	out := toInviteView(rec)
	out.Message = s.cat.MustRender("invite.cancelled", nil)
	s.writeJSON(ctx, fasthttp.StatusOK, arenadto.InviteResponse{Invite: out})
}

func (s *Server) handleMyInvites(ctx *fasthttp.RequestCtx, studentID string) {
	listing, err := s.invites.List(ctx, studentID)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	out := arenadto.MyInvitesResponse{
		Incoming: make([]*arenadto.InviteView, 0, len(listing.Incoming)),
		Outgoing: make([]*arenadto.InviteView, 0, len(listing.Outgoing)),
	}
	for _, rec := range listing.Incoming {
		out.Incoming = append(out.Incoming, toInviteView(rec))
	}
	for _, rec := range listing.Outgoing {
		out.Outgoing = append(out.Outgoing, toInviteView(rec))
	}
	s.writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) finishMessage(view *game.View) string {
	switch view.YourResult {
	case domain.ResultWin:
		return s.cat.MustRender("game.finished_win", map[string]any{"Coins": view.YourCoins})
	case domain.ResultDraw:
		return s.cat.MustRender("game.finished_draw", map[string]any{"Coins": view.YourCoins})
	default:
		return s.cat.MustRender("game.finished_lose", nil)
	}
}

func (s *Server) readBody(ctx *fasthttp.RequestCtx, out any) bool {
	if err := json.Unmarshal(ctx.PostBody(), out); err != nil {
		s.writeErrorCode(ctx, fasthttp.StatusBadRequest, arenadto.CodeBadRequest, "error.bad_request")
		return false
	}
	return true
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	raw, err := json.Marshal(v)
	if err != nil {
		obslog.L().Error("http_encode_error", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetBody(raw)
}

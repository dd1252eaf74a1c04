package invite

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/marsdevs/chess-arena/internal/bot"
	"github.com/marsdevs/chess-arena/internal/domain"
	"github.com/marsdevs/chess-arena/internal/game"
	"github.com/marsdevs/chess-arena/internal/rules"
)

func newTestManagers(t *testing.T) (*Manager, *game.Manager) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	store, err := game.NewStore(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("game.NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	games := game.NewManager(store, bot.NewSelector(2, rand.New(rand.NewSource(1))), nil)
	invites := NewManager(store.Client(), games, 5*time.Minute)
	return invites, games
}

func TestInviteValidation(t *testing.T) {
	invites, _ := newTestManagers(t)
	ctx := context.Background()

	if _, err := invites.Invite(ctx, "u1", "u1"); !errors.Is(err, ErrSelfInvite) {
		t.Fatalf("expected ErrSelfInvite, got %v", err)
	}
	if _, err := invites.Invite(ctx, "", "u2"); err == nil {
		t.Fatalf("expected error for empty sender")
	}

	rec, err := invites.Invite(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if rec.Status != domain.InvitePending {
		t.Fatalf("new invite should be PENDING: %+v", rec)
	}
	if !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("expiry should be after creation: %+v", rec)
	}
}

func TestDuplicatePendingInvite(t *testing.T) {
	invites, _ := newTestManagers(t)
	ctx := context.Background()

	first, err := invites.Invite(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := invites.Invite(ctx, "u1", "u2"); !errors.Is(err, ErrDuplicatePendingInvite) {
		t.Fatalf("expected ErrDuplicatePendingInvite, got %v", err)
	}
	// The reverse direction is a different ordered pair.
	if _, err := invites.Invite(ctx, "u2", "u1"); err != nil {
		t.Fatalf("reverse invite: %v", err)
	}

	if _, err := invites.Respond(ctx, first.ID, "u2", false); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, err := invites.Invite(ctx, "u1", "u2"); err != nil {
		t.Fatalf("invite after decline: %v", err)
	}
}

func TestRespondAcceptCreatesGame(t *testing.T) {
	invites, games := newTestManagers(t)
	ctx := context.Background()

	rec, err := invites.Invite(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	if _, err := invites.Respond(ctx, rec.ID, "u1", true); !errors.Is(err, ErrNotInviteRecipient) {
		t.Fatalf("sender responding: expected ErrNotInviteRecipient, got %v", err)
	}
	if _, err := invites.Respond(ctx, "missing", "u2", true); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("expected ErrInviteNotFound, got %v", err)
	}

	accepted, err := invites.Respond(ctx, rec.ID, "u2", true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if accepted.Status != domain.InviteAccepted || accepted.GameID == "" {
		t.Fatalf("accepted invite: %+v", accepted)
	}

	// The inviter owns the game and plays White.
	view, err := games.Game(ctx, accepted.GameID, "u1")
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if view.PlayerColor != rules.White || !view.YourTurn {
		t.Fatalf("inviter should be White on turn: %+v", view)
	}
	other, err := games.Game(ctx, accepted.GameID, "u2")
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if other.PlayerColor != rules.Black || other.YourTurn {
		t.Fatalf("recipient should be Black off turn: %+v", other)
	}

	if _, err := invites.Respond(ctx, rec.ID, "u2", true); !errors.Is(err, ErrInviteNotPending) {
		t.Fatalf("double respond: expected ErrInviteNotPending, got %v", err)
	}
}

func TestRespondDecline(t *testing.T) {
	invites, _ := newTestManagers(t)
	ctx := context.Background()

	rec, err := invites.Invite(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	declined, err := invites.Respond(ctx, rec.ID, "u2", false)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if declined.Status != domain.InviteDeclined || declined.GameID != "" {
		t.Fatalf("declined invite: %+v", declined)
	}
}

func TestCancel(t *testing.T) {
	invites, _ := newTestManagers(t)
	ctx := context.Background()

	rec, err := invites.Invite(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := invites.Cancel(ctx, rec.ID, "u2"); !errors.Is(err, ErrNotInviteSender) {
		t.Fatalf("recipient cancelling: expected ErrNotInviteSender, got %v", err)
	}
	cancelled, err := invites.Cancel(ctx, rec.ID, "u1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.InviteCancelled {
		t.Fatalf("cancelled invite: %+v", cancelled)
	}
	if _, err := invites.Respond(ctx, rec.ID, "u2", true); !errors.Is(err, ErrInviteNotPending) {
		t.Fatalf("respond after cancel: expected ErrInviteNotPending, got %v", err)
	}
	if _, err := invites.Invite(ctx, "u1", "u2"); err != nil {
		t.Fatalf("invite after cancel: %v", err)
	}
}

func TestLazyExpiry(t *testing.T) {
	invites, _ := newTestManagers(t)
	ctx := context.Background()

	rec, err := invites.Invite(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	// Jump past the deadline without any background sweeper.
	invites.now = func() time.Time { return rec.ExpiresAt.Add(time.Second) }

	if _, err := invites.Respond(ctx, rec.ID, "u2", true); !errors.Is(err, ErrInviteExpired) {
		t.Fatalf("expected ErrInviteExpired, got %v", err)
	}
	cur, err := invites.get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cur.Status != domain.InviteExpired {
		t.Fatalf("invite should be EXPIRED after lazy sweep: %+v", cur)
	}

	listing, err := invites.List(ctx, "u2")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.Incoming) != 0 {
		t.Fatalf("expired invite should not be listed: %+v", listing.Incoming)
	}

	// The pair is free again once the stale invite is resolved.
	if _, err := invites.Invite(ctx, "u1", "u2"); err != nil {
		t.Fatalf("invite after expiry: %v", err)
	}
}

func TestListSweepsAndFilters(t *testing.T) {
	invites, games := newTestManagers(t)
	ctx := context.Background()

	pending, err := invites.Invite(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	acceptedSrc, err := invites.Invite(ctx, "u3", "u2")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	accepted, err := invites.Respond(ctx, acceptedSrc.ID, "u2", true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	listing, err := invites.List(ctx, "u2")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.Incoming) != 2 {
		t.Fatalf("expected pending plus accepted-with-live-game, got %+v", listing.Incoming)
	}

	// Once the accepted invite's game is over it drops off the list.
	if _, err := games.Abandon(ctx, accepted.GameID, "u2"); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	listing, err = invites.List(ctx, "u2")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.Incoming) != 1 || listing.Incoming[0].ID != pending.ID {
		t.Fatalf("expected only the pending invite, got %+v", listing.Incoming)
	}

	outgoing, err := invites.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(outgoing.Outgoing) != 1 || outgoing.Outgoing[0].ID != pending.ID {
		t.Fatalf("expected one outgoing invite, got %+v", outgoing.Outgoing)
	}
}

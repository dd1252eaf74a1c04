package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/marsdevs/chess-arena/internal/bot"
	"github.com/marsdevs/chess-arena/internal/domain"
	"github.com/marsdevs/chess-arena/internal/rules"
)

type ledgerEntry struct {
	userID string
	amount int
	reason string
	source string
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []ledgerEntry
}

func (f *fakeLedger) Credit(_ context.Context, userID string, amount int, reason, sourceTag string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, ledgerEntry{userID: userID, amount: amount, reason: reason, source: sourceTag})
	return amount, nil
}

func (f *fakeLedger) all() []ledgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledgerEntry(nil), f.entries...)
}

type fakeArchive struct {
	mu    sync.Mutex
	saved []*domain.ArchivedGame
}

func (f *fakeArchive) SaveFinished(_ context.Context, g *domain.ArchivedGame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, g)
	return nil
}

func (f *fakeArchive) RecentByUser(_ context.Context, userID string, limit int) ([]domain.ArchivedGame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ArchivedGame
	for _, g := range f.saved {
		if g.PlayerID == userID || g.OpponentID == userID {
			out = append(out, *g)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeArchive) StatsByUser(context.Context, string) (domain.PlayerStats, error) {
	return domain.PlayerStats{}, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeLedger, *fakeArchive) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	store, err := NewStore(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("game.NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ledger := &fakeLedger{}
	arch := &fakeArchive{}
	m := NewManager(store, bot.NewSelector(2, rand.New(rand.NewSource(1))), ledger)
	m.AttachArchive(arch)
	return m, ledger, arch
}

// seedGame writes a record straight into the store, bypassing Start, so
// tests can begin from arbitrary positions.
func seedGame(t *testing.T, m *Manager, g *Record) {
	t.Helper()
	ctx := context.Background()
	if g.PositionText == "" {
		g.PositionText = rules.StartingPositionText
	}
	g.Status = domain.GameInProgress
	g.StartedAt = m.now()
	g.UpdatedAt = m.now()
	if err := m.store.save(ctx, g); err != nil {
		t.Fatalf("seed save: %v", err)
	}
	if err := m.store.indexParticipants(ctx, g); err != nil {
		t.Fatalf("seed index: %v", err)
	}
}

func TestStartValidation(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	cases := []struct {
		name string
		opp  domain.OpponentType
		lvl  domain.BotLevel
		oppo string
	}{
		{"bot without level", domain.OpponentBot, "", ""},
		{"bot with bad level", domain.OpponentBot, "impossible", ""},
		{"bot with opponent id", domain.OpponentBot, domain.BotEasy, "u2"},
		{"student without opponent", domain.OpponentStudent, "", ""},
		{"student with self", domain.OpponentStudent, "", "u1"},
		{"student with bot level", domain.OpponentStudent, domain.BotEasy, "u2"},
		{"unknown opponent type", domain.OpponentType("ALIEN"), "", ""},
	}
	for _, tc := range cases {
		if _, err := m.Start(ctx, "u1", tc.opp, tc.lvl, tc.oppo); !errors.Is(err, ErrInvalidOpponentConfig) {
			t.Fatalf("%s: expected ErrInvalidOpponentConfig, got %v", tc.name, err)
		}
	}

	view, err := m.Start(ctx, "u1", domain.OpponentBot, domain.BotEasy, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if view.Status != domain.GameInProgress || view.PositionText != rules.StartingPositionText {
		t.Fatalf("unexpected start view: %+v", view)
	}
	if view.PlayerColor != rules.White || !view.YourTurn {
		t.Fatalf("initiator should be White on turn: %+v", view)
	}
}

func TestMoveAgainstBot(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	start, err := m.Start(ctx, "u1", domain.OpponentBot, domain.BotEasy, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	view, err := m.Move(ctx, start.ID, "u1", "e2e4")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if view.MoveCount != 2 {
		t.Fatalf("expected player move plus bot reply, move_count=%d", view.MoveCount)
	}
	if !view.YourTurn || view.Status != domain.GameInProgress {
		t.Fatalf("expected to be back on turn: %+v", view)
	}

	if _, err := m.Move(ctx, start.ID, "u1", "e9e4"); !errors.Is(err, rules.ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
	if _, err := m.Move(ctx, start.ID, "stranger", "e2e4"); !errors.Is(err, ErrNotInGame) {
		t.Fatalf("expected ErrNotInGame, got %v", err)
	}
	if _, err := m.Move(ctx, "missing", "u1", "e2e4"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestMoveTurnOrderPvP(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	start, err := m.Start(ctx, "u1", domain.OpponentStudent, "", "u2")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := m.Move(ctx, start.ID, "u2", "e7e5"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("black moving first: expected ErrNotYourTurn, got %v", err)
	}
	if _, err := m.Move(ctx, start.ID, "u1", "e2e4"); err != nil {
		t.Fatalf("white move: %v", err)
	}
	if _, err := m.Move(ctx, start.ID, "u1", "d2d4"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("white moving twice: expected ErrNotYourTurn, got %v", err)
	}
	view, err := m.Move(ctx, start.ID, "u2", "e7e5")
	if err != nil {
		t.Fatalf("black move: %v", err)
	}
	if view.MoveCount != 2 {
		t.Fatalf("move_count=%d", view.MoveCount)
	}
}

func TestPvPCheckmateSettlesOnce(t *testing.T) {
	m, ledger, arch := newTestManager(t)
	ctx := context.Background()

	start, err := m.Start(ctx, "u1", domain.OpponentStudent, "", "u2")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Fool's mate: White walks into it, Black delivers Qh4#.
	moves := []struct{ player, uci string }{
		{"u1", "f2f3"}, {"u2", "e7e5"}, {"u1", "g2g4"},
	}
	for _, mv := range moves {
		if _, err := m.Move(ctx, start.ID, mv.player, mv.uci); err != nil {
			t.Fatalf("move %s %s: %v", mv.player, mv.uci, err)
		}
	}
	view, err := m.Move(ctx, start.ID, "u2", "d8h4")
	if err != nil {
		t.Fatalf("mating move: %v", err)
	}
	if view.Status != domain.GameFinished || view.YourResult != domain.ResultWin {
		t.Fatalf("winner view: %+v", view)
	}
	if view.YourCoins != 50 {
		t.Fatalf("PvP win should pay 50, got %d", view.YourCoins)
	}

	entries := ledger.all()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one credit, got %+v", entries)
	}
	if entries[0].userID != "u2" || entries[0].amount != 50 || entries[0].source != SourceChess {
		t.Fatalf("unexpected credit: %+v", entries[0])
	}
	if len(arch.saved) != 1 || arch.saved[0].Status != domain.GameFinished {
		t.Fatalf("expected one archived row, got %+v", arch.saved)
	}

	// Loser's perspective.
	loser, err := m.Game(ctx, start.ID, "u1")
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if loser.YourResult != domain.ResultLose || loser.YourCoins != 0 {
		t.Fatalf("loser view: %+v", loser)
	}

	if _, err := m.Move(ctx, start.ID, "u1", "e2e4"); !errors.Is(err, ErrGameAlreadyFinished) {
		t.Fatalf("move on finished game: expected ErrGameAlreadyFinished, got %v", err)
	}
}

func TestBotCheckmateRewards(t *testing.T) {
	levels := []struct {
		level domain.BotLevel
		coins int
	}{
		{domain.BotEasy, 45},
		{domain.BotMedium, 75},
		{domain.BotHard, 100},
	}
	for _, tc := range levels {
		m, ledger, _ := newTestManager(t)
		ctx := context.Background()

		g := &Record{
			ID:            "seeded-" + string(tc.level),
			PlayerID:      "u1",
			OpponentType:  domain.OpponentBot,
			BotLevel:      tc.level,
			WhitePlayerID: "u1",
			PositionText:  "6k1/5ppp/8/8/8/8/5PPP/3R2K1 w - - 0 1",
		}
		seedGame(t, m, g)

		view, err := m.Move(ctx, g.ID, "u1", "d1d8")
		if err != nil {
			t.Fatalf("mating move: %v", err)
		}
		if view.Status != domain.GameFinished || view.YourResult != domain.ResultWin {
			t.Fatalf("expected win, got %+v", view)
		}
		if view.YourCoins != tc.coins {
			t.Fatalf("%s win should pay %d, got %d", tc.level, tc.coins, view.YourCoins)
		}
		entries := ledger.all()
		if len(entries) != 1 || entries[0].amount != tc.coins || entries[0].userID != "u1" {
			t.Fatalf("%s: unexpected credits %+v", tc.level, entries)
		}
	}
}

func TestFinishCrossCheck(t *testing.T) {
	m, ledger, _ := newTestManager(t)
	ctx := context.Background()

	// Seeded record whose stored position already has White mated.
	g := &Record{
		ID:            "seeded-finish",
		PlayerID:      "u1",
		OpponentType:  domain.OpponentBot,
		BotLevel:      domain.BotHard,
		WhitePlayerID: "u1",
		PositionText:  "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
	}
	seedGame(t, m, g)

	if _, err := m.Finish(ctx, g.ID, "u1", domain.ResultWin); !errors.Is(err, ErrInconsistentResultClaim) {
		t.Fatalf("claiming a win while mated: expected ErrInconsistentResultClaim, got %v", err)
	}
	if _, err := m.Finish(ctx, g.ID, "u1", domain.Result("GLORIOUS")); !errors.Is(err, ErrInconsistentResultClaim) {
		t.Fatalf("claiming nonsense: expected ErrInconsistentResultClaim, got %v", err)
	}

	view, err := m.Finish(ctx, g.ID, "u1", domain.ResultLose)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if view.Status != domain.GameFinished || view.YourResult != domain.ResultLose || view.YourCoins != 0 {
		t.Fatalf("loss view: %+v", view)
	}
	if entries := ledger.all(); len(entries) != 0 {
		t.Fatalf("loss should credit nothing, got %+v", entries)
	}

	if _, err := m.Finish(ctx, g.ID, "u1", domain.ResultLose); !errors.Is(err, ErrGameAlreadyFinished) {
		t.Fatalf("double finish: expected ErrGameAlreadyFinished, got %v", err)
	}
}

func TestFinishOnLivePosition(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	start, err := m.Start(ctx, "u1", domain.OpponentBot, domain.BotEasy, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Finish(ctx, start.ID, "u1", domain.ResultWin); !errors.Is(err, ErrInconsistentResultClaim) {
		t.Fatalf("finishing a live game: expected ErrInconsistentResultClaim, got %v", err)
	}
}

func TestAbandon(t *testing.T) {
	m, ledger, arch := newTestManager(t)
	ctx := context.Background()

	start, err := m.Start(ctx, "u1", domain.OpponentBot, domain.BotHard, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	view, err := m.Abandon(ctx, start.ID, "u1")
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if view.Status != domain.GameAbandoned || view.YourResult != domain.ResultLose || view.YourCoins != 0 {
		t.Fatalf("abandon view: %+v", view)
	}
	if entries := ledger.all(); len(entries) != 0 {
		t.Fatalf("abandoning should credit nothing, got %+v", entries)
	}
	if len(arch.saved) != 1 || arch.saved[0].Status != domain.GameAbandoned {
		t.Fatalf("abandoned game should still be archived, got %+v", arch.saved)
	}
	if _, err := m.Abandon(ctx, start.ID, "u1"); !errors.Is(err, ErrGameAlreadyFinished) {
		t.Fatalf("double abandon: expected ErrGameAlreadyFinished, got %v", err)
	}
}

func TestGameViewAccess(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	start, err := m.Start(ctx, "u1", domain.OpponentStudent, "", "u2")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Game(ctx, start.ID, "u2"); err != nil {
		t.Fatalf("opponent read: %v", err)
	}
	if _, err := m.Game(ctx, start.ID, "stranger"); !errors.Is(err, ErrNotInGame) {
		t.Fatalf("expected ErrNotInGame, got %v", err)
	}
	if _, err := m.Game(ctx, "missing", "u1"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestMyGames(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	live, err := m.Start(ctx, "u1", domain.OpponentBot, domain.BotEasy, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	done, err := m.Start(ctx, "u1", domain.OpponentBot, domain.BotMedium, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Abandon(ctx, done.ID, "u1"); err != nil {
		t.Fatalf("Abandon: %v", err)
	}

	sum, err := m.MyGames(ctx, "u1")
	if err != nil {
		t.Fatalf("MyGames: %v", err)
	}
	if len(sum.Active) != 1 || sum.Active[0].ID != live.ID {
		t.Fatalf("active games: %+v", sum.Active)
	}
	if len(sum.Recent) != 1 || sum.Recent[0].GameID != done.ID {
		t.Fatalf("recent games: %+v", sum.Recent)
	}
}

func TestConcurrentMovesOneWins(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	start, err := m.Start(ctx, "u1", domain.OpponentStudent, "", "u2")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The same player races two different first moves; exactly one may
	// land, and the loser must see the turn error after revalidation.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, uci := range []string{"e2e4", "d2d4"} {
		wg.Add(1)
		go func(uci string) {
			defer wg.Done()
			_, err := m.Move(ctx, start.ID, "u1", uci)
			results <- err
		}(uci)
	}
	wg.Wait()
	close(results)

	var ok, turnErr int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNotYourTurn):
			turnErr++
		default:
			t.Fatalf("unexpected race outcome: %v", err)
		}
	}
	if ok != 1 || turnErr != 1 {
		t.Fatalf("expected one success and one ErrNotYourTurn, got ok=%d turn=%d", ok, turnErr)
	}

	view, err := m.Game(ctx, start.ID, "u1")
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if view.MoveCount != 1 {
		t.Fatalf("exactly one move should have landed, move_count=%d", view.MoveCount)
	}
}

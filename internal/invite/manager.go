// Package invite coordinates PvP invites: creation with a
// duplicate-pending guard, responses that materialize the game
// atomically with the invite flip, and lazily swept expiry.
package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/marsdevs/chess-arena/internal/domain"
	"github.com/marsdevs/chess-arena/internal/game"
	"github.com/marsdevs/chess-arena/internal/obslog"
)

var (
	ErrSelfInvite             = errors.New("cannot invite yourself")
	ErrDuplicatePendingInvite = errors.New("pending invite already exists for this pair")
	ErrInviteNotFound         = errors.New("invite not found")
	ErrInviteNotPending       = errors.New("invite is not pending")
	ErrInviteExpired          = errors.New("invite expired")
	ErrNotInviteRecipient     = errors.New("only the recipient may respond")
	ErrNotInviteSender        = errors.New("only the sender may cancel")
)

const (
	defaultWindow = 5 * time.Minute
	recordTTL     = 24 * time.Hour
	maxTxRetries  = 3
)

// Manager owns invite records. It shares the Redis instance with the
// game store so an accept can commit invite and game in one pipeline.
type Manager struct {
	rdb    *redis.Client
	games  *game.Manager
	window time.Duration
	now    func() time.Time
}

func NewManager(rdb *redis.Client, games *game.Manager, window time.Duration) *Manager {
	if window <= 0 {
		window = defaultWindow
	}
	return &Manager{rdb: rdb, games: games, window: window, now: time.Now}
}

// Invite creates a PENDING invite from one student to another. At most
// one pending invite may exist per ordered pair; the guard key's TTL
// matches the expiry window so it cleans itself up.
func (m *Manager) Invite(ctx context.Context, fromID, toID string) (*Record, error) {
	fromID = strings.TrimSpace(fromID)
	toID = strings.TrimSpace(toID)
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("both players required")
	}
	if fromID == toID {
		return nil, ErrSelfInvite
	}

	pendK := pendingKey(fromID, toID)
	if staleID, err := m.rdb.Get(ctx, pendK).Result(); err == nil && staleID != "" {
		stale, gerr := m.get(ctx, staleID)
		switch {
		case gerr != nil:
			return nil, gerr
		case stale == nil:
			_ = m.rdb.Del(ctx, pendK).Err()
		case stale.expired(m.now()):
			m.sweepExpired(ctx, stale)
		case stale.Status == domain.InvitePending:
			return nil, ErrDuplicatePendingInvite
		default:
			_ = m.rdb.Del(ctx, pendK).Err()
		}
	} else if err != nil && err != redis.Nil {
		return nil, err
	}

	now := m.now()
	rec := &Record{
		ID:         uuid.NewString(),
		FromPlayer: fromID,
		ToPlayer:   toID,
		Status:     domain.InvitePending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.window),
		UpdatedAt:  now,
	}

	ok, err := m.rdb.SetNX(ctx, pendK, rec.ID, m.window).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicatePendingInvite
	}

	pipe := m.rdb.TxPipeline()
	if err := writeInPipe(ctx, pipe, rec); err != nil {
		return nil, err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	obslog.L().Info("invite_create",
		zap.String("invite_id", rec.ID),
		zap.String("from_player", rec.FromPlayer),
		zap.String("to_player", rec.ToPlayer),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return rec, nil
}

// Respond accepts or declines a pending invite. Accepting creates the
// game and flips the invite in a single pipeline, so either both are
// visible or neither is; the inviter plays White.
func (m *Manager) Respond(ctx context.Context, inviteID, userID string, accept bool) (*Record, error) {
	userID = strings.TrimSpace(userID)
	rec, err := m.update(ctx, inviteID, func(cur *Record, pipe redis.Pipeliner) error {
		if cur.ToPlayer != userID {
			return ErrNotInviteRecipient
		}
		if cur.Status != domain.InvitePending {
			return ErrInviteNotPending
		}
		now := m.now()
		if cur.expired(now) {
			cur.Status = domain.InviteExpired
			cur.UpdatedAt = now
			pipe.Del(ctx, pendingKey(cur.FromPlayer, cur.ToPlayer))
			return nil
		}
		if accept {
			g := m.games.NewPvPRecord(cur.FromPlayer, cur.ToPlayer)
			if err := m.games.WriteRecordInPipe(ctx, pipe, g); err != nil {
				return err
			}
			cur.Status = domain.InviteAccepted
			cur.GameID = g.ID
		} else {
			cur.Status = domain.InviteDeclined
		}
		cur.UpdatedAt = now
		pipe.Del(ctx, pendingKey(cur.FromPlayer, cur.ToPlayer))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.InviteExpired {
		return nil, ErrInviteExpired
	}

	obslog.L().Info("invite_respond",
		zap.String("invite_id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.String("game_id", rec.GameID),
	)
	return rec, nil
}

// Cancel withdraws a pending invite; only the sender may do it, and
// CANCELLED is distinct from EXPIRED.
func (m *Manager) Cancel(ctx context.Context, inviteID, userID string) (*Record, error) {
	userID = strings.TrimSpace(userID)
	rec, err := m.update(ctx, inviteID, func(cur *Record, pipe redis.Pipeliner) error {
		if cur.FromPlayer != userID {
			return ErrNotInviteSender
		}
		if cur.Status != domain.InvitePending {
			return ErrInviteNotPending
		}
		now := m.now()
		if cur.expired(now) {
			cur.Status = domain.InviteExpired
		} else {
			cur.Status = domain.InviteCancelled
		}
		cur.UpdatedAt = now
		pipe.Del(ctx, pendingKey(cur.FromPlayer, cur.ToPlayer))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.InviteExpired {
		return nil, ErrInviteExpired
	}

	obslog.L().Info("invite_cancel", zap.String("invite_id", rec.ID))
	return rec, nil
}

// List returns the user's incoming and outgoing invites, newest first.
// Pending invites past their deadline are swept to EXPIRED on the way;
// the listing keeps PENDING invites and ACCEPTED ones whose game is
// still being played.
func (m *Manager) List(ctx context.Context, userID string) (*Listing, error) {
	userID = strings.TrimSpace(userID)
	incoming, err := m.listIndex(ctx, idxInKey(userID), userID)
	if err != nil {
		return nil, err
	}
	outgoing, err := m.listIndex(ctx, idxOutKey(userID), userID)
	if err != nil {
		return nil, err
	}
	return &Listing{Incoming: incoming, Outgoing: outgoing}, nil
}

func (m *Manager) listIndex(ctx context.Context, indexKey, viewerID string) ([]*Record, error) {
	ids, err := m.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, id := range ids {
		rec, gerr := m.get(ctx, id)
		if gerr != nil || rec == nil {
			continue
		}
		if rec.expired(m.now()) {
			m.sweepExpired(ctx, rec)
			continue
		}
		switch rec.Status {
		case domain.InvitePending:
			out = append(out, rec)
		case domain.InviteAccepted:
			if m.gameStillLive(ctx, rec.GameID, viewerID) {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Manager) gameStillLive(ctx context.Context, gameID, viewerID string) bool {
	if gameID == "" {
		return false
	}
	view, err := m.games.Game(ctx, gameID, viewerID)
	if err != nil {
		return false
	}
	return view.Status == domain.GameInProgress
}

// sweepExpired persists the lazy PENDING to EXPIRED transition. Best
// effort under WATCH: if a concurrent responder wins the race, their
// transition stands.
func (m *Manager) sweepExpired(ctx context.Context, rec *Record) {
	key := inviteKey(rec.ID)
	err := m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		var cur Record
		if jerr := json.Unmarshal(raw, &cur); jerr != nil {
			return jerr
		}
		if cur.Status != domain.InvitePending {
			return nil
		}
		cur.Status = domain.InviteExpired
		cur.UpdatedAt = m.now()
		pipe := tx.TxPipeline()
		if err := writeInPipe(ctx, pipe, &cur); err != nil {
			return err
		}
		pipe.Del(ctx, pendingKey(cur.FromPlayer, cur.ToPlayer))
		_, err = pipe.Exec(ctx)
		return err
	}, key)
	if err != nil {
		if !errors.Is(err, redis.TxFailedErr) && err != redis.Nil {
			obslog.L().Warn("invite_expire_sweep_error", zap.String("invite_id", rec.ID), zap.Error(err))
		}
		return
	}
	obslog.L().Info("invite_expired", zap.String("invite_id", rec.ID))
}

// update runs mutate inside a WATCH transaction on the invite key,
// retrying on conflict so the losing racer revalidates against the
// winner's write.
func (m *Manager) update(ctx context.Context, inviteID string, mutate func(cur *Record, pipe redis.Pipeliner) error) (*Record, error) {
	key := inviteKey(inviteID)
	var out *Record
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := m.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return ErrInviteNotFound
			}
			if err != nil {
				return err
			}
			var cur Record
			if jerr := json.Unmarshal(raw, &cur); jerr != nil {
				return jerr
			}
			pipe := tx.TxPipeline()
			if err := mutate(&cur, pipe); err != nil {
				return err
			}
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
	return nil, fmt.Errorf("invite %s: too many concurrent updates", inviteID)
}

func (m *Manager) get(ctx context.Context, id string) (*Record, error) {
	raw, err := m.rdb.Get(ctx, inviteKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func writeInPipe(ctx context.Context, pipe redis.Pipeliner, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe.Set(ctx, inviteKey(rec.ID), raw, recordTTL)
	outK := idxOutKey(rec.FromPlayer)
	inK := idxInKey(rec.ToPlayer)
	pipe.SAdd(ctx, outK, rec.ID)
	pipe.Expire(ctx, outK, recordTTL)
	pipe.SAdd(ctx, inK, rec.ID)
	pipe.Expire(ctx, inK, recordTTL)
	return nil
}

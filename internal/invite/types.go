package invite

import (
	"strings"
	"time"

	"github.com/marsdevs/chess-arena/internal/domain"
)

// Record is the invite blob stored in Redis. ExpiresAt is the logical
// deadline; the key itself lives longer so resolved invites stay
// readable in listings.
type Record struct {
	ID         string              `json:"id"`
	FromPlayer string              `json:"from_player"`
	ToPlayer   string              `json:"to_player"`
	Status     domain.InviteStatus `json:"status"`
	GameID     string              `json:"game_id,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	ExpiresAt  time.Time           `json:"expires_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (r *Record) expired(now time.Time) bool {
	return r.Status == domain.InvitePending && now.After(r.ExpiresAt)
}

// Listing is the my-invites read model.
type Listing struct {
	Incoming []*Record
	Outgoing []*Record
}

func inviteKey(id string) string { return "arena:invite:" + strings.TrimSpace(id) }

func pendingKey(from, to string) string {
	return "arena:invite:pending:" + strings.TrimSpace(from) + ":" + strings.TrimSpace(to)
}

func idxInKey(userID string) string  { return "arena:invite:index:in:" + strings.TrimSpace(userID) }
func idxOutKey(userID string) string { return "arena:invite:index:out:" + strings.TrimSpace(userID) }

package arenadto

import "time"

type InviteRequest struct {
	ToPlayer string `json:"to_player"`
}

type RespondInviteRequest struct {
	InviteID string `json:"invite_id"`
	Accept   bool   `json:"accept"`
}

type CancelInviteRequest struct {
	InviteID string `json:"invite_id"`
}

type InviteView struct {
	ID         string    `json:"id"`
	FromPlayer string    `json:"from_player"`
	ToPlayer   string    `json:"to_player"`
	Status     string    `json:"status"`
	GameID     string    `json:"game_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Message    string    `json:"message,omitempty"`
}

type InviteResponse struct {
	Invite *InviteView `json:"invite"`
}

type MyInvitesResponse struct {
	Incoming []*InviteView `json:"incoming"`
	Outgoing []*InviteView `json:"outgoing"`
}

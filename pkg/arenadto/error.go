package arenadto

// Stable error codes surfaced by the HTTP API. Clients branch on the
// code; the message is presentation only.
const (
	CodeGameNotFound            = "GAME_NOT_FOUND"
	CodeGameAlreadyFinished     = "GAME_ALREADY_FINISHED"
	CodeNotYourTurn             = "NOT_YOUR_TURN"
	CodeInvalidMove             = "INVALID_MOVE"
	CodeMalformedPosition       = "MALFORMED_POSITION"
	CodeInvalidOpponentConfig   = "INVALID_OPPONENT_CONFIG"
	CodeInconsistentResultClaim = "INCONSISTENT_RESULT_CLAIM"
	CodeNotInGame               = "NOT_IN_GAME"
	CodeSelfInvite              = "SELF_INVITE"
	CodeDuplicatePendingInvite  = "DUPLICATE_PENDING_INVITE"
	CodeInviteNotFound          = "INVITE_NOT_FOUND"
	CodeInviteNotPending        = "INVITE_NOT_PENDING"
	CodeInviteExpired           = "INVITE_EXPIRED"
	CodeNotInviteRecipient      = "NOT_INVITE_RECIPIENT"
	CodeNotInviteSender         = "NOT_INVITE_SENDER"
	CodeBadRequest              = "BAD_REQUEST"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeInternal                = "INTERNAL"
)

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

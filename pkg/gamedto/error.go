package gamedto

// Error codes surfaced to callers. Rejections are final; Retryable errors
// mean the move was not applied and may be resubmitted as-is.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeNotActive        = "NOT_ACTIVE"
	CodeNotYourTurn      = "NOT_YOUR_TURN"
	CodeBadPosition      = "BAD_POSITION"
	CodeCellTaken        = "CELL_TAKEN"
	CodeNotWaiting       = "NOT_WAITING"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "game service error"
}

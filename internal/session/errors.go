package session

import (
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

// Rejections leave the record untouched and are never retried automatically.
var (
	ErrNotFound    = gamedto.DomainError{Code: gamedto.CodeNotFound, Message: "game not found or expired"}
	ErrNotActive   = gamedto.DomainError{Code: gamedto.CodeNotActive, Message: "game is not active"}
	ErrNotYourTurn = gamedto.DomainError{Code: gamedto.CodeNotYourTurn, Message: "not your turn"}
	ErrBadPosition = gamedto.DomainError{Code: gamedto.CodeBadPosition, Message: "position out of range"}
	ErrCellTaken   = gamedto.DomainError{Code: gamedto.CodeCellTaken, Message: "cell already taken"}
	ErrNotWaiting  = gamedto.DomainError{Code: gamedto.CodeNotWaiting, Message: "game is not waiting for a player"}
	ErrInvalidArgs = gamedto.DomainError{Code: gamedto.CodeInvalidArgument, Message: "invalid arguments"}
)

// Infrastructure failures: the transition was not applied and may be retried.
var (
	ErrStoreUnavailable = gamedto.DomainError{Code: gamedto.CodeStoreUnavailable, Message: "session store unavailable", Retryable: true}
	ErrConflict         = gamedto.DomainError{Code: gamedto.CodeConflict, Message: "concurrent update, retry", Retryable: true}
)

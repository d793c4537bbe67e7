package domain

import "errors"

var (
	ErrExternalDataUnavailable = errors.New("external data unavailable")
	ErrNotFound                = errors.New("not found")
	ErrStreamTransport         = errors.New("chat stream failed")
	ErrPersistence             = errors.New("persist turn")
	ErrTurnInFlight            = errors.New("turn already in flight")
	ErrEmptyInput              = errors.New("empty input")
	ErrEmptyAnswer             = errors.New("empty answer")
	ErrConversationNotFound    = errors.New("conversation not found")
)

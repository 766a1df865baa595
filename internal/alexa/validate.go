package alexa

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every error returned from Validate.
var ErrValidation = errors.New("invalid event")

var (
	ErrMissingSession     = fmt.Errorf("%w: missing session", ErrValidation)
	ErrMissingUser        = fmt.Errorf("%w: missing user", ErrValidation)
	ErrMissingUserID      = fmt.Errorf("%w: missing userId", ErrValidation)
	ErrMissingSessionID   = fmt.Errorf("%w: missing sessionId", ErrValidation)
	ErrMissingRequest     = fmt.Errorf("%w: missing request", ErrValidation)
	ErrMissingRequestType = fmt.Errorf("%w: missing request type", ErrValidation)
)

// Validate reports the first required field missing from evt, or nil.
func Validate(evt *Event) error {
	switch {
	case evt == nil || evt.Session == nil:
		return ErrMissingSession
	case evt.Session.User == nil:
		return ErrMissingUser
	case evt.Session.User.UserID == "":
		return ErrMissingUserID
	case evt.Session.SessionID == "":
		return ErrMissingSessionID
	case evt.Request == nil:
		return ErrMissingRequest
	case evt.Request.Type == "":
		return ErrMissingRequestType
	}
	return nil
}

// Package engine implements the sharing and request coordination core:
// inventory, offer publication, request arbitration, notification fan-out,
// and derived status views.
package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for transport mapping.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
)

// Stable reason codes. Clients branch on these, so they never change.
const (
	ReasonInsufficientQuantity  = "insufficient_quantity"
	ReasonNotCommunityMember    = "not_community_member"
	ReasonOfferNotEditable      = "offer_not_editable"
	ReasonOfferHasActiveRequest = "offer_has_active_request"
	ReasonOfferNotAvailable     = "offer_not_available"
	ReasonSelfRequest           = "self_request"
	ReasonQuantityExceedsOffer  = "quantity_exceeds_offer"
	ReasonRequestNotPending     = "request_not_pending"
	ReasonRequestNotApproved    = "request_not_approved"
	ReasonResourceNotFound      = "resource_not_found"
	ReasonOfferNotFound         = "offer_not_found"
	ReasonRequestNotFound       = "request_not_found"
	ReasonNotificationNotFound  = "notification_not_found"
	ReasonNotOwner              = "not_owner"
	ReasonNotRequester          = "not_requester"
	ReasonMissingField          = "missing_field"
	ReasonInvalidQuantity       = "invalid_quantity"
	ReasonInvalidCategory       = "invalid_category"
)

// Error is the engine's typed error. Kind drives the HTTP status, Reason is
// the machine-readable code, Message is for humans.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
}

func newError(kind Kind, reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a KindValidation error.
func Validation(reason, format string, args ...any) *Error {
	return newError(KindValidation, reason, format, args...)
}

// Conflict builds a KindConflict error.
func Conflict(reason, format string, args ...any) *Error {
	return newError(KindConflict, reason, format, args...)
}

// Authorization builds a KindAuthorization error.
func Authorization(reason, format string, args ...any) *Error {
	return newError(KindAuthorization, reason, format, args...)
}

// NotFound builds a KindNotFound error.
func NotFound(reason, format string, args ...any) *Error {
	return newError(KindNotFound, reason, format, args...)
}

// As unwraps err into an *Error if possible.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func isKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

func IsValidation(err error) bool    { return isKind(err, KindValidation) }
func IsConflict(err error) bool      { return isKind(err, KindConflict) }
func IsAuthorization(err error) bool { return isKind(err, KindAuthorization) }
func IsNotFound(err error) bool      { return isKind(err, KindNotFound) }

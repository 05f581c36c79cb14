// Package document owns the compliance lifecycle of fiscal documents.
// All status mutation funnels through Transition so the legal state
// machine cannot be bypassed.
package document

import (
	"time"

	"github.com/go-faster/errors"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/model"
)

// allowed maps each status to the set it may legally move to.
// ACCEPTED and CANCELED are terminal. ERROR and REJECTED re-enter the
// flow only through the explicit retry path: ERROR reuses the signed
// artifact, REJECTED is re-derived and re-signed first.
var allowed = map[model.DocumentStatus][]model.DocumentStatus{
	model.StatusDraft:    {model.StatusSigned, model.StatusCanceled},
	model.StatusSigned:   {model.StatusSent, model.StatusError, model.StatusCanceled},
	model.StatusSent:     {model.StatusAccepted, model.StatusRejected, model.StatusObserved, model.StatusError, model.StatusCanceled},
	model.StatusObserved: {model.StatusCanceled},
	model.StatusError:    {model.StatusSigned, model.StatusSent, model.StatusCanceled},
	model.StatusRejected: {model.StatusSigned, model.StatusSent},
	model.StatusAccepted: {},
	model.StatusCanceled: {},
}

// CanTransition reports whether from may legally move to to.
func CanTransition(from, to model.DocumentStatus) bool {
	for _, t := range allowed[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func Terminal(s model.DocumentStatus) bool {
	return s == model.StatusAccepted || s == model.StatusCanceled
}

// Retryable reports whether a document in s may be handed a fresh
// submission job. ACCEPTED documents can never be resent.
func Retryable(s model.DocumentStatus) bool {
	return s == model.StatusError || s == model.StatusRejected
}

// Transition applies the status change to doc or fails with
// ErrInvalidTransition. The document is mutated in place; persisting it
// is the caller's responsibility.
func Transition(doc *model.FiscalDocument, to model.DocumentStatus, now time.Time) error {
	if !CanTransition(doc.Status, to) {
		return errors.Wrapf(cpe.ErrInvalidTransition, "%s -> %s for %s", doc.Status, to, doc.FullNumber())
	}
	doc.Status = to
	doc.UpdatedAt = now
	return nil
}

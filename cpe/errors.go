package cpe

import "errors"

// Sentinel errors for the pipeline. Components return these (optionally
// wrapped) so callers can match with errors.Is and translate them into
// operator-facing messages without parsing strings.
var (
	// certificate loader
	ErrCertificateNotConfigured   = errors.New("certificate not configured for tenant")
	ErrCertificateInvalidPassword = errors.New("certificate bundle password is invalid")
	ErrCertificateMalformed       = errors.New("certificate bundle is malformed")
	ErrCertificateExpired         = errors.New("certificate is expired")
	ErrCertificateNotYetValid     = errors.New("certificate is not yet valid")

	// payload builder
	ErrInvalidCustomerData = errors.New("invalid customer data")
	ErrEmptyDocument       = errors.New("document has no line items")

	// signer
	ErrSignatureFailed = errors.New("signature failed")

	// lifecycle
	ErrAlreadySigned     = errors.New("document is already signed")
	ErrInvalidTransition = errors.New("illegal document status transition")
	ErrNotRetryable      = errors.New("document status does not allow retry")

	// general
	ErrNotFound           = errors.New("not found")
	ErrFeatureDisabled    = errors.New("electronic invoicing is not enabled for tenant")
	ErrSettingsIncomplete = errors.New("tenant fiscal settings are incomplete")
)

// FailureClass tells the worker whether a remote failure may be retried.
type FailureClass int

const (
	// ClassTransient covers connectivity, timeouts and 5xx-equivalent
	// faults. Retried with backoff up to the attempt ceiling.
	ClassTransient FailureClass = iota
	// ClassPermanent covers explicit content rejections. Never retried.
	ClassPermanent
)

type classifiedError struct {
	err   error
	class FailureClass
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }
func (e *classifiedError) Class() FailureClass {
	return e.class
}

// Transient wraps err as a retryable remote failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTransient}
}

// Permanent wraps err as a non-retryable remote failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassPermanent}
}

// ClassOf reports the failure class of err. Unclassified errors are
// treated as transient, the safe default for infrastructure faults.
func ClassOf(err error) FailureClass {
	var c *classifiedError
	if errors.As(err, &c) {
		return c.class
	}
	return ClassTransient
}

// IsPermanent reports whether err was explicitly classified permanent.
func IsPermanent(err error) bool {
	var c *classifiedError
	return errors.As(err, &c) && c.class == ClassPermanent
}

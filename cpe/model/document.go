package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind identifies the CPE variant. Codes follow the authority's
// document-type catalogue.
type DocumentKind string

const (
	KindInvoice    DocumentKind = "01" // factura, requires business tax id
	KindReceipt    DocumentKind = "03" // boleta de venta
	KindCreditNote DocumentKind = "07"
	KindDebitNote  DocumentKind = "08"
	KindSummary    DocumentKind = "RC" // daily periodic summary, ticket-based
	KindVoidedSet  DocumentKind = "RA" // voided-documents set, ticket-based
)

// TicketBased reports whether submissions of this kind are processed in
// batch and must be polled with the returned ticket.
func (k DocumentKind) TicketBased() bool {
	return k == KindSummary || k == KindVoidedSet
}

// DocumentStatus is the compliance lifecycle state. Transitions are
// owned by the document package; nothing else writes status fields.
type DocumentStatus string

const (
	StatusDraft    DocumentStatus = "DRAFT"
	StatusSigned   DocumentStatus = "SIGNED"
	StatusSent     DocumentStatus = "SENT"
	StatusAccepted DocumentStatus = "ACCEPTED"
	StatusRejected DocumentStatus = "REJECTED"
	StatusObserved DocumentStatus = "OBSERVED"
	StatusError    DocumentStatus = "ERROR"
	StatusCanceled DocumentStatus = "CANCELED"
)

// CustomerIDType is the identity-document catalogue code of the customer.
type CustomerIDType string

const (
	CustomerDNI CustomerIDType = "1" // national identity card, 8 digits
	CustomerRUC CustomerIDType = "6" // business tax id, 11 digits
)

// RemoteOutcome holds the authority's answer for a document. It is only
// populated once a submission has reached the remote service, so status
// alone tells whether the fields are meaningful.
type RemoteOutcome struct {
	Ticket       string
	Code         int
	Description  string
	RespondedAt  time.Time
	CDR          []byte // opaque receipt archive, stored as-is
	Observations []string
}

// FiscalDocument is the tax-document record. Created in DRAFT, mutated
// only by the signer (artifacts, SIGNED) and the worker (remote fields,
// SENT and beyond). Never deleted, only superseded by a referencing
// credit/void document.
type FiscalDocument struct {
	ID       string
	TenantID string

	Kind     DocumentKind
	Series   string
	Sequence int64

	IssuerTaxID    string
	IssuerName     string
	CustomerID     string
	CustomerIDType CustomerIDType
	CustomerName   string

	Currency      string
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	IssuedAt      time.Time

	// ReferenceID points at the prior document for credit/debit notes
	// and voided-sets.
	ReferenceID string

	Status DocumentStatus

	// Artifacts, present iff Status is SIGNED or later. SignedXML is
	// immutable once produced; retries reuse it untouched.
	SignedXML []byte
	Hash      string
	QRPayload string

	Remote RemoteOutcome

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullNumber composes the series-sequence identifier, unique per
// tenant and series (e.g. "F001-00000042").
func (d *FiscalDocument) FullNumber() string {
	return fmt.Sprintf("%s-%08d", d.Series, d.Sequence)
}

// Signed reports whether the signed artifact exists.
func (d *FiscalDocument) Signed() bool {
	return len(d.SignedXML) > 0
}

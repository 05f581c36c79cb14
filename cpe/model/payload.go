package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentPayload is the schema-agnostic fiscal payload the XML
// generator renders. Produced by the payload builder from a DRAFT
// document and its originating sale; never persisted.
type DocumentPayload struct {
	Kind       DocumentKind
	Series     string
	Sequence   int64
	FullNumber string
	IssuedAt   time.Time

	Issuer   Party
	Customer Party

	Lines  []PayloadLine
	Totals Totals

	// ReferenceNumber names the prior document for notes and voided-sets.
	ReferenceNumber string
}

// Party is an issuer or customer block.
type Party struct {
	TaxID  string
	IDType CustomerIDType
	Name   string
}

// PayloadLine is one ordered line item.
type PayloadLine struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	TaxCategory string // authority tax-category catalogue code
}

// Totals is the document totals block.
type Totals struct {
	Currency string
	Taxable  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// SaleSnapshot is what the sales/checkout subsystem hands over for a
// document. The pipeline reads it, never writes it back.
type SaleSnapshot struct {
	Lines []SaleLine
}

type SaleLine struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxCategory string
	TaxRate     decimal.Decimal // e.g. 0.18
}

// Package payload builds the schema-agnostic fiscal payload for a DRAFT
// document from its originating sale. Validation happens here so bad
// customer data never reaches the XML generator.
package payload

import (
	"regexp"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/model"
)

var (
	rucRe = regexp.MustCompile(`^(10|15|16|17|20)\d{9}$`)
	dniRe = regexp.MustCompile(`^\d{8}$`)
)

// Build produces the payload for doc and its sale. The document is not
// mutated; rejected input surfaces as ErrInvalidCustomerData or
// ErrEmptyDocument.
func Build(doc *model.FiscalDocument, sale model.SaleSnapshot) (*model.DocumentPayload, error) {
	if err := validateCustomer(doc); err != nil {
		return nil, err
	}
	if len(sale.Lines) == 0 {
		return nil, cpe.ErrEmptyDocument
	}

	lines := make([]model.PayloadLine, 0, len(sale.Lines))
	taxable := decimal.Zero
	tax := decimal.Zero

	for _, sl := range sale.Lines {
		subtotal := sl.Quantity.Mul(sl.UnitPrice).Round(2)
		lineTax := subtotal.Mul(sl.TaxRate).Round(2)

		lines = append(lines, model.PayloadLine{
			Description: sl.Description,
			Quantity:    sl.Quantity,
			UnitPrice:   sl.UnitPrice,
			Subtotal:    subtotal,
			TaxCategory: sl.TaxCategory,
		})

		taxable = taxable.Add(subtotal)
		tax = tax.Add(lineTax)
	}

	reference := ""
	if doc.ReferenceID != "" {
		reference = doc.ReferenceID
	}

	return &model.DocumentPayload{
		Kind:       doc.Kind,
		Series:     doc.Series,
		Sequence:   doc.Sequence,
		FullNumber: doc.FullNumber(),
		IssuedAt:   doc.IssuedAt,
		Issuer: model.Party{
			TaxID:  doc.IssuerTaxID,
			IDType: model.CustomerRUC,
			Name:   doc.IssuerName,
		},
		Customer: model.Party{
			TaxID:  doc.CustomerID,
			IDType: doc.CustomerIDType,
			Name:   doc.CustomerName,
		},
		Lines: lines,
		Totals: model.Totals{
			Currency: doc.Currency,
			Taxable:  taxable,
			Tax:      tax,
			Total:    taxable.Add(tax),
		},
		ReferenceNumber: reference,
	}, nil
}

func validateCustomer(doc *model.FiscalDocument) error {
	switch doc.CustomerIDType {
	case model.CustomerRUC:
		if !rucRe.MatchString(doc.CustomerID) {
			return errors.Wrapf(cpe.ErrInvalidCustomerData, "%q is not a valid RUC", doc.CustomerID)
		}
	case model.CustomerDNI:
		if !dniRe.MatchString(doc.CustomerID) {
			return errors.Wrapf(cpe.ErrInvalidCustomerData, "%q is not a valid DNI", doc.CustomerID)
		}
	default:
		return errors.Wrapf(cpe.ErrInvalidCustomerData, "unknown customer id type %q", doc.CustomerIDType)
	}

	// an invoice is only valid against a business tax id
	if doc.Kind == model.KindInvoice && doc.CustomerIDType != model.CustomerRUC {
		return errors.Wrap(cpe.ErrInvalidCustomerData, "invoice requires a business tax id (RUC)")
	}

	if doc.CustomerName == "" {
		return errors.Wrap(cpe.ErrInvalidCustomerData, "customer name is empty")
	}
	return nil
}

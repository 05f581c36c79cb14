package payload

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/model"
)

func receiptDoc() *model.FiscalDocument {
	return &model.FiscalDocument{
		ID:             "doc-1",
		TenantID:       "tenant-1",
		Kind:           model.KindReceipt,
		Series:         "B001",
		Sequence:       42,
		IssuerTaxID:    "20123456789",
		IssuerName:     "DEMO COMPANY S.A.C.",
		CustomerID:     "12345678",
		CustomerIDType: model.CustomerDNI,
		CustomerName:   "CLIENTE DE PRUEBA",
		Currency:       "PEN",
		IssuedAt:       time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		Status:         model.StatusDraft,
	}
}

func saleWithLines(lines ...model.SaleLine) model.SaleSnapshot {
	return model.SaleSnapshot{Lines: lines}
}

func TestBuild(t *testing.T) {

	doc := receiptDoc()
	sale := saleWithLines(
		model.SaleLine{
			Description: "PRODUCTO A",
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   decimal.NewFromFloat(50.00),
			TaxCategory: "S",
			TaxRate:     decimal.NewFromFloat(0.18),
		},
		model.SaleLine{
			Description: "PRODUCTO B",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromFloat(10.50),
			TaxCategory: "S",
			TaxRate:     decimal.NewFromFloat(0.18),
		},
	)

	p, err := Build(doc, sale)
	require.NoError(t, err)

	assert.Equal(t, "B001-00000042", p.FullNumber)
	assert.Len(t, p.Lines, 2)
	assert.True(t, p.Totals.Taxable.Equal(decimal.NewFromFloat(110.50)), "taxable: %s", p.Totals.Taxable)
	assert.True(t, p.Totals.Tax.Equal(decimal.NewFromFloat(19.89)), "tax: %s", p.Totals.Tax)
	assert.True(t, p.Totals.Total.Equal(decimal.NewFromFloat(130.39)), "total: %s", p.Totals.Total)
	assert.Equal(t, "PEN", p.Totals.Currency)
}

func TestBuild_lineRounding(t *testing.T) {

	// each line rounds to 2 decimals before summing
	doc := receiptDoc()
	sale := saleWithLines(model.SaleLine{
		Description: "PRODUCTO",
		Quantity:    decimal.NewFromInt(3),
		UnitPrice:   decimal.NewFromFloat(33.333),
		TaxCategory: "S",
		TaxRate:     decimal.NewFromFloat(0.18),
	})

	p, err := Build(doc, sale)
	require.NoError(t, err)

	assert.True(t, p.Lines[0].Subtotal.Equal(decimal.NewFromFloat(100.00)), "subtotal: %s", p.Lines[0].Subtotal)
	assert.True(t, p.Totals.Tax.Equal(decimal.NewFromFloat(18.00)), "tax: %s", p.Totals.Tax)
}

func TestBuild_emptySale(t *testing.T) {

	_, err := Build(receiptDoc(), model.SaleSnapshot{})
	assert.ErrorIs(t, err, cpe.ErrEmptyDocument)
}

func TestBuild_customerValidation(t *testing.T) {

	line := model.SaleLine{
		Description: "PRODUCTO",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.NewFromFloat(10),
		TaxCategory: "S",
		TaxRate:     decimal.NewFromFloat(0.18),
	}

	tests := []struct {
		name   string
		mutate func(doc *model.FiscalDocument)
	}{
		{"dni too short", func(d *model.FiscalDocument) { d.CustomerID = "1234" }},
		{"dni with letters", func(d *model.FiscalDocument) { d.CustomerID = "1234567A" }},
		{"ruc bad prefix", func(d *model.FiscalDocument) {
			d.CustomerIDType = model.CustomerRUC
			d.CustomerID = "30123456789"
		}},
		{"ruc too long", func(d *model.FiscalDocument) {
			d.CustomerIDType = model.CustomerRUC
			d.CustomerID = "201234567890"
		}},
		{"unknown id type", func(d *model.FiscalDocument) { d.CustomerIDType = "9" }},
		{"empty name", func(d *model.FiscalDocument) { d.CustomerName = "" }},
		{"invoice against dni", func(d *model.FiscalDocument) { d.Kind = model.KindInvoice }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := receiptDoc()
			tt.mutate(doc)
			_, err := Build(doc, saleWithLines(line))
			assert.ErrorIs(t, err, cpe.ErrInvalidCustomerData)
		})
	}
}

func TestBuild_invoiceWithRUC(t *testing.T) {

	doc := receiptDoc()
	doc.Kind = model.KindInvoice
	doc.Series = "F001"
	doc.CustomerIDType = model.CustomerRUC
	doc.CustomerID = "20987654321"

	p, err := Build(doc, saleWithLines(model.SaleLine{
		Description: "SERVICIO",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.NewFromFloat(100),
		TaxCategory: "S",
		TaxRate:     decimal.NewFromFloat(0.18),
	}))
	require.NoError(t, err)
	assert.Equal(t, model.CustomerRUC, p.Customer.IDType)
}

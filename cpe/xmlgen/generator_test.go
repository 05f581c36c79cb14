package xmlgen

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturalo/go-cpe/cpe/model"
)

func testPayload(kind model.DocumentKind) *model.DocumentPayload {
	return &model.DocumentPayload{
		Kind:       kind,
		Series:     "B001",
		Sequence:   7,
		FullNumber: "B001-00000007",
		IssuedAt:   time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		Issuer:     model.Party{TaxID: "20123456789", IDType: model.CustomerRUC, Name: "DEMO COMPANY S.A.C."},
		Customer:   model.Party{TaxID: "12345678", IDType: model.CustomerDNI, Name: "CLIENTE DE PRUEBA"},
		Lines: []model.PayloadLine{
			{
				Description: "PRODUCTO A",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.NewFromFloat(50),
				Subtotal:    decimal.NewFromFloat(100),
				TaxCategory: "S",
			},
		},
		Totals: model.Totals{
			Currency: "PEN",
			Taxable:  decimal.NewFromFloat(100),
			Tax:      decimal.NewFromFloat(18),
			Total:    decimal.NewFromFloat(118),
		},
	}
}

func TestGenerate_roots(t *testing.T) {

	tests := []struct {
		kind model.DocumentKind
		root string
		line string
	}{
		{model.KindInvoice, "Invoice", "cac:InvoiceLine"},
		{model.KindReceipt, "Invoice", "cac:InvoiceLine"},
		{model.KindCreditNote, "CreditNote", "cac:CreditNoteLine"},
		{model.KindDebitNote, "DebitNote", "cac:DebitNoteLine"},
		{model.KindSummary, "SummaryDocuments", "sac:SummaryDocumentsLine"},
		{model.KindVoidedSet, "VoidedDocuments", "sac:SummaryDocumentsLine"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			doc, err := Generate(testPayload(tt.kind))
			require.NoError(t, err)

			assert.Equal(t, tt.root, doc.Root().Tag)
			assert.NotNil(t, doc.Root().FindElement("./"+tt.line))
		})
	}
}

func TestGenerate_unsupportedKind(t *testing.T) {

	p := testPayload("99")
	_, err := Generate(p)
	assert.Error(t, err)
}

func TestGenerate_basicFields(t *testing.T) {

	doc, err := Generate(testPayload(model.KindReceipt))
	require.NoError(t, err)
	root := doc.Root()

	assert.Equal(t, "2.1", root.FindElement("./cbc:UBLVersionID").Text())
	assert.Equal(t, "B001-00000007", root.FindElement("./cbc:ID").Text())
	assert.Equal(t, "2026-08-20", root.FindElement("./cbc:IssueDate").Text())
	assert.Equal(t, "03", root.FindElement("./cbc:InvoiceTypeCode").Text())
	assert.Equal(t, "PEN", root.FindElement("./cbc:DocumentCurrencyCode").Text())

	payable := root.FindElement("./cac:LegalMonetaryTotal/cbc:PayableAmount")
	require.NotNil(t, payable)
	assert.Equal(t, "118.00", payable.Text())
	assert.Equal(t, "PEN", payable.SelectAttrValue("currencyID", ""))
}

func TestGenerate_partyBlocks(t *testing.T) {

	doc, err := Generate(testPayload(model.KindReceipt))
	require.NoError(t, err)
	root := doc.Root()

	supplier := root.FindElement("./cac:AccountingSupplierParty/cac:Party")
	require.NotNil(t, supplier)
	supplierID := supplier.FindElement("./cac:PartyIdentification/cbc:ID")
	require.NotNil(t, supplierID)
	assert.Equal(t, "20123456789", supplierID.Text())
	assert.Equal(t, string(model.CustomerRUC), supplierID.SelectAttrValue("schemeID", ""))
	assert.Equal(t, "DEMO COMPANY S.A.C.",
		supplier.FindElement("./cac:PartyLegalEntity/cbc:RegistrationName").Text())

	customer := root.FindElement("./cac:AccountingCustomerParty/cac:Party")
	require.NotNil(t, customer)
	customerID := customer.FindElement("./cac:PartyIdentification/cbc:ID")
	require.NotNil(t, customerID)
	assert.Equal(t, "12345678", customerID.Text())
	assert.Equal(t, string(model.CustomerDNI), customerID.SelectAttrValue("schemeID", ""))
}

func TestGenerate_placeholderFirstChild(t *testing.T) {

	doc, err := Generate(testPayload(model.KindInvoice))
	require.NoError(t, err)

	// the signature slot must be the first child element per schema
	first := doc.Root().ChildElements()[0]
	assert.Equal(t, "ext:UBLExtensions", first.FullTag())

	slot := Placeholder(doc)
	require.NotNil(t, slot)
	assert.Empty(t, slot.ChildElements())
}

func TestGenerate_creditNoteReference(t *testing.T) {

	p := testPayload(model.KindCreditNote)
	p.ReferenceNumber = "B001-00000001"

	doc, err := Generate(p)
	require.NoError(t, err)

	ref := doc.Root().FindElement("./cac:BillingReference/cac:InvoiceDocumentReference/cbc:ID")
	require.NotNil(t, ref)
	assert.Equal(t, "B001-00000001", ref.Text())
}

func TestPlaceholder_occupiedSlot(t *testing.T) {

	doc, err := Generate(testPayload(model.KindInvoice))
	require.NoError(t, err)

	slot := Placeholder(doc)
	require.NotNil(t, slot)
	slot.CreateElement("ds:Signature")

	// an occupied slot is no longer a placeholder
	assert.Nil(t, Placeholder(doc))
}

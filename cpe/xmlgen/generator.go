// Package xmlgen renders a fiscal payload into an unsigned CPE XML
// document. The generator leaves an empty extension-content element at
// the exact point the enveloped signature must later occupy; the signer
// removes it before canonicalization so the authority's recomputed
// digest matches.
package xmlgen

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/facturalo/go-cpe/cpe/model"
)

// UBL namespace set shared by all document kinds.
const (
	NSCac = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NSCbc = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NSExt = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"

	nsInvoice    = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCreditNote = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
	nsDebitNote  = "urn:oasis:names:specification:ubl:schema:xsd:DebitNote-2"
	nsSummary    = "urn:sunat:names:specification:ubl:peru:schema:xsd:SummaryDocuments-1"
	nsVoided     = "urn:sunat:names:specification:ubl:peru:schema:xsd:VoidedDocuments-1"
	nsSac        = "urn:sunat:names:specification:ubl:peru:schema:xsd:SunatAggregateComponents-1"
)

// placeholderPath locates the signature slot inside the extension container.
const placeholderPath = "./ext:UBLExtensions/ext:UBLExtension/ext:ExtensionContent"

// Generate renders payload into an unsigned document. No XML
// declaration is emitted; the document starts at the root element.
func Generate(p *model.DocumentPayload) (*etree.Document, error) {
	rootName, rootNS, err := rootFor(p.Kind)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	root := doc.CreateElement(rootName)
	root.CreateAttr("xmlns", rootNS)
	root.CreateAttr("xmlns:cac", NSCac)
	root.CreateAttr("xmlns:cbc", NSCbc)
	root.CreateAttr("xmlns:ext", NSExt)
	if p.Kind == model.KindSummary || p.Kind == model.KindVoidedSet {
		root.CreateAttr("xmlns:sac", nsSac)
	}

	// signature slot, first child by schema
	extensions := root.CreateElement("ext:UBLExtensions")
	extension := extensions.CreateElement("ext:UBLExtension")
	extension.CreateElement("ext:ExtensionContent")

	text(root, "cbc:UBLVersionID", "2.1")
	text(root, "cbc:CustomizationID", "2.0")
	text(root, "cbc:ID", p.FullNumber)
	text(root, "cbc:IssueDate", p.IssuedAt.Format("2006-01-02"))

	switch p.Kind {
	case model.KindInvoice, model.KindReceipt:
		text(root, "cbc:InvoiceTypeCode", string(p.Kind))
	case model.KindCreditNote, model.KindDebitNote:
		text(root, "cbc:ResponseCode", string(p.Kind))
		if p.ReferenceNumber != "" {
			ref := root.CreateElement("cac:BillingReference")
			inner := ref.CreateElement("cac:InvoiceDocumentReference")
			text(inner, "cbc:ID", p.ReferenceNumber)
		}
	case model.KindSummary, model.KindVoidedSet:
		text(root, "cbc:ReferenceDate", p.IssuedAt.Format("2006-01-02"))
		if p.ReferenceNumber != "" {
			text(root, "cbc:DocumentReference", p.ReferenceNumber)
		}
	}

	text(root, "cbc:DocumentCurrencyCode", p.Totals.Currency)

	party(root, "cac:AccountingSupplierParty", p.Issuer)
	party(root, "cac:AccountingCustomerParty", p.Customer)

	taxTotal := root.CreateElement("cac:TaxTotal")
	amount(taxTotal, "cbc:TaxAmount", p.Totals.Tax, p.Totals.Currency)

	monetary := root.CreateElement("cac:LegalMonetaryTotal")
	amount(monetary, "cbc:LineExtensionAmount", p.Totals.Taxable, p.Totals.Currency)
	amount(monetary, "cbc:PayableAmount", p.Totals.Total, p.Totals.Currency)

	lineName := lineFor(p.Kind)
	for i, l := range p.Lines {
		line := root.CreateElement(lineName)
		text(line, "cbc:ID", fmt.Sprintf("%d", i+1))
		qty := line.CreateElement("cbc:InvoicedQuantity")
		qty.CreateAttr("unitCode", "NIU")
		qty.SetText(l.Quantity.String())
		amount(line, "cbc:LineExtensionAmount", l.Subtotal, p.Totals.Currency)

		item := line.CreateElement("cac:Item")
		text(item, "cbc:Description", l.Description)
		if l.TaxCategory != "" {
			cat := item.CreateElement("cac:ClassifiedTaxCategory")
			text(cat, "cbc:ID", l.TaxCategory)
		}

		price := line.CreateElement("cac:Price")
		amount(price, "cbc:PriceAmount", l.UnitPrice, p.Totals.Currency)
	}

	return doc, nil
}

// GenerateBytes is Generate followed by serialization.
func GenerateBytes(p *model.DocumentPayload) ([]byte, error) {
	doc, err := Generate(p)
	if err != nil {
		return nil, err
	}
	return doc.WriteToBytes()
}

// Placeholder returns the empty extension-content element the signature
// must replace, or nil when the document carries none.
func Placeholder(doc *etree.Document) *etree.Element {
	el := doc.Root().FindElement(placeholderPath)
	if el == nil || len(el.ChildElements()) != 0 {
		return nil
	}
	return el
}

func rootFor(kind model.DocumentKind) (name, ns string, err error) {
	switch kind {
	case model.KindInvoice, model.KindReceipt:
		return "Invoice", nsInvoice, nil
	case model.KindCreditNote:
		return "CreditNote", nsCreditNote, nil
	case model.KindDebitNote:
		return "DebitNote", nsDebitNote, nil
	case model.KindSummary:
		return "SummaryDocuments", nsSummary, nil
	case model.KindVoidedSet:
		return "VoidedDocuments", nsVoided, nil
	}
	return "", "", fmt.Errorf("unsupported document kind %q", kind)
}

func lineFor(kind model.DocumentKind) string {
	switch kind {
	case model.KindCreditNote:
		return "cac:CreditNoteLine"
	case model.KindDebitNote:
		return "cac:DebitNoteLine"
	case model.KindSummary, model.KindVoidedSet:
		return "sac:SummaryDocumentsLine"
	default:
		return "cac:InvoiceLine"
	}
}

// party renders an issuer or customer block. The identifier carries the
// catalogue 06 scheme code so the authority can validate it against the
// declared identity type.
func party(parent *etree.Element, name string, p model.Party) {
	container := parent.CreateElement(name)
	inner := container.CreateElement("cac:Party")

	ident := inner.CreateElement("cac:PartyIdentification")
	id := ident.CreateElement("cbc:ID")
	id.CreateAttr("schemeID", string(p.IDType))
	id.SetText(p.TaxID)

	legal := inner.CreateElement("cac:PartyLegalEntity")
	text(legal, "cbc:RegistrationName", p.Name)
}

func text(parent *etree.Element, name, value string) {
	parent.CreateElement(name).SetText(value)
}

func amount(parent *etree.Element, name string, v decimal.Decimal, currency string) {
	el := parent.CreateElement(name)
	el.CreateAttr("currencyID", currency)
	el.SetText(v.StringFixed(2))
}

package sign

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/cert"
	"github.com/facturalo/go-cpe/cpe/model"
	"github.com/facturalo/go-cpe/cpe/xmlgen"
)

func testMaterial(t *testing.T) *cert.Material {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "TEST SIGNER"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	parsed, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &cert.Material{
		Certificate: parsed,
		PrivateKey:  key,
		CertBase64:  base64.StdEncoding.EncodeToString(der),
		NotBefore:   parsed.NotBefore,
		NotAfter:    parsed.NotAfter,
	}
}

func testDocument(t *testing.T, total float64) *etree.Document {
	t.Helper()

	doc, err := xmlgen.Generate(&model.DocumentPayload{
		Kind:       model.KindReceipt,
		Series:     "B001",
		Sequence:   1,
		FullNumber: "B001-00000001",
		IssuedAt:   time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		Issuer:     model.Party{TaxID: "20123456789", IDType: model.CustomerRUC, Name: "DEMO COMPANY S.A.C."},
		Customer:   model.Party{TaxID: "12345678", IDType: model.CustomerDNI, Name: "CLIENTE DE PRUEBA"},
		Lines: []model.PayloadLine{
			{
				Description: "PRODUCTO",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.NewFromFloat(total),
				Subtotal:    decimal.NewFromFloat(total),
				TaxCategory: "S",
			},
		},
		Totals: model.Totals{
			Currency: "PEN",
			Taxable:  decimal.NewFromFloat(total),
			Tax:      decimal.Zero,
			Total:    decimal.NewFromFloat(total),
		},
	})
	require.NoError(t, err)
	return doc
}

func TestSign(t *testing.T) {

	material := testMaterial(t)
	doc := testDocument(t, 100)

	result, err := Sign(doc, material)
	require.NoError(t, err)

	assert.NotEmpty(t, result.SignedXML)
	assert.NotEmpty(t, result.DigestValue)
	assert.NotEmpty(t, result.SignatureValue)
	assert.NotEmpty(t, result.Hash)

	signed := etree.NewDocument()
	require.NoError(t, signed.ReadFromBytes(result.SignedXML))

	sig := signed.FindElement("//ds:Signature")
	require.NotNil(t, sig, "signature element missing")
	assert.Equal(t, "SignatureSP", sig.SelectAttrValue("Id", ""))
	assert.Equal(t, "ext:ExtensionContent", sig.Parent().FullTag())

	digest := sig.FindElement("./ds:SignedInfo/ds:Reference/ds:DigestValue")
	require.NotNil(t, digest)
	assert.Equal(t, result.DigestValue, digest.Text())

	// SignedInfo must carry its own namespace declaration, otherwise the
	// detached subtree cannot be canonicalized when the signature is checked
	signedInfo := sig.FindElement("./ds:SignedInfo")
	require.NotNil(t, signedInfo)
	assert.Equal(t, "http://www.w3.org/2000/09/xmldsig#", signedInfo.SelectAttrValue("xmlns:ds", ""))
}

func TestSign_doesNotMutateInput(t *testing.T) {

	material := testMaterial(t)
	doc := testDocument(t, 100)

	before, err := doc.WriteToBytes()
	require.NoError(t, err)

	_, err = Sign(doc, material)
	require.NoError(t, err)

	after, err := doc.WriteToBytes()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSign_digestDeterministic(t *testing.T) {

	material := testMaterial(t)

	first, err := Sign(testDocument(t, 100), material)
	require.NoError(t, err)
	second, err := Sign(testDocument(t, 100), material)
	require.NoError(t, err)

	// same content, same digest; the signature value may differ only if
	// the scheme were randomized, PKCS1v15 is deterministic
	assert.Equal(t, first.DigestValue, second.DigestValue)
	assert.Equal(t, first.SignatureValue, second.SignatureValue)
}

func TestSign_digestChangesWithContent(t *testing.T) {

	material := testMaterial(t)

	a, err := Sign(testDocument(t, 100.00), material)
	require.NoError(t, err)
	b, err := Sign(testDocument(t, 100.01), material)
	require.NoError(t, err)

	assert.NotEqual(t, a.DigestValue, b.DigestValue)
}

func TestCanonicalize_idempotent(t *testing.T) {

	doc := testDocument(t, 100)

	first, err := newCanonicalizer().Canonicalize(doc.Root())
	require.NoError(t, err)

	reparsed := etree.NewDocument()
	require.NoError(t, reparsed.ReadFromBytes(first))

	second, err := newCanonicalizer().Canonicalize(reparsed.Root())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSign_missingPlaceholder(t *testing.T) {

	material := testMaterial(t)

	doc := etree.NewDocument()
	doc.CreateElement("Invoice")

	_, err := Sign(doc, material)
	assert.ErrorIs(t, err, cpe.ErrSignatureFailed)
}

func TestVerifyDigest(t *testing.T) {

	material := testMaterial(t)
	result, err := Sign(testDocument(t, 100), material)
	require.NoError(t, err)

	ok, err := VerifyDigest(result.SignedXML)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyDigest_tampered(t *testing.T) {

	material := testMaterial(t)
	result, err := Sign(testDocument(t, 100), material)
	require.NoError(t, err)

	tampered := etree.NewDocument()
	require.NoError(t, tampered.ReadFromBytes(result.SignedXML))
	amount := tampered.FindElement("//cac:LegalMonetaryTotal/cbc:PayableAmount")
	require.NotNil(t, amount)
	amount.SetText("999.00")

	raw, err := tampered.WriteToBytes()
	require.NoError(t, err)

	ok, err := VerifyDigest(raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignature(t *testing.T) {

	material := testMaterial(t)
	result, err := Sign(testDocument(t, 100), material)
	require.NoError(t, err)

	assert.NoError(t, VerifySignature(result.SignedXML))
}

func TestVerifySignature_wrongKey(t *testing.T) {

	material := testMaterial(t)
	other := testMaterial(t)

	result, err := Sign(testDocument(t, 100), material)
	require.NoError(t, err)

	// swap the embedded certificate for an unrelated one
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(result.SignedXML))
	certEl := doc.FindElement("//ds:X509Certificate")
	require.NotNil(t, certEl)
	certEl.SetText(other.CertBase64)

	raw, err := doc.WriteToBytes()
	require.NoError(t, err)

	assert.Error(t, VerifySignature(raw))
}

// Package sign produces the enveloped XML-DSig signature for generated
// CPE documents. The byte-exact order of operations matters: the
// authority's validator re-canonicalizes, re-digests and compares, so
// the smallest deviation is a rejection.
package sign

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/cert"
	"github.com/facturalo/go-cpe/cpe/xmlgen"
)

const (
	nsDsig       = "http://www.w3.org/2000/09/xmldsig#"
	algExcC14N   = "http://www.w3.org/2001/10/xml-exc-c14n#"
	algRsaSha256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	algEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	algSha256    = "http://www.w3.org/2001/04/xmlenc#sha256"

	signatureID = "SignatureSP"
)

// Result carries the signing artifacts. SignedXML is the final document
// with the signature element in place; Hash is the content hash of
// exactly those bytes (base64 SHA-256), used as the stored hash and the
// QR payload component.
type Result struct {
	SignedXML      []byte
	DigestValue    string
	SignatureValue string
	Hash           string
}

func newCanonicalizer() dsig.Canonicalizer {
	return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
}

// Sign signs the generated document with material. The input document
// is never mutated; any failure leaves no partial artifact behind.
func Sign(doc *etree.Document, material *cert.Material) (*Result, error) {
	if xmlgen.Placeholder(doc) == nil {
		return nil, errors.Wrap(cpe.ErrSignatureFailed, "document has no signature placeholder")
	}

	// digest input: the document with the placeholder removed
	working := doc.Copy()
	placeholder := xmlgen.Placeholder(working)
	placeholder.Parent().RemoveChild(placeholder)

	canon := newCanonicalizer()
	canonical, err := canon.Canonicalize(working.Root())
	if err != nil {
		return nil, errors.Wrap(cpe.ErrSignatureFailed, err.Error())
	}

	digest := sha256.Sum256(canonical)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	signedInfo := buildSignedInfo(digestB64)

	canonicalInfo, err := canon.Canonicalize(signedInfo)
	if err != nil {
		return nil, errors.Wrap(cpe.ErrSignatureFailed, err.Error())
	}

	infoDigest := sha256.Sum256(canonicalInfo)
	sig, err := rsa.SignPKCS1v15(rand.Reader, material.PrivateKey, crypto.SHA256, infoDigest[:])
	if err != nil {
		return nil, errors.Wrap(cpe.ErrSignatureFailed, err.Error())
	}
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	signature := assembleSignature(signedInfo, sigB64, material.CertBase64)

	// place the signature inside the extension container of a fresh
	// copy, leaving the caller's document untouched
	final := doc.Copy()
	xmlgen.Placeholder(final).AddChild(signature)

	signedXML, err := final.WriteToBytes()
	if err != nil {
		return nil, errors.Wrap(cpe.ErrSignatureFailed, err.Error())
	}

	contentHash := sha256.Sum256(signedXML)

	return &Result{
		SignedXML:      signedXML,
		DigestValue:    digestB64,
		SignatureValue: sigB64,
		Hash:           base64.StdEncoding.EncodeToString(contentHash[:]),
	}, nil
}

// SignBytes parses raw XML and signs it.
func SignBytes(raw []byte, material *cert.Material) (*Result, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, errors.Wrap(cpe.ErrSignatureFailed, err.Error())
	}
	return Sign(doc, material)
}

func buildSignedInfo(digestB64 string) *etree.Element {
	signedInfo := etree.NewElement("ds:SignedInfo")
	signedInfo.CreateAttr("xmlns:ds", nsDsig)

	c14n := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14n.CreateAttr("Algorithm", algExcC14N)

	sigMethod := signedInfo.CreateElement("ds:SignatureMethod")
	sigMethod.CreateAttr("Algorithm", algRsaSha256)

	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "")

	transforms := ref.CreateElement("ds:Transforms")
	transform := transforms.CreateElement("ds:Transform")
	transform.CreateAttr("Algorithm", algEnveloped)

	digestMethod := ref.CreateElement("ds:DigestMethod")
	digestMethod.CreateAttr("Algorithm", algSha256)

	ref.CreateElement("ds:DigestValue").SetText(digestB64)

	return signedInfo
}

func assembleSignature(signedInfo *etree.Element, sigB64, certB64 string) *etree.Element {
	signature := etree.NewElement("ds:Signature")
	signature.CreateAttr("xmlns:ds", nsDsig)
	signature.CreateAttr("Id", signatureID)

	// SignedInfo keeps its own xmlns:ds declaration so the detached
	// subtree canonicalizes at verify time exactly as it did when signed
	signature.AddChild(signedInfo.Copy())

	signature.CreateElement("ds:SignatureValue").SetText(sigB64)

	keyInfo := signature.CreateElement("ds:KeyInfo")
	x509Data := keyInfo.CreateElement("ds:X509Data")
	x509Data.CreateElement("ds:X509Certificate").SetText(certB64)

	return signature
}

package sign

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"strings"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
)

// VerifyDigest recomputes the digest over the signed document with the
// signature's host container stripped and compares it to the DigestValue
// stored in the signature. Equality is necessary but not sufficient:
// this check alone does not prove the signature value itself. Use
// VerifySignature for the full cryptographic check.
func VerifyDigest(signedXML []byte) (bool, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return false, errors.Wrap(err, "parse signed document")
	}

	signature := findSignature(doc)
	if signature == nil {
		return false, errors.New("no signature element found")
	}

	stored := signature.FindElement("./ds:SignedInfo/ds:Reference/ds:DigestValue")
	if stored == nil {
		return false, errors.New("signature has no DigestValue")
	}
	storedValue := strings.TrimSpace(stored.Text())

	recomputed, err := recomputeDigest(doc, signature)
	if err != nil {
		return false, err
	}

	return recomputed == storedValue, nil
}

// VerifySignature performs the full check: the digest comparison of
// VerifyDigest plus RSA verification of the signature value over the
// canonicalized SignedInfo, using the certificate embedded in the
// signature. The source system only re-checked the digest; this closes
// that gap for callers that opt in.
func VerifySignature(signedXML []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return errors.Wrap(err, "parse signed document")
	}

	signature := findSignature(doc)
	if signature == nil {
		return errors.New("no signature element found")
	}

	stored := signature.FindElement("./ds:SignedInfo/ds:Reference/ds:DigestValue")
	if stored == nil {
		return errors.New("signature has no DigestValue")
	}
	recomputed, err := recomputeDigest(doc, signature)
	if err != nil {
		return err
	}
	if recomputed != strings.TrimSpace(stored.Text()) {
		return errors.New("digest mismatch")
	}

	signedInfo := signature.FindElement("./ds:SignedInfo")
	canonicalInfo, err := newCanonicalizer().Canonicalize(signedInfo)
	if err != nil {
		return errors.Wrap(err, "canonicalize SignedInfo")
	}

	sigValueEl := signature.FindElement("./ds:SignatureValue")
	certEl := signature.FindElement("./ds:KeyInfo/ds:X509Data/ds:X509Certificate")
	if sigValueEl == nil || certEl == nil {
		return errors.New("signature is missing SignatureValue or X509Certificate")
	}

	sigValue, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigValueEl.Text()))
	if err != nil {
		return errors.Wrap(err, "decode SignatureValue")
	}
	certDER, err := base64.StdEncoding.DecodeString(strings.TrimSpace(certEl.Text()))
	if err != nil {
		return errors.Wrap(err, "decode X509Certificate")
	}
	parsed, err := x509.ParseCertificate(certDER)
	if err != nil {
		return errors.Wrap(err, "parse embedded certificate")
	}
	pub, ok := parsed.PublicKey.(*rsa.PublicKey)
	if !ok {
		return errors.Errorf("embedded certificate has non-RSA key %T", parsed.PublicKey)
	}

	infoDigest := sha256.Sum256(canonicalInfo)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, infoDigest[:], sigValue); err != nil {
		return errors.Wrap(err, "verify signature value")
	}
	return nil
}

// recomputeDigest canonicalizes the document with the signature's host
// extension container removed, mirroring the signer's digest input.
func recomputeDigest(doc *etree.Document, signature *etree.Element) (string, error) {
	host := signature.Parent()
	if host == nil {
		return "", errors.New("signature has no host container")
	}

	stripped := doc.Copy()
	strippedSig := findSignature(stripped)
	strippedHost := strippedSig.Parent()
	strippedHost.Parent().RemoveChild(strippedHost)

	canonical, err := newCanonicalizer().Canonicalize(stripped.Root())
	if err != nil {
		return "", errors.Wrap(err, "canonicalize stripped document")
	}

	digest := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(digest[:]), nil
}

func findSignature(doc *etree.Document) *etree.Element {
	return doc.FindElement("//ds:Signature")
}

// Package qr builds the printable QR payload mandated for CPE receipts
// and renders it as a PNG.
package qr

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/model"
)

// Payload composes the pipe-separated QR content: issuer tax id,
// document kind, series, sequence, tax, total, issue date, customer id
// type, customer id and the signed-document hash.
func Payload(doc *model.FiscalDocument) string {
	fields := []string{
		doc.IssuerTaxID,
		string(doc.Kind),
		doc.Series,
		fmt.Sprintf("%d", doc.Sequence),
		doc.TaxAmount.StringFixed(2),
		doc.TotalAmount.StringFixed(2),
		doc.IssuedAt.Format("2006-01-02"),
		string(doc.CustomerIDType),
		doc.CustomerID,
		doc.Hash,
	}
	return strings.Join(fields, "|")
}

// PNG renders content as a 300px QR code.
func PNG(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, 300)
}

// VerificationLink builds the public lookup URL for a document on the
// given environment's verification host.
func VerificationLink(env cpe.Environment, doc *model.FiscalDocument) (string, error) {
	base, err := verificationBaseURL(env.BaseURL())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/consult/%s/%s/%s",
		strings.TrimRight(base, "/"),
		doc.IssuerTaxID,
		string(doc.Kind),
		doc.FullNumber(),
	), nil
}

// verificationBaseURL maps the API host onto the public consult host.
func verificationBaseURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base URL must include scheme and host, got: %q", base)
	}

	host := u.Host
	host = strings.Replace(host, "api-", "consult-", 1)
	host = strings.Replace(host, "api.", "consult.", 1)

	u.Host = host
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

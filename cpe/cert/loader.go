// Package cert turns a tenant's encrypted certificate bundle into
// usable signing material. Material lives in memory only; the encrypted
// bundle is the single persisted form.
package cert

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/youmark/pkcs8"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/mutex"
)

// Material is the parsed key material for one tenant. Read-only once
// loaded, never shared across tenants, never written to disk.
type Material struct {
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey

	// CertBase64 is the DER certificate, base64 encoded with PEM
	// headers stripped, ready for embedding in a signature element.
	CertBase64 string

	NotBefore time.Time
	NotAfter  time.Time
}

// ValidAt checks the certificate validity window. Mandatory before
// every signing operation, not just at load time.
func (m *Material) ValidAt(now time.Time) error {
	if now.Before(m.NotBefore) {
		return cpe.ErrCertificateNotYetValid
	}
	if now.After(m.NotAfter) {
		return cpe.ErrCertificateExpired
	}
	return nil
}

type cached struct {
	material *Material
	// content hash of the encrypted bundle the material came from, so a
	// rotated bundle invalidates the cache entry
	fingerprint [sha256.Size]byte
}

// Loader parses encrypted bundles and caches parsed material per tenant
// for the process lifetime. The cache holds material only, never
// passphrases.
type Loader struct {
	tenantMu mutex.KeyedRWMutex[string] // serializes parsing per tenant
	tableMu  sync.RWMutex
	cache    map[string]*cached
}

func NewLoader() *Loader {
	return &Loader{cache: make(map[string]*cached)}
}

func (l *Loader) lookup(tenantID string, fingerprint [sha256.Size]byte) *Material {
	l.tableMu.RLock()
	defer l.tableMu.RUnlock()
	if c := l.cache[tenantID]; c != nil && c.fingerprint == fingerprint {
		return c.material
	}
	return nil
}

// Load returns the material for tenantID, parsing bundle with
// passphrase on cache miss.
func (l *Loader) Load(tenantID string, bundle []byte, passphrase string) (*Material, error) {
	if len(bundle) == 0 || passphrase == "" {
		return nil, cpe.ErrCertificateNotConfigured
	}

	fingerprint := sha256.Sum256(bundle)
	if m := l.lookup(tenantID, fingerprint); m != nil {
		return m, nil
	}

	l.tenantMu.Lock(tenantID)
	defer l.tenantMu.Unlock(tenantID)

	// another goroutine may have parsed it while we waited
	if m := l.lookup(tenantID, fingerprint); m != nil {
		return m, nil
	}

	m, err := Parse(bundle, passphrase)
	if err != nil {
		return nil, err
	}

	l.tableMu.Lock()
	l.cache[tenantID] = &cached{material: m, fingerprint: fingerprint}
	l.tableMu.Unlock()
	return m, nil
}

// Parse decodes a PEM bundle holding an ENCRYPTED PRIVATE KEY block and
// a CERTIFICATE block and decrypts the key with passphrase.
func Parse(bundle []byte, passphrase string) (*Material, error) {
	var (
		key  *rsa.PrivateKey
		cert *x509.Certificate
	)

	rest := bundle
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		switch block.Type {
		case "ENCRYPTED PRIVATE KEY":
			keyAny, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, []byte(passphrase))
			if err != nil {
				return nil, errors.Wrap(cpe.ErrCertificateInvalidPassword, err.Error())
			}
			k, ok := keyAny.(*rsa.PrivateKey)
			if !ok {
				return nil, errors.Wrapf(cpe.ErrCertificateMalformed, "unsupported key type %T (expected RSA)", keyAny)
			}
			key = k
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(cpe.ErrCertificateMalformed, err.Error())
			}
			cert = c
		}
	}

	if key == nil {
		return nil, errors.Wrap(cpe.ErrCertificateMalformed, "no ENCRYPTED PRIVATE KEY block found")
	}
	if cert == nil {
		return nil, errors.Wrap(cpe.ErrCertificateMalformed, "no CERTIFICATE block found")
	}

	return &Material{
		Certificate: cert,
		PrivateKey:  key,
		CertBase64:  base64.StdEncoding.EncodeToString(cert.Raw),
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
	}, nil
}

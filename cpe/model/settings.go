package model

import "github.com/facturalo/go-cpe/cpe"

// Credentials authenticate against one environment of the remote
// service. Beta and production credentials are distinct records and are
// never inferred from each other.
type Credentials struct {
	Username string
	Password string
}

// TenantSettings is the per-tenant fiscal configuration record handed
// over by the settings subsystem.
type TenantSettings struct {
	TaxID        string
	BusinessName string
	Address      string

	// Environment selects the remote endpoint set for this tenant.
	// Moving a tenant to Production is a deliberate configuration
	// change made in the settings subsystem, never inferred here.
	Environment cpe.Environment

	// EncryptedCertBundle is a PEM bundle holding an ENCRYPTED PRIVATE
	// KEY block and a CERTIFICATE block. Parsed material is never
	// written back anywhere.
	EncryptedCertBundle []byte
	Passphrase          string

	Credentials Credentials
	Enabled     bool
}

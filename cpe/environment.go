package cpe

import (
	"fmt"
	"strings"
)

// Environment selects the tax-authority endpoint set. Beta is the
// non-binding integration environment, Production is legally binding.
// Credentials are scoped to a single environment and never shared.
type Environment int

const (
	Beta Environment = iota
	Production
)

func (e Environment) BaseURL() string {
	switch e {
	case Production:
		return "https://api.cpe.sunat.gob.pe/v1"
	case Beta:
		return "https://api-beta.cpe.sunat.gob.pe/v1"
	}
	panic("Invalid environment")
}

func (e Environment) Name() string {
	switch e {
	case Production:
		return "production"
	case Beta:
		return "beta"
	}
	panic("Invalid environment")
}

func (e *Environment) UnmarshalText(text []byte) error {
	val := strings.ToLower(strings.TrimSpace(string(text)))

	switch val {
	case "production", "prod":
		*e = Production
	case "beta", "test":
		*e = Beta
	default:
		return fmt.Errorf("invalid CPE_ENV: %q (allowed: production, beta)", val)
	}
	return nil
}

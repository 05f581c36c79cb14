// Package util holds the environment switches shared by the demo
// binary and the HTTP layer. Services themselves take configuration
// through their constructors; nothing here is read on a hot path.
package util

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "cpe.util")

// MustEnv returns the value of key or aborts the process. Meant for
// binary startup only.
func MustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Fatalf("required environment variable %s is not set", key)
	}
	return v
}

// EnvOr returns the value of key, or fallback when key is unset.
func EnvOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// BoolEnv reports whether key holds a value strconv.ParseBool accepts
// as true. Unset, empty and unparseable values all read as false.
func BoolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// DebugEnabled switches verbose request/response dumps on.
func DebugEnabled() bool {
	return BoolEnv("CPE_DEBUG")
}

// HTTPTraceEnabled switches resty's connection tracing on.
func HTTPTraceEnabled() bool {
	return BoolEnv("CPE_HTTP_TRACE")
}

package api

import (
	"sync"
	"time"

	"github.com/facturalo/go-cpe/cpe"
)

// Selector hands out the Service for a tenant's environment. Tenants on
// beta and production can share one worker pool; each request is routed
// by the environment carried in the tenant's fiscal settings.
type Selector interface {
	For(environment cpe.Environment) Service
}

type envSelector struct {
	mu       sync.Mutex
	timeout  time.Duration
	services map[cpe.Environment]Service
}

// NewSelector builds services lazily, one per environment, sharing the
// request timeout.
func NewSelector(timeout time.Duration) Selector {
	return &envSelector{
		timeout:  timeout,
		services: make(map[cpe.Environment]Service),
	}
}

func (s *envSelector) For(environment cpe.Environment) Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[environment]
	if !ok {
		svc = NewService(New(environment, s.timeout))
		s.services[environment] = svc
	}
	return svc
}

type staticSelector struct {
	service Service
}

// StaticSelector routes every environment to one service, for tests and
// single-environment deployments.
func StaticSelector(service Service) Selector {
	return &staticSelector{service: service}
}

func (s *staticSelector) For(cpe.Environment) Service {
	return s.service
}

package document

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/model"
)

// InMemoryStore keeps documents in process memory. It backs tests and
// the demo binary; production deployments plug a SQL implementation of
// Store instead.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*model.FiscalDocument
	// fullNumbers enforces uniqueness per tenant+series-sequence
	fullNumbers map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		docs:        make(map[string]*model.FiscalDocument),
		fullNumbers: make(map[string]string),
	}
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*model.FiscalDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, cpe.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *InMemoryStore) Save(_ context.Context, doc *model.FiscalDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := doc.TenantID + "/" + doc.FullNumber()
	if existing, ok := s.fullNumbers[key]; ok && existing != doc.ID {
		return errors.Errorf("full number %s already exists for tenant %s", doc.FullNumber(), doc.TenantID)
	}

	cp := *doc
	s.docs[doc.ID] = &cp
	s.fullNumbers[key] = doc.ID
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, doc *model.FiscalDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		return cpe.ErrNotFound
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]*model.FiscalDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.FiscalDocument
	for _, doc := range s.docs {
		if filter.TenantID != "" && doc.TenantID != filter.TenantID {
			continue
		}
		if filter.DocumentID != "" && doc.ID != filter.DocumentID {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		cp := *doc
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

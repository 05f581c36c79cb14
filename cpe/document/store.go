package document

import (
	"context"

	"github.com/facturalo/go-cpe/cpe/model"
)

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	TenantID   string
	DocumentID string
	Status     model.DocumentStatus
	Limit      int
}

// Store is the repository the pipeline persists documents through. The
// relational technology behind it is a collaborator concern; the
// pipeline only sees plain records.
type Store interface {
	Get(ctx context.Context, id string) (*model.FiscalDocument, error)
	Save(ctx context.Context, doc *model.FiscalDocument) error
	Update(ctx context.Context, doc *model.FiscalDocument) error
	List(ctx context.Context, filter Filter) ([]*model.FiscalDocument, error)
}

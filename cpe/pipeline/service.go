// Package pipeline is the entry point collaborators call: signing,
// submission scheduling, retries and the operator read model. It wires
// the payload builder, generator, signer, state machine and job queue
// together and emits one audit event per meaningful transition.
package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/audit"
	"github.com/facturalo/go-cpe/cpe/cert"
	"github.com/facturalo/go-cpe/cpe/document"
	"github.com/facturalo/go-cpe/cpe/model"
	"github.com/facturalo/go-cpe/cpe/payload"
	"github.com/facturalo/go-cpe/cpe/qr"
	"github.com/facturalo/go-cpe/cpe/queue"
	"github.com/facturalo/go-cpe/cpe/sign"
	"github.com/facturalo/go-cpe/cpe/xmlgen"
)

var logger = log.WithField("component", "cpe.pipeline")

// FeatureElectronicInvoicing gates every pipeline action per tenant.
const FeatureElectronicInvoicing = "ELECTRONIC_INVOICING"

// SaleProvider is the sales/checkout subsystem's contract.
type SaleProvider interface {
	GetSaleForDocument(ctx context.Context, documentID string) (model.SaleSnapshot, error)
}

// SettingsProvider is the tenant-settings subsystem's contract.
type SettingsProvider interface {
	GetTenantFiscalSettings(ctx context.Context, tenantID string) (model.TenantSettings, error)
}

// FeatureGate is the feature-flag subsystem's contract.
type FeatureGate interface {
	IsFeatureEnabled(ctx context.Context, tenantID, feature string) bool
}

type Service struct {
	docs     document.Store
	jobs     queue.Store
	sales    SaleProvider
	settings SettingsProvider
	features FeatureGate
	certs    *cert.Loader
	sink     audit.Sink
	now      func() time.Time
}

func New(docs document.Store, jobs queue.Store, sales SaleProvider, settings SettingsProvider, features FeatureGate, certs *cert.Loader, sink audit.Sink) *Service {
	return &Service{
		docs:     docs,
		jobs:     jobs,
		sales:    sales,
		settings: settings,
		features: features,
		certs:    certs,
		sink:     sink,
		now:      time.Now,
	}
}

// SignOptions control the privileged re-sign path. Privileged reflects
// an authorization decision made by the caller's access layer; Override
// without Privileged is refused.
type SignOptions struct {
	ActorID    string
	Override   bool
	Privileged bool
}

type SignResult struct {
	Status model.DocumentStatus
	Hash   string
}

// Sign builds, renders and signs the document, moving it DRAFT->SIGNED.
// Fails with ErrAlreadySigned for any non-DRAFT document unless the
// privileged override path is taken, which is audited as a distinct
// high-severity event.
func (s *Service) Sign(ctx context.Context, documentID string, opts SignOptions) (*SignResult, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, doc.TenantID); err != nil {
		return nil, err
	}

	override := false
	if doc.Status != model.StatusDraft {
		if !opts.Override || !opts.Privileged {
			return nil, cpe.ErrAlreadySigned
		}
		override = true
		s.emit(ctx, doc, opts.ActorID, "sign_override", audit.SeverityCritical, map[string]string{
			"previous_status": string(doc.Status),
		})
	}

	if err := s.produceArtifacts(ctx, doc); err != nil {
		return nil, err
	}

	now := s.now()
	if override {
		// privileged path bypasses the normal transition table
		doc.Status = model.StatusSigned
		doc.UpdatedAt = now
	} else if err := document.Transition(doc, model.StatusSigned, now); err != nil {
		return nil, err
	}

	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, err
	}

	s.emit(ctx, doc, opts.ActorID, "document_signed", audit.SeverityInfo, map[string]string{
		"hash": doc.Hash,
	})
	return &SignResult{Status: doc.Status, Hash: doc.Hash}, nil
}

// produceArtifacts builds, renders and signs the document, setting the
// signed artifact, totals and QR payload on doc. The document is only
// mutated once every step has succeeded; nothing is persisted here.
func (s *Service) produceArtifacts(ctx context.Context, doc *model.FiscalDocument) error {
	settings, err := s.settings.GetTenantFiscalSettings(ctx, doc.TenantID)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return cpe.ErrFeatureDisabled
	}
	if settings.TaxID == "" || settings.BusinessName == "" {
		return cpe.ErrSettingsIncomplete
	}

	sale, err := s.sales.GetSaleForDocument(ctx, doc.ID)
	if err != nil {
		return err
	}

	p, err := payload.Build(doc, sale)
	if err != nil {
		return err
	}

	xmlDoc, err := xmlgen.Generate(p)
	if err != nil {
		return err
	}

	material, err := s.certs.Load(doc.TenantID, settings.EncryptedCertBundle, settings.Passphrase)
	if err != nil {
		return err
	}
	if err := material.ValidAt(s.now()); err != nil {
		return err
	}

	result, err := sign.Sign(xmlDoc, material)
	if err != nil {
		return err
	}
	logger.Debugf("signed %s, digest %s", doc.FullNumber(), result.DigestValue)

	doc.SignedXML = result.SignedXML
	doc.Hash = result.Hash
	doc.TaxableAmount = p.Totals.Taxable
	doc.TaxAmount = p.Totals.Tax
	doc.TotalAmount = p.Totals.Total
	doc.QRPayload = qr.Payload(doc)
	return nil
}

// Enqueue schedules a submission job. Idempotent: an active job for the
// same (document, kind) is returned instead of creating a second one.
func (s *Service) Enqueue(ctx context.Context, documentID string, kind model.JobKind) (string, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	if err := s.gate(ctx, doc.TenantID); err != nil {
		return "", err
	}
	if err := validateJobKind(doc, kind); err != nil {
		return "", err
	}

	now := s.now()
	job, created, err := s.jobs.Enqueue(ctx, model.SubmissionJob{
		ID:         uuid.NewString(),
		TenantID:   doc.TenantID,
		DocumentID: doc.ID,
		Kind:       kind,
		Status:     model.JobQueued,
		NextRunAt:  now,
		CreatedAt:  now,
	})
	if err != nil {
		return "", err
	}
	if created {
		s.emit(ctx, doc, "", "job_enqueued", audit.SeverityInfo, map[string]string{
			"job_id": job.ID, "job_kind": string(kind),
		})
	}
	return job.ID, nil
}

// Retry creates a fresh submission job for a document in ERROR or
// REJECTED. ERROR documents reuse the existing signed artifact; a
// content-rejected document must not resubmit the exact artifact the
// authority refused, so REJECTED documents are re-derived and re-signed
// from their (presumably corrected) current data. Any other status is
// refused; ACCEPTED documents can never be resent.
func (s *Service) Retry(ctx context.Context, documentID, actorID string) (string, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	if err := s.gate(ctx, doc.TenantID); err != nil {
		return "", err
	}
	if !document.Retryable(doc.Status) {
		return "", errors.Wrapf(cpe.ErrNotRetryable, "status %s", doc.Status)
	}

	if doc.Status == model.StatusError && doc.Remote.Ticket != "" {
		// the summary already reached the authority; resume polling its
		// ticket instead of submitting a second time
		if err := document.Transition(doc, model.StatusSent, s.now()); err != nil {
			return "", err
		}
		if err := s.docs.Update(ctx, doc); err != nil {
			return "", err
		}
		jobID, err := s.Enqueue(ctx, documentID, model.JobPollTicket)
		if err != nil {
			return "", err
		}
		s.emit(ctx, doc, actorID, "document_retry", audit.SeverityInfo, map[string]string{"job_id": jobID})
		return jobID, nil
	}

	wasRejected := doc.Status == model.StatusRejected
	if wasRejected {
		if err := s.produceArtifacts(ctx, doc); err != nil {
			return "", err
		}
	} else if !doc.Signed() {
		return "", errors.Wrap(cpe.ErrNotRetryable, "document was never signed")
	}

	now := s.now()
	if err := document.Transition(doc, model.StatusSigned, now); err != nil {
		return "", err
	}
	if err := s.docs.Update(ctx, doc); err != nil {
		return "", err
	}

	if wasRejected {
		s.emit(ctx, doc, actorID, "resubmit_rejected", audit.SeverityWarning, map[string]string{
			"remote_code": strconv.Itoa(doc.Remote.Code),
		})
	}

	kind := model.JobSendDocument
	if doc.Kind.TicketBased() {
		kind = model.JobSendSummary
	}
	jobID, err := s.Enqueue(ctx, documentID, kind)
	if err != nil {
		return "", err
	}

	s.emit(ctx, doc, actorID, "document_retry", audit.SeverityInfo, map[string]string{"job_id": jobID})
	return jobID, nil
}

// Void marks the document CANCELED. In-flight jobs are not killed; the
// worker discards their outcome once it observes the terminal state.
func (s *Service) Void(ctx context.Context, documentID, actorID string) error {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.gate(ctx, doc.TenantID); err != nil {
		return err
	}

	now := s.now()
	if err := document.Transition(doc, model.StatusCanceled, now); err != nil {
		return err
	}
	if err := s.docs.Update(ctx, doc); err != nil {
		return err
	}
	s.emit(ctx, doc, actorID, "document_voided", audit.SeverityWarning, nil)
	return nil
}

// RequeueFilter narrows the admin bulk requeue. Zero values mean "any".
type RequeueFilter struct {
	TenantID   string
	DocumentID string
	Status     model.DocumentStatus
	Limit      int
}

// requeueable are the statuses a document can be stuck in after a
// worker crash mid-flight.
var requeueable = []model.DocumentStatus{model.StatusSigned, model.StatusError, model.StatusSent}

// Requeue creates fresh jobs for stuck documents that have no active
// job. Operator-level operation; SENT documents are only requeued to
// resume ticket polling, never re-submitted.
func (s *Service) Requeue(ctx context.Context, filter RequeueFilter, actorID string) ([]string, error) {
	statuses := requeueable
	if filter.Status != "" {
		ok := false
		for _, st := range requeueable {
			if st == filter.Status {
				ok = true
			}
		}
		if !ok {
			return nil, errors.Wrapf(cpe.ErrNotRetryable, "status %s is not requeueable", filter.Status)
		}
		statuses = []model.DocumentStatus{filter.Status}
	}

	var created []string
	for _, st := range statuses {
		docs, err := s.docs.List(ctx, document.Filter{
			TenantID:   filter.TenantID,
			DocumentID: filter.DocumentID,
			Status:     st,
		})
		if err != nil {
			return created, err
		}

		for _, doc := range docs {
			if filter.Limit > 0 && len(created) >= filter.Limit {
				return created, nil
			}
			if !s.features.IsFeatureEnabled(ctx, doc.TenantID, FeatureElectronicInvoicing) {
				continue
			}

			kind, ok := requeueKind(doc)
			if !ok {
				continue
			}
			if _, err := s.jobs.FindActive(ctx, doc.ID, kind); err == nil {
				continue // already has an active job
			} else if !errors.Is(err, cpe.ErrNotFound) {
				return created, err
			}

			if kind == model.JobPollTicket && doc.Status == model.StatusError {
				// put the document back where the poll worker expects it
				if err := document.Transition(doc, model.StatusSent, s.now()); err != nil {
					return created, err
				}
				if err := s.docs.Update(ctx, doc); err != nil {
					return created, err
				}
			}

			now := s.now()
			job, wasCreated, err := s.jobs.Enqueue(ctx, model.SubmissionJob{
				ID:         uuid.NewString(),
				TenantID:   doc.TenantID,
				DocumentID: doc.ID,
				Kind:       kind,
				Status:     model.JobQueued,
				NextRunAt:  now,
				CreatedAt:  now,
			})
			if err != nil {
				return created, err
			}
			if !wasCreated {
				continue
			}
			created = append(created, job.ID)
			s.emit(ctx, doc, actorID, "document_requeued", audit.SeverityInfo, map[string]string{
				"job_id": job.ID, "job_kind": string(kind),
			})
		}
	}
	logger.Infof("requeue created %d job(s)", len(created))
	return created, nil
}

func requeueKind(doc *model.FiscalDocument) (model.JobKind, bool) {
	switch doc.Status {
	case model.StatusSent:
		if doc.Remote.Ticket == "" {
			// no ticket to resume; re-sending would risk a duplicate
			return "", false
		}
		return model.JobPollTicket, true
	default:
		if doc.Remote.Ticket != "" {
			// the authority already issued a ticket; resume polling
			return model.JobPollTicket, true
		}
		if doc.Kind.TicketBased() {
			return model.JobSendSummary, true
		}
		return model.JobSendDocument, true
	}
}

func validateJobKind(doc *model.FiscalDocument, kind model.JobKind) error {
	switch kind {
	case model.JobSendDocument:
		if doc.Kind.TicketBased() {
			return errors.Errorf("%s documents are submitted as summaries", doc.Kind)
		}
	case model.JobSendSummary:
		if !doc.Kind.TicketBased() {
			return errors.Errorf("%s documents are submitted individually", doc.Kind)
		}
	case model.JobPollTicket:
		if doc.Remote.Ticket == "" {
			return errors.New("document has no ticket to poll")
		}
	default:
		return errors.Errorf("unknown job kind %q", kind)
	}
	return nil
}

func (s *Service) gate(ctx context.Context, tenantID string) error {
	if !s.features.IsFeatureEnabled(ctx, tenantID, FeatureElectronicInvoicing) {
		return cpe.ErrFeatureDisabled
	}
	return nil
}

func (s *Service) emit(ctx context.Context, doc *model.FiscalDocument, actorID, action string, severity audit.Severity, meta map[string]string) {
	if meta == nil {
		meta = map[string]string{}
	}
	meta["document"] = doc.FullNumber()
	audit.Emit(ctx, s.sink, audit.Event{
		TenantID: doc.TenantID,
		ActorID:  actorID,
		Action:   action,
		EntityID: doc.ID,
		Severity: severity,
		Metadata: meta,
	})
}

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	log "github.com/sirupsen/logrus"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/api"
	"github.com/facturalo/go-cpe/cpe/audit"
	"github.com/facturalo/go-cpe/cpe/cdr"
	"github.com/facturalo/go-cpe/cpe/document"
	"github.com/facturalo/go-cpe/cpe/model"
	"github.com/google/uuid"
)

var logger = log.WithField("component", "cpe.queue")

// SettingsProvider is the worker's view of the tenant-settings
// subsystem.
type SettingsProvider interface {
	GetTenantFiscalSettings(ctx context.Context, tenantID string) (model.TenantSettings, error)
}

// Config tunes the worker. Zero values are replaced by DefaultConfig
// equivalents in NewWorker.
type Config struct {
	// PollInterval is how often the worker looks for due jobs.
	PollInterval time.Duration
	// RequestTimeout caps each remote call; elapsing counts as a
	// transient failure.
	RequestTimeout time.Duration
	// MaxAttempts is the retry ceiling for send jobs.
	MaxAttempts int
	// PollMaxAttempts is the separate, higher ceiling for ticket polls:
	// a slow authority should not push documents into ERROR too early.
	PollMaxAttempts int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	// TicketPollInterval is the minimum interval the remote service
	// accepts between polls of the same ticket.
	TicketPollInterval time.Duration
	// ClaimLimit caps jobs picked up per poll round.
	ClaimLimit int
}

func DefaultConfig() Config {
	return Config{
		PollInterval:       5 * time.Second,
		RequestTimeout:     30 * time.Second,
		MaxAttempts:        5,
		PollMaxAttempts:    48,
		BackoffBase:        30 * time.Second,
		BackoffMax:         30 * time.Minute,
		TicketPollInterval: 2 * time.Minute,
		ClaimLimit:         10,
	}
}

// Worker claims due jobs one at a time and executes them. Multiple
// workers may run concurrently; the store's Claim transition guarantees
// at most one executes a given job.
type Worker struct {
	jobs     Store
	docs     document.Store
	remote   api.Selector
	settings SettingsProvider
	sink     audit.Sink
	cfg      Config
	now      func() time.Time
}

func NewWorker(jobs Store, docs document.Store, remote api.Selector, settings SettingsProvider, sink audit.Sink, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = def.PollMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.TicketPollInterval <= 0 {
		cfg.TicketPollInterval = def.TicketPollInterval
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = def.ClaimLimit
	}
	return &Worker{
		jobs:     jobs,
		docs:     docs,
		remote:   remote,
		settings: settings,
		sink:     sink,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run polls until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce processes one round of due jobs and returns how many were
// executed.
func (w *Worker) RunOnce(ctx context.Context) int {
	due, err := w.jobs.Due(ctx, w.now(), w.cfg.ClaimLimit)
	if err != nil {
		logger.WithError(err).Error("cannot list due jobs")
		return 0
	}

	executed := 0
	for _, job := range due {
		claimed, ok, err := w.jobs.Claim(ctx, job.ID)
		if err != nil || !ok {
			continue // another worker won, or the job changed underneath us
		}
		w.execute(ctx, claimed)
		executed++
	}
	return executed
}

// control errors for the bookkeeping switch
var (
	errRejected       = errors.New("document rejected by remote service")
	errDiscarded      = errors.New("outcome discarded: document canceled")
	errReviewRequired = errors.New("submission outcome unknown, operator review required")
)

func (w *Worker) execute(ctx context.Context, job model.SubmissionJob) {
	job.Attempts++

	doc, err := w.docs.Get(ctx, job.DocumentID)
	if err != nil {
		w.finishJob(ctx, job, nil, 0, cpe.Permanent(errors.Wrap(err, "load document")))
		return
	}

	if doc.Status == model.StatusCanceled {
		w.finishJob(ctx, job, doc, 0, errDiscarded)
		return
	}

	settings, err := w.settings.GetTenantFiscalSettings(ctx, doc.TenantID)
	if err != nil {
		w.finishJob(ctx, job, doc, 0, cpe.Transient(errors.Wrap(err, "load tenant settings")))
		return
	}

	rctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	var requeueAfter time.Duration
	switch job.Kind {
	case model.JobSendDocument:
		err = w.sendDocument(rctx, doc, settings)
	case model.JobSendSummary:
		err = w.sendSummary(rctx, &job, doc, settings)
	case model.JobPollTicket:
		requeueAfter, err = w.pollTicket(rctx, doc, settings)
	default:
		err = cpe.Permanent(errors.Errorf("unknown job kind %q", job.Kind))
	}

	w.finishJob(ctx, job, doc, requeueAfter, err)
}

func (w *Worker) sendDocument(ctx context.Context, doc *model.FiscalDocument, settings model.TenantSettings) error {
	switch doc.Status {
	case model.StatusSigned, model.StatusError:
	case model.StatusSent:
		// a previous attempt may have reached the remote service without
		// a recorded outcome; resubmitting would risk a duplicate
		return errReviewRequired
	case model.StatusAccepted, model.StatusObserved:
		return errDiscarded // outcome already recorded elsewhere
	default:
		return cpe.Permanent(errors.Errorf("document in %s cannot be sent", doc.Status))
	}
	if !doc.Signed() {
		return cpe.Permanent(errors.New("document has no signed artifact"))
	}

	fileName := documentFileName(doc)
	archive, err := cdr.Pack(fileName+".xml", doc.SignedXML)
	if err != nil {
		return cpe.Permanent(err)
	}

	// SENT is recorded before dispatch. A crash or a lost response after
	// this point leaves the document SENT with no outcome; the next
	// attempt sees that and stops instead of submitting a second time.
	prev := doc.Status
	if err := document.Transition(doc, model.StatusSent, w.now()); err != nil {
		return cpe.Permanent(err)
	}
	if err := w.applyDocument(ctx, doc); err != nil {
		doc.Status = prev // nothing was dispatched; the stored document is unchanged
		return err
	}

	result, err := w.remote.For(settings.Environment).SubmitDocument(ctx, settings.Credentials, fileName+".zip", archive)
	if err != nil {
		return err // already classified by the protocol client
	}

	now := w.now()
	doc.Remote = model.RemoteOutcome{
		Code:         result.Code,
		Description:  result.Description,
		RespondedAt:  result.RespondedAt,
		CDR:          result.CDR,
		Observations: result.Observations,
	}

	if result.Accepted {
		if err := document.Transition(doc, model.StatusAccepted, now); err != nil {
			return cpe.Permanent(err)
		}
		return w.applyDocument(ctx, doc)
	}

	if err := document.Transition(doc, model.StatusRejected, now); err != nil {
		return cpe.Permanent(err)
	}
	if err := w.applyDocument(ctx, doc); err != nil {
		return err
	}
	return errRejected
}

func (w *Worker) sendSummary(ctx context.Context, job *model.SubmissionJob, doc *model.FiscalDocument, settings model.TenantSettings) error {
	switch doc.Status {
	case model.StatusSigned, model.StatusError:
	case model.StatusSent:
		if doc.Remote.Ticket == "" {
			// a previous attempt may have reached the remote service
			// without a recorded ticket; resubmitting would risk a duplicate
			return errReviewRequired
		}
		// ticket already recorded; only the poll chaining was lost
		return w.chainPoll(ctx, job, doc)
	default:
		return cpe.Permanent(errors.Errorf("document in %s cannot be sent", doc.Status))
	}
	if !doc.Kind.TicketBased() {
		return cpe.Permanent(errors.Errorf("%s is not a ticket-based kind", doc.Kind))
	}
	if !doc.Signed() {
		return cpe.Permanent(errors.New("document has no signed artifact"))
	}

	fileName := documentFileName(doc)
	archive, err := cdr.Pack(fileName+".xml", doc.SignedXML)
	if err != nil {
		return cpe.Permanent(err)
	}

	// SENT is recorded before dispatch, mirroring sendDocument
	prev := doc.Status
	if err := document.Transition(doc, model.StatusSent, w.now()); err != nil {
		return cpe.Permanent(err)
	}
	if err := w.applyDocument(ctx, doc); err != nil {
		doc.Status = prev
		return err
	}

	ticket, err := w.remote.For(settings.Environment).SubmitSummary(ctx, settings.Credentials, fileName+".zip", archive)
	if err != nil {
		return err
	}

	doc.Remote.Ticket = ticket
	if err := w.applyDocument(ctx, doc); err != nil {
		return err
	}
	return w.chainPoll(ctx, job, doc)
}

// chainPoll schedules the ticket poll for a submitted summary;
// idempotent against an existing active poll.
func (w *Worker) chainPoll(ctx context.Context, job *model.SubmissionJob, doc *model.FiscalDocument) error {
	now := w.now()
	poll := model.SubmissionJob{
		ID:         uuid.NewString(),
		TenantID:   job.TenantID,
		DocumentID: doc.ID,
		Kind:       model.JobPollTicket,
		Status:     model.JobQueued,
		NextRunAt:  now.Add(w.cfg.TicketPollInterval),
		CreatedAt:  now,
	}
	if _, _, err := w.jobs.Enqueue(ctx, poll); err != nil {
		return cpe.Transient(errors.Wrap(err, "enqueue ticket poll"))
	}
	return nil
}

func (w *Worker) pollTicket(ctx context.Context, doc *model.FiscalDocument, settings model.TenantSettings) (time.Duration, error) {
	if doc.Status != model.StatusSent || doc.Remote.Ticket == "" {
		return 0, cpe.Permanent(errors.Errorf("document in %s has no pollable ticket", doc.Status))
	}

	result, err := w.remote.For(settings.Environment).QueryTicket(ctx, settings.Credentials, doc.Remote.Ticket)
	if err != nil {
		return 0, err
	}

	now := w.now()
	switch result.State {
	case model.TicketPending:
		return w.cfg.TicketPollInterval, nil
	case model.TicketAccepted:
		if err := document.Transition(doc, model.StatusAccepted, now); err != nil {
			return 0, cpe.Permanent(err)
		}
	case model.TicketObserved:
		if err := document.Transition(doc, model.StatusObserved, now); err != nil {
			return 0, cpe.Permanent(err)
		}
	case model.TicketRejected:
		if err := document.Transition(doc, model.StatusRejected, now); err != nil {
			return 0, cpe.Permanent(err)
		}
	}

	doc.Remote.Code = result.Code
	doc.Remote.Description = result.Description
	doc.Remote.RespondedAt = result.RespondedAt
	doc.Remote.CDR = result.CDR
	doc.Remote.Observations = result.Observations

	if err := w.applyDocument(ctx, doc); err != nil {
		return 0, err
	}
	if result.State == model.TicketRejected {
		return 0, errRejected
	}
	return 0, nil
}

// applyDocument persists doc unless it was canceled while the job was
// in flight; a canceled document keeps its terminal state and the
// outcome is discarded.
func (w *Worker) applyDocument(ctx context.Context, doc *model.FiscalDocument) error {
	fresh, err := w.docs.Get(ctx, doc.ID)
	if err != nil {
		return cpe.Transient(errors.Wrap(err, "reload document"))
	}
	if fresh.Status == model.StatusCanceled {
		return errDiscarded
	}
	if err := w.docs.Update(ctx, doc); err != nil {
		return cpe.Transient(errors.Wrap(err, "persist document"))
	}
	return nil
}

// finishJob records the job outcome and, where required, moves the
// document to ERROR.
func (w *Worker) finishJob(ctx context.Context, job model.SubmissionJob, doc *model.FiscalDocument, requeueAfter time.Duration, err error) {
	now := w.now()
	ceiling := w.cfg.MaxAttempts
	if job.Kind == model.JobPollTicket {
		ceiling = w.cfg.PollMaxAttempts
	}

	switch {
	case err == nil && requeueAfter > 0:
		// ticket still pending
		if job.Attempts >= ceiling {
			w.markFailed(ctx, &job, doc, now, "ticket still pending after attempt ceiling")
			break
		}
		job.Status = model.JobQueued
		job.NextRunAt = now.Add(requeueAfter)
		w.emit(ctx, job, doc, "job_poll_pending", audit.SeverityInfo, "")

	case err == nil:
		job.Status = model.JobDone
		job.CompletedAt = now
		job.LastError = ""
		w.emit(ctx, job, doc, "job_succeeded", audit.SeverityInfo, "")

	case errors.Is(err, errReviewRequired):
		// the document stays SENT; neither retrying nor moving it to
		// ERROR is safe while the prior attempt's outcome is unknown
		job.Status = model.JobFailed
		job.CompletedAt = now
		job.LastError = err.Error()
		w.emit(ctx, job, doc, "job_needs_review", audit.SeverityCritical, err.Error())

	case errors.Is(err, errDiscarded):
		job.Status = model.JobDone
		job.CompletedAt = now
		job.LastError = errDiscarded.Error()
		w.emit(ctx, job, doc, "job_outcome_discarded", audit.SeverityInfo, "")

	case errors.Is(err, errRejected):
		// content rejection; the handler already moved the document
		job.Status = model.JobFailed
		job.CompletedAt = now
		job.LastError = err.Error()
		w.emit(ctx, job, doc, "document_rejected", audit.SeverityWarning, err.Error())

	case cpe.IsPermanent(err):
		w.markFailed(ctx, &job, doc, now, err.Error())

	default: // transient
		job.LastError = err.Error()
		if job.Attempts >= ceiling {
			if job.Kind != model.JobPollTicket && doc != nil && doc.Status == model.StatusSent {
				// dispatch was recorded but no outcome arrived; moving the
				// document to ERROR would re-open resubmission
				job.Status = model.JobFailed
				job.CompletedAt = now
				w.emit(ctx, job, doc, "job_needs_review", audit.SeverityCritical, err.Error())
				break
			}
			w.markFailed(ctx, &job, doc, now, fmt.Sprintf("attempt ceiling reached: %s", err.Error()))
			break
		}
		job.Status = model.JobQueued
		job.NextRunAt = now.Add(Backoff(w.cfg.BackoffBase, w.cfg.BackoffMax, job.Attempts))
		w.emit(ctx, job, doc, "job_retry_scheduled", audit.SeverityWarning, err.Error())
	}

	if updateErr := w.jobs.Update(ctx, job); updateErr != nil {
		logger.WithError(updateErr).WithField("job", job.ID).Error("cannot persist job outcome")
	}
}

func (w *Worker) markFailed(ctx context.Context, job *model.SubmissionJob, doc *model.FiscalDocument, now time.Time, reason string) {
	job.Status = model.JobFailed
	job.CompletedAt = now
	job.LastError = reason

	// a failed poll never moves the document: it stays SENT with its
	// ticket still pending at the authority, and polling is resumed
	// through requeue rather than a fresh submission
	if job.Kind != model.JobPollTicket && doc != nil && document.CanTransition(doc.Status, model.StatusError) {
		if err := document.Transition(doc, model.StatusError, now); err == nil {
			if err := w.docs.Update(ctx, doc); err != nil {
				logger.WithError(err).WithField("document", doc.ID).Error("cannot move document to ERROR")
			}
		}
	}
	w.emit(ctx, *job, doc, "job_failed", audit.SeverityCritical, reason)
}

func (w *Worker) emit(ctx context.Context, job model.SubmissionJob, doc *model.FiscalDocument, action string, severity audit.Severity, errMsg string) {
	meta := map[string]string{
		"job_id":   job.ID,
		"job_kind": string(job.Kind),
		"attempt":  fmt.Sprintf("%d", job.Attempts),
	}
	if errMsg != "" {
		meta["error"] = errMsg
	}
	entityID := job.DocumentID
	tenantID := job.TenantID
	if doc != nil {
		tenantID = doc.TenantID
	}
	audit.Emit(ctx, w.sink, audit.Event{
		TenantID: tenantID,
		ActorID:  "worker",
		Action:   action,
		EntityID: entityID,
		Severity: severity,
		Metadata: meta,
	})
}

func documentFileName(doc *model.FiscalDocument) string {
	return fmt.Sprintf("%s-%s-%s", doc.IssuerTaxID, doc.Kind, doc.FullNumber())
}

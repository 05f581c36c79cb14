package pipeline

import (
	"context"
	"time"

	"github.com/facturalo/go-cpe/cpe/model"
)

// maxJobHistory bounds the job list returned by Detail.
const maxJobHistory = 10

type JobSummary struct {
	ID          string           `json:"id"`
	Kind        model.JobKind    `json:"kind"`
	Status      model.JobStatus  `json:"status"`
	Attempts    int              `json:"attempts"`
	LastError   string           `json:"lastError,omitempty"`
	NextRunAt   time.Time        `json:"nextRunAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// DocumentDetail is the operator-facing view of a document. Bulky
// artifacts are reported as presence flags, not inlined, and the
// remote ticket is masked.
type DocumentDetail struct {
	ID            string               `json:"id"`
	FullNumber    string               `json:"fullNumber"`
	Kind          model.DocumentKind   `json:"kind"`
	Status        model.DocumentStatus `json:"status"`
	RemoteCode    int                  `json:"remoteCode"`
	RemoteMessage string               `json:"remoteMessage,omitempty"`
	Ticket        string               `json:"ticket,omitempty"`
	HasSignedXML  bool                 `json:"hasSignedXml"`
	HasCDR        bool                 `json:"hasCdr"`
	Hash          string               `json:"hash,omitempty"`
	Jobs          []JobSummary         `json:"jobs"`
}

// Detail assembles the read model for one document.
func (s *Service) Detail(ctx context.Context, documentID string) (*DocumentDetail, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.jobs.ByDocument(ctx, documentID, maxJobHistory)
	if err != nil {
		return nil, err
	}

	detail := &DocumentDetail{
		ID:            doc.ID,
		FullNumber:    doc.FullNumber(),
		Kind:          doc.Kind,
		Status:        doc.Status,
		RemoteCode:    doc.Remote.Code,
		RemoteMessage: doc.Remote.Description,
		Ticket:        maskTicket(doc.Remote.Ticket),
		HasSignedXML:  len(doc.SignedXML) > 0,
		HasCDR:        len(doc.Remote.CDR) > 0,
		Hash:          doc.Hash,
		Jobs:          make([]JobSummary, 0, len(jobs)),
	}
	for _, j := range jobs {
		js := JobSummary{
			ID:        j.ID,
			Kind:      j.Kind,
			Status:    j.Status,
			Attempts:  j.Attempts,
			LastError: j.LastError,
			NextRunAt: j.NextRunAt,
		}
		if !j.CompletedAt.IsZero() {
			t := j.CompletedAt
			js.CompletedAt = &t
		}
		detail.Jobs = append(detail.Jobs, js)
	}
	return detail, nil
}

// maskTicket keeps only the last four characters, enough to correlate
// with remote support without exposing the full identifier.
func maskTicket(ticket string) string {
	if ticket == "" {
		return ""
	}
	if len(ticket) <= 4 {
		return "****"
	}
	return "****" + ticket[len(ticket)-4:]
}

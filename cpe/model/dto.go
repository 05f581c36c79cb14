package model

import "time"

// Wire DTOs for the remote tax-authority service.

type SendDocumentRequest struct {
	FileName    string  `json:"fileName"`
	ContentHash HashSHA `json:"contentHash"`
	Content     string  `json:"content"` // base64 ZIP with the signed XML
}

type HashSHA struct {
	Algorithm string `json:"algorithm"`
	Encoding  string `json:"encoding"`
	Value     string `json:"value"`
}

type SendDocumentResponse struct {
	Timestamp   time.Time `json:"timestamp"`
	Code        int       `json:"responseCode"`
	Description string    `json:"responseDescription"`
	CDR         string    `json:"cdr,omitempty"` // base64 receipt archive
	Notes       []string  `json:"notes,omitempty"`
}

type SendSummaryResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Ticket    string    `json:"ticket"`
}

type TicketStatusResponse struct {
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"` // PENDING | ACCEPTED | REJECTED | OBSERVED
	Code        int       `json:"responseCode"`
	Description string    `json:"responseDescription"`
	CDR         string    `json:"cdr,omitempty"`
	Notes       []string  `json:"notes,omitempty"`
}

// TicketState is the decoded polling outcome.
type TicketState string

const (
	TicketPending  TicketState = "PENDING"
	TicketAccepted TicketState = "ACCEPTED"
	TicketRejected TicketState = "REJECTED"
	TicketObserved TicketState = "OBSERVED"
)

// SubmitResult is the synchronous submission outcome handed to the worker.
type SubmitResult struct {
	Accepted     bool
	Code         int
	Description  string
	RespondedAt  time.Time
	CDR          []byte
	Observations []string
}

// TicketResult is the decoded ticket-poll outcome.
type TicketResult struct {
	State        TicketState
	Code         int
	Description  string
	RespondedAt  time.Time
	CDR          []byte
	Observations []string
}

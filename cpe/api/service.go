package api

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/go-faster/errors"
	log "github.com/sirupsen/logrus"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/model"
)

// Response-code bands of the remote service. Zero is acceptance,
// the 2000 band is content rejection (permanent), everything else is a
// system-side fault worth retrying.
const (
	codeAccepted        = 0
	codeContentErrorLow = 2000
	codeContentErrorTop = 3999
)

type Service interface {
	// SubmitDocument sends one zipped signed document synchronously.
	// A content rejection comes back as a non-accepted result, not an
	// error; errors mean the submission outcome is unknown or the
	// request itself was refused.
	SubmitDocument(ctx context.Context, creds model.Credentials, fileName string, archive []byte) (*model.SubmitResult, error)

	// SubmitSummary sends a zipped summary/voided-set and returns the
	// ticket to poll.
	SubmitSummary(ctx context.Context, creds model.Credentials, fileName string, archive []byte) (string, error)

	// QueryTicket polls a ticket issued by SubmitSummary.
	QueryTicket(ctx context.Context, creds model.Credentials, ticket string) (*model.TicketResult, error)
}

type service struct {
	client Client
}

func NewService(client Client) Service {
	return &service{client: client}
}

var serviceLogger = log.WithField("component", "cpe.api.service")

func (s *service) SubmitDocument(ctx context.Context, creds model.Credentials, fileName string, archive []byte) (*model.SubmitResult, error) {
	serviceLogger.WithField("file", fileName).Debug("submitting document")

	res := &model.SendDocumentResponse{}
	err := s.client.PostJSON(ctx, "/documents", creds, sendRequest(fileName, archive), res)
	if err != nil {
		return nil, err
	}

	result := &model.SubmitResult{
		Code:         res.Code,
		Description:  res.Description,
		RespondedAt:  res.Timestamp,
		Observations: res.Notes,
	}

	switch {
	case res.Code == codeAccepted:
		result.Accepted = true
		cdrBytes, err := decodeCDR(res.CDR)
		if err != nil {
			return nil, cpe.Transient(err)
		}
		result.CDR = cdrBytes
	case res.Code >= codeContentErrorLow && res.Code <= codeContentErrorTop:
		result.Accepted = false
	default:
		// system-side fault reported in-band
		return nil, cpe.Transient(errors.Errorf("remote fault %d: %s", res.Code, res.Description))
	}

	return result, nil
}

func (s *service) SubmitSummary(ctx context.Context, creds model.Credentials, fileName string, archive []byte) (string, error) {
	serviceLogger.WithField("file", fileName).Debug("submitting summary")

	res := &model.SendSummaryResponse{}
	err := s.client.PostJSON(ctx, "/summaries", creds, sendRequest(fileName, archive), res)
	if err != nil {
		return "", err
	}
	if res.Ticket == "" {
		return "", cpe.Transient(errors.New("remote service returned no ticket"))
	}
	return res.Ticket, nil
}

func (s *service) QueryTicket(ctx context.Context, creds model.Credentials, ticket string) (*model.TicketResult, error) {
	serviceLogger.Debug("querying ticket status")

	res := &model.TicketStatusResponse{}
	err := s.client.GetJSON(ctx, fmt.Sprintf("/tickets/%s", ticket), creds, res)
	if err != nil {
		return nil, err
	}

	state := model.TicketState(res.Status)
	switch state {
	case model.TicketPending, model.TicketAccepted, model.TicketRejected, model.TicketObserved:
	default:
		return nil, cpe.Transient(errors.Errorf("unknown ticket status %q", res.Status))
	}

	result := &model.TicketResult{
		State:        state,
		Code:         res.Code,
		Description:  res.Description,
		RespondedAt:  res.Timestamp,
		Observations: res.Notes,
	}
	if res.CDR != "" {
		cdrBytes, err := decodeCDR(res.CDR)
		if err != nil {
			return nil, cpe.Transient(err)
		}
		result.CDR = cdrBytes
	}
	return result, nil
}

func sendRequest(fileName string, archive []byte) *model.SendDocumentRequest {
	digest := sha256.Sum256(archive)
	return &model.SendDocumentRequest{
		FileName: fileName,
		ContentHash: model.HashSHA{
			Algorithm: "SHA-256",
			Encoding:  "Base64",
			Value:     base64.StdEncoding.EncodeToString(digest[:]),
		},
		Content: base64.StdEncoding.EncodeToString(archive),
	}
}

func decodeCDR(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, errors.New("acceptance without receipt archive")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decode receipt archive")
	}
	return decoded, nil
}

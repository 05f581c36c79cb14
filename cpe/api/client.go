// Package api speaks the tax authority's submission and ticket-polling
// protocol. It classifies every failure as transient or permanent so
// the worker can decide whether to retry without inspecting payloads.
package api

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"github.com/facturalo/go-cpe/cpe"
	"github.com/facturalo/go-cpe/cpe/model"
	"github.com/facturalo/go-cpe/cpe/util"
)

type Client interface {
	PostJSON(ctx context.Context, endpoint string, creds model.Credentials, body, result interface{}) error
	GetJSON(ctx context.Context, endpoint string, creds model.Credentials, result interface{}) error
}

type client struct {
	rest    *resty.Client
	baseURL string
}

// New builds a client against the given environment. The timeout caps
// every request; an elapsed timeout surfaces as a transient failure.
func New(environment cpe.Environment, timeout time.Duration) Client {
	restyClient := resty.New().
		SetBaseURL(environment.BaseURL()).
		SetTimeout(timeout)
	return &client{rest: restyClient, baseURL: environment.BaseURL()}
}

// NewWithBaseURL is for tests against a local server.
func NewWithBaseURL(baseURL string, timeout time.Duration) Client {
	restyClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &client{rest: restyClient, baseURL: baseURL}
}

func (c *client) PostJSON(ctx context.Context, endpoint string, creds model.Credentials, body, result interface{}) error {
	r := c.rest.R().
		SetContext(ctx).
		SetBasicAuth(creds.Username, creds.Password).
		SetBody(body).
		SetResult(result)
	if util.HTTPTraceEnabled() {
		r.EnableTrace()
	}

	resp, err := r.Post(endpoint)
	logRequest("POST", endpoint, resp, err)
	return checkError(resp, err)
}

func (c *client) GetJSON(ctx context.Context, endpoint string, creds model.Credentials, result interface{}) error {
	r := c.rest.R().
		SetContext(ctx).
		SetBasicAuth(creds.Username, creds.Password).
		SetResult(result)
	if util.HTTPTraceEnabled() {
		r.EnableTrace()
	}

	resp, err := r.Get(endpoint)
	logRequest("GET", endpoint, resp, err)
	return checkError(resp, err)
}

var logger = log.WithField("component", "cpe.api")

func logRequest(method, endpoint string, resp *resty.Response, err error) {
	if !util.DebugEnabled() {
		return
	}
	entry := logger.WithFields(log.Fields{"method": method, "endpoint": endpoint})
	if err != nil {
		entry.WithError(err).Debug("request failed")
		return
	}
	entry.WithFields(log.Fields{
		"status": resp.StatusCode(),
		"time":   resp.Time(),
	}).Debug("request completed")
}

// checkError translates transport and HTTP errors into the worker's
// transient/permanent categories. Connectivity, timeouts, auth failures
// and 5xx are transient; only explicit content validation (400/422)
// is permanent.
func checkError(resp *resty.Response, err error) error {
	if err != nil {
		return cpe.Transient(err)
	}
	if !resp.IsError() {
		return nil
	}

	reqErr := &RequestError{
		StatusCode: resp.StatusCode(),
		Body:       resp.String(),
	}

	switch resp.StatusCode() {
	case 400, 422:
		return cpe.Permanent(reqErr)
	default:
		return cpe.Transient(reqErr)
	}
}

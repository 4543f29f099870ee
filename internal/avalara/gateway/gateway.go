package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"github.com/smallbiznis/taxbridge/internal/clock"
	"github.com/smallbiznis/taxbridge/internal/config"
	obslogger "github.com/smallbiznis/taxbridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/taxbridge/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	APIVersion = "v2"

	createTransactionPath = "/api/%s/transactions/create"
)

type Params struct {
	fx.In

	Config     *config.AvalaraConfigHolder
	Repo       avalaradomain.Repository
	GenID      *snowflake.Node
	Clock      clock.Clock
	Log        *zap.Logger
	Metrics    *obsmetrics.Metrics `optional:"true"`
	HTTPClient *http.Client        `optional:"true"`
}

// Client talks to the AvaTax REST API. Every exchange is written to the
// audit store before the outcome is returned, failures included.
type Client struct {
	cfg     *config.AvalaraConfigHolder
	repo    avalaradomain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	log     *zap.Logger
	metrics *obsmetrics.Metrics
	http    *http.Client
	tracer  trace.Tracer
	scheme  string
}

func NewClient(p Params) *Client {
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cfg:     p.Config,
		repo:    p.Repo,
		genID:   p.GenID,
		clock:   p.Clock,
		log:     p.Log.Named("avalara.gateway"),
		metrics: p.Metrics,
		http:    httpClient,
		tracer:  otel.Tracer("avalara.gateway"),
		scheme:  "https",
	}
}

// PostTaxQuote fetches, or commits, tax details for a document.
func (c *Client) PostTaxQuote(ctx context.Context, payload *avalaradomain.TaxQuoteRequest) (*avalaradomain.TaxQuoteResponse, error) {
	ctx, span := c.tracer.Start(ctx, "avalara.transactions.create", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("avalara.doc_type", string(payload.Type)))

	resp, err := c.fetch(ctx, http.MethodPost, fmt.Sprintf(createTransactionPath, APIVersion), payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordTaxRequest(ctx, string(payload.Type), outcome(err))
		return nil, err
	}

	c.metrics.RecordTaxRequest(ctx, string(payload.Type), "success")
	return resp, nil
}

// fetch makes one HTTP round trip. It never retries.
func (c *Client) fetch(ctx context.Context, method, path string, payload any) (*avalaradomain.TaxQuoteResponse, error) {
	cfg := c.cfg.Get()
	endpoint := (&url.URL{Scheme: c.scheme, Host: cfg.Endpoint, Path: path}).String()
	log := obslogger.WithContext(ctx, c.log).With(zap.String("method", method), zap.String("url", endpoint))

	var requestBody []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode avalara payload: %w", err)
		}
		requestBody = encoded
	}

	if timeout := cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if requestBody != nil {
		body = bytes.NewReader(requestBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(cfg.AccountNumber, cfg.LicenseKey)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	httpResp, err := c.http.Do(req)
	if err != nil {
		c.audit(ctx, log, cfg.AccountNumber, method, endpoint, requestBody, nil)
		log.Warn("avalara request failed", zap.Error(err))
		return nil, &avalaradomain.GatewayUnavailableError{URL: endpoint, Err: err}
	}
	defer httpResp.Body.Close()

	responseBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.audit(ctx, log, cfg.AccountNumber, method, endpoint, requestBody, responseBody)
		log.Warn("avalara response read failed", zap.Error(err))
		return nil, &avalaradomain.GatewayUnavailableError{URL: endpoint, Err: err}
	}

	c.audit(ctx, log, cfg.AccountNumber, method, endpoint, requestBody, responseBody)

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		remoteErr := &avalaradomain.RemoteTaxError{
			StatusCode: httpResp.StatusCode,
			Message:    errorMessage(httpResp.StatusCode, responseBody),
		}
		log.Warn("avalara returned an error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("message", remoteErr.Message),
		)
		return nil, remoteErr
	}

	var decoded avalaradomain.TaxQuoteResponse
	if err := json.Unmarshal(responseBody, &decoded); err != nil {
		log.Warn("avalara response is not valid json", zap.Error(err))
		return nil, &avalaradomain.RemoteTaxError{
			StatusCode: httpResp.StatusCode,
			Message:    "invalid response body: " + err.Error(),
		}
	}
	decoded.Raw = responseBody

	log.Debug("avalara request completed", zap.Int("status", httpResp.StatusCode), zap.Int("lines", len(decoded.Lines)))
	return &decoded, nil
}

// audit appends the exchange. A failed write is logged and counted but never
// replaces the tax outcome; the caller's cancellation does not stop it.
func (c *Client) audit(ctx context.Context, log *zap.Logger, accountNumber, method, endpoint string, requestBody, responseBody []byte) {
	entry := &avalaradomain.TaxRequest{
		ID:            c.genID.Generate(),
		AccountNumber: accountNumber,
		Method:        method,
		URL:           endpoint,
		Request:       string(requestBody),
		Response:      string(responseBody),
		CreatedAt:     c.clock.Now().UTC(),
	}
	if err := c.repo.Insert(context.WithoutCancel(ctx), entry); err != nil {
		c.metrics.RecordAuditWriteFailure(ctx)
		log.Error("failed to write avalara audit record", zap.Error(err))
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorMessage(status int, body []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		if message := strings.TrimSpace(envelope.Error.Message); message != "" {
			return envelope.Error.Message
		}
	}
	return fmt.Sprintf("avalara request failed with status %d %s", status, http.StatusText(status))
}

func outcome(err error) string {
	switch err.(type) {
	case *avalaradomain.GatewayUnavailableError:
		return "unavailable"
	case *avalaradomain.RemoteTaxError:
		return "remote_error"
	default:
		return "error"
	}
}

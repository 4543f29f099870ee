package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"github.com/smallbiznis/taxbridge/internal/clock"
	"github.com/smallbiznis/taxbridge/internal/config"
	obsmetrics "github.com/smallbiznis/taxbridge/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

type memRepo struct {
	mu      sync.Mutex
	entries []*avalaradomain.TaxRequest
	err     error
}

func (r *memRepo) Insert(ctx context.Context, entry *avalaradomain.TaxRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memRepo) FindByID(context.Context, snowflake.ID) (*avalaradomain.TaxRequest, error) {
	return nil, avalaradomain.ErrNotFound
}

func (r *memRepo) List(context.Context, avalaradomain.ListFilter) ([]*avalaradomain.TaxRequest, error) {
	return nil, nil
}

func (r *memRepo) all() []*avalaradomain.TaxRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*avalaradomain.TaxRequest(nil), r.entries...)
}

var testNow = time.Date(2026, 7, 1, 10, 30, 0, 0, time.UTC)

func newTestClient(t *testing.T, srv *httptest.Server, repo avalaradomain.Repository, metrics *obsmetrics.Metrics) *Client {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	endpoint := "127.0.0.1:1"
	httpClient := http.DefaultClient
	if srv != nil {
		endpoint = srv.Listener.Addr().String()
		httpClient = srv.Client()
	}

	return NewClient(Params{
		Config: config.StaticAvalaraConfig(config.AvalaraConfig{
			Endpoint:       endpoint,
			AccountNumber:  "1100000000",
			LicenseKey:     "license-key",
			CompanyCode:    "DEFAULT",
			TimeoutSeconds: 5,
		}),
		Repo:       repo,
		GenID:      node,
		Clock:      clock.NewFixed(testNow),
		Log:        zaptest.NewLogger(t),
		Metrics:    metrics,
		HTTPClient: httpClient,
	})
}

func sampleDoc() *avalaradomain.TaxQuoteRequest {
	return &avalaradomain.TaxQuoteRequest{
		CompanyCode:  "DEFAULT",
		Date:         "2026-07-01",
		CustomerCode: "customer-1",
		Code:         "basket-7",
		Type:         avalaradomain.DocTypeSalesOrder,
		Addresses: map[string]avalaradomain.AddressRecord{
			avalaradomain.AddressRoleShipTo: {Line1: "1 Main St", City: "Portland", Region: "OR", Country: "US", PostalCode: "97201"},
		},
		Lines: []avalaradomain.LineItem{
			{Number: "7", Quantity: 2, ItemCode: "SKU-7", Amount: decimal.RequireFromString("20.00")},
			{Number: avalaradomain.ShippingLineNumber, Quantity: 1, TaxCode: avalaradomain.ShippingTaxCode, Amount: decimal.RequireFromString("5.00")},
		},
	}
}

func TestPostTaxQuoteSuccess(t *testing.T) {
	const body = `{"code":"basket-7","totalTaxable":"25.00","totalTax":1.5,"lines":[{"lineNumber":"7","tax":1.00},{"lineNumber":"SHIPPING","tax":"0.50"}]}`

	var gotPath, gotUser, gotPass, gotAccept, gotContentType string
	var gotBody map[string]any
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		gotAccept = r.Header.Get("Accept")
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	repo := &memRepo{}
	client := newTestClient(t, srv, repo, nil)

	resp, err := client.PostTaxQuote(context.Background(), sampleDoc())
	require.NoError(t, err)

	assert.Equal(t, "/api/v2/transactions/create", gotPath)
	assert.Equal(t, "1100000000", gotUser)
	assert.Equal(t, "license-key", gotPass)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "basket-7", gotBody["code"])
	assert.Equal(t, "SalesOrder", gotBody["type"])

	assert.Equal(t, "basket-7", resp.Code)
	assert.True(t, resp.TotalTax.Equal(decimal.RequireFromString("1.5")))
	require.Len(t, resp.Lines, 2)
	assert.True(t, resp.Lines[0].Tax.Equal(decimal.RequireFromString("1.00")))
	assert.True(t, resp.Lines[1].Tax.Equal(decimal.RequireFromString("0.50")))
	assert.JSONEq(t, body, string(resp.Raw))

	entries := repo.all()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.NotZero(t, entry.ID)
	assert.Equal(t, "1100000000", entry.AccountNumber)
	assert.Equal(t, http.MethodPost, entry.Method)
	assert.Equal(t, "https://"+srv.Listener.Addr().String()+"/api/v2/transactions/create", entry.URL)
	assert.Equal(t, body, entry.Response)
	assert.True(t, testNow.Equal(entry.CreatedAt))

	docType, ok := entry.DocType()
	assert.True(t, ok)
	assert.Equal(t, "SalesOrder", docType)
	assert.Equal(t, "SalesOrder request, result: basket-7", entry.String())
	totalTax, ok := entry.TotalTax()
	assert.True(t, ok)
	assert.Equal(t, "1.50", totalTax)
}

func TestPostTaxQuoteRemoteError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"AddressRangeError","message":"Address not geocoded."}}`)
	}))
	defer srv.Close()

	repo := &memRepo{}
	client := newTestClient(t, srv, repo, nil)

	_, err := client.PostTaxQuote(context.Background(), sampleDoc())
	require.Error(t, err)
	assert.True(t, errors.Is(err, avalaradomain.ErrRemoteTax))
	assert.Equal(t, "Address not geocoded.", err.Error())

	var remote *avalaradomain.RemoteTaxError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode)

	entries := repo.all()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Response, "Address not geocoded.")
}

func TestPostTaxQuoteRemoteErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	repo := &memRepo{}
	client := newTestClient(t, srv, repo, nil)

	_, err := client.PostTaxQuote(context.Background(), sampleDoc())
	require.ErrorIs(t, err, avalaradomain.ErrRemoteTax)
	assert.Contains(t, err.Error(), "Service Unavailable")
	require.Len(t, repo.all(), 1)
}

func TestPostTaxQuoteInvalidSuccessBody(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	repo := &memRepo{}
	client := newTestClient(t, srv, repo, nil)

	_, err := client.PostTaxQuote(context.Background(), sampleDoc())
	require.ErrorIs(t, err, avalaradomain.ErrRemoteTax)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid response body"))
	require.Len(t, repo.all(), 1)
	assert.Equal(t, "not json", repo.all()[0].Response)
}

func TestPostTaxQuoteTransportFailure(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addrClient := newTestClient(t, srv, &memRepo{}, nil)
	srv.Close()

	repo := &memRepo{}
	client := addrClient
	client.repo = repo

	_, err := client.PostTaxQuote(context.Background(), sampleDoc())
	require.Error(t, err)
	assert.True(t, errors.Is(err, avalaradomain.ErrGatewayUnavailable))

	var unavailable *avalaradomain.GatewayUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.NotNil(t, errors.Unwrap(err))

	entries := repo.all()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Response)
	code, ok := entries[0].DocCode()
	assert.True(t, ok)
	assert.Equal(t, "basket-7", code)
}

func TestPostTaxQuoteCancelledContextStillAudits(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	repo := &memRepo{}
	client := newTestClient(t, srv, repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.PostTaxQuote(ctx, sampleDoc())
	require.ErrorIs(t, err, avalaradomain.ErrGatewayUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, repo.all(), 1)
}

func TestPostTaxQuoteAuditFailureDoesNotMaskResult(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"basket-7","lines":[]}`)
	}))
	defer srv.Close()

	reader := sdkmetric.NewManualReader()
	metrics, err := obsmetrics.New(obsmetrics.Config{}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	repo := &memRepo{err: errors.New("disk full")}
	client := newTestClient(t, srv, repo, metrics)

	resp, err := client.PostTaxQuote(context.Background(), sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, "basket-7", resp.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, point := range sum.DataPoints {
					totals[m.Name] += point.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), totals["taxbridge_audit_write_failures_total"])
	assert.Equal(t, int64(1), totals["taxbridge_tax_requests_total"])
}

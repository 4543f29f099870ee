package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"github.com/smallbiznis/taxbridge/internal/avalara/repository"
	"github.com/smallbiznis/taxbridge/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupAudit(t *testing.T) (avalaradomain.AuditService, avalaradomain.Repository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&avalaradomain.TaxRequest{}))

	repo := repository.Provide(db)
	return NewAuditService(AuditParams{Log: zaptest.NewLogger(t), Repo: repo}), repo
}

func insertRequests(t *testing.T, repo avalaradomain.Repository, n int) []*avalaradomain.TaxRequest {
	t.Helper()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	out := make([]*avalaradomain.TaxRequest, 0, n)
	for i := 0; i < n; i++ {
		entry := &avalaradomain.TaxRequest{
			ID:            node.Generate(),
			AccountNumber: "1100000000",
			Method:        "POST",
			URL:           "https://sandbox-rest.avatax.com/api/v2/transactions/create",
			Request:       `{"code":"basket-5","type":"SalesOrder"}`,
			Response:      `{"code":"basket-5","totalTaxable":"100.00","totalTax":8.875}`,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Insert(context.Background(), entry))
		out = append(out, entry)
	}
	return out
}

func TestAuditListPaginates(t *testing.T) {
	svc, repo := setupAudit(t)
	entries := insertRequests(t, repo, 3)

	first, err := svc.List(context.Background(), avalaradomain.ListTaxRequestsRequest{
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, first.TaxRequests, 2)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextPageToken)
	assert.Equal(t, entries[2].ID.String(), first.TaxRequests[0].ID)

	view := first.TaxRequests[0]
	assert.Equal(t, "basket-5", view.DocCode)
	assert.Equal(t, "SalesOrder", view.DocType)
	assert.Equal(t, "basket-5", view.ResultCode)
	assert.Equal(t, "8.88", view.TotalTax)
	require.NotNil(t, view.TotalTaxable)
	assert.Equal(t, "100", view.TotalTaxable.String())

	second, err := svc.List(context.Background(), avalaradomain.ListTaxRequestsRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.TaxRequests, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, entries[0].ID.String(), second.TaxRequests[0].ID)
}

func TestAuditListRejectsBadInput(t *testing.T) {
	svc, _ := setupAudit(t)

	_, err := svc.List(context.Background(), avalaradomain.ListTaxRequestsRequest{
		Pagination: pagination.Pagination{PageToken: "not-a-token"},
	})
	assert.ErrorIs(t, err, avalaradomain.ErrInvalidPageToken)

	start := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.List(context.Background(), avalaradomain.ListTaxRequestsRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, avalaradomain.ErrInvalidTimeRange)
}

func TestAuditGet(t *testing.T) {
	svc, repo := setupAudit(t)
	entries := insertRequests(t, repo, 1)

	detail, err := svc.Get(context.Background(), entries[0].ID.String())
	require.NoError(t, err)
	assert.Equal(t, entries[0].ID.String(), detail.ID)
	assert.Contains(t, detail.Request, "\n    \"code\": \"basket-5\"")
	assert.Contains(t, detail.Response, "\"totalTax\": 8.875")
}

func TestAuditGetErrors(t *testing.T) {
	svc, _ := setupAudit(t)

	_, err := svc.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, avalaradomain.ErrInvalidID)

	_, err = svc.Get(context.Background(), "123456")
	assert.ErrorIs(t, err, avalaradomain.ErrNotFound)
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "", prettyJSON("  "))
	assert.Equal(t, "not json", prettyJSON("not json"))
	assert.Equal(t, "{\n    \"a\": 1\n}", prettyJSON(`{"a":1}`))
}

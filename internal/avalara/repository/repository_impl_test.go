package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&avalaradomain.TaxRequest{}))
	return db
}

func seed(t *testing.T, r avalaradomain.Repository, base time.Time, n int) []*avalaradomain.TaxRequest {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	entries := make([]*avalaradomain.TaxRequest, 0, n)
	for i := 0; i < n; i++ {
		entry := &avalaradomain.TaxRequest{
			ID:            node.Generate(),
			AccountNumber: "1100000000",
			Method:        "POST",
			URL:           "https://sandbox-rest.avatax.com/api/v2/transactions/create",
			Request:       `{"code":"basket-1","type":"SalesOrder"}`,
			Response:      `{"code":"basket-1","totalTax":1.5}`,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, r.Insert(context.Background(), entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestInsertAndFindByID(t *testing.T) {
	r := Provide(setupDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := seed(t, r, base, 1)

	found, err := r.FindByID(context.Background(), entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entries[0].ID, found.ID)
	assert.Equal(t, "POST", found.Method)
	assert.Equal(t, entries[0].Request, found.Request)
	assert.Equal(t, entries[0].Response, found.Response)
	assert.True(t, base.Equal(found.CreatedAt))

	docCode, ok := found.DocCode()
	assert.True(t, ok)
	assert.Equal(t, "basket-1", docCode)
}

func TestFindByIDNotFound(t *testing.T) {
	r := Provide(setupDB(t))

	_, err := r.FindByID(context.Background(), snowflake.ID(42))
	assert.ErrorIs(t, err, avalaradomain.ErrNotFound)
}

func TestInsertKeepsEmptyResponse(t *testing.T) {
	r := Provide(setupDB(t))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	entry := &avalaradomain.TaxRequest{
		ID:            node.Generate(),
		AccountNumber: "1100000000",
		Method:        "POST",
		URL:           "https://sandbox-rest.avatax.com/api/v2/transactions/create",
		Request:       `{"code":"basket-2"}`,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, r.Insert(context.Background(), entry))

	found, err := r.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Empty(t, found.Response)
	_, ok := found.ResultCode()
	assert.False(t, ok)
}

func TestListNewestFirstWithCursor(t *testing.T) {
	r := Provide(setupDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := seed(t, r, base, 5)

	page, err := r.List(context.Background(), avalaradomain.ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, entries[4].ID, page[0].ID)
	assert.Equal(t, entries[3].ID, page[1].ID)

	last := page[1]
	next, err := r.List(context.Background(), avalaradomain.ListFilter{
		Limit:  2,
		Cursor: &avalaradomain.AuditCursor{ID: last.ID, CreatedAt: last.CreatedAt},
	})
	require.NoError(t, err)
	require.Len(t, next, 3)
	assert.Equal(t, entries[2].ID, next[0].ID)
	assert.Equal(t, entries[1].ID, next[1].ID)
}

func TestListTimeRange(t *testing.T) {
	r := Provide(setupDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := seed(t, r, base, 5)

	start := base.Add(1 * time.Minute)
	end := base.Add(3 * time.Minute)
	got, err := r.List(context.Background(), avalaradomain.ListFilter{StartAt: &start, EndAt: &end})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, entries[3].ID, got[0].ID)
	assert.Equal(t, entries[1].ID, got[2].ID)
}

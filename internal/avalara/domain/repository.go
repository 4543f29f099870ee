package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository is the audit store. It only appends and reads.
type Repository interface {
	Insert(ctx context.Context, entry *TaxRequest) error
	FindByID(ctx context.Context, id snowflake.ID) (*TaxRequest, error)
	List(ctx context.Context, filter ListFilter) ([]*TaxRequest, error)
}

type ListFilter struct {
	StartAt *time.Time
	EndAt   *time.Time
	Cursor  *AuditCursor
	Limit   int
}

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

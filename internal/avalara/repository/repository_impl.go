package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) avalaradomain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, entry *avalaradomain.TaxRequest) error {
	if entry == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*avalaradomain.TaxRequest, error) {
	var entry avalaradomain.TaxRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, avalaradomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) List(ctx context.Context, filter avalaradomain.ListFilter) ([]*avalaradomain.TaxRequest, error) {
	var entries []*avalaradomain.TaxRequest
	stmt := r.db.WithContext(ctx).Model(&avalaradomain.TaxRequest{})

	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt.UTC(),
			filter.Cursor.CreatedAt.UTC(),
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

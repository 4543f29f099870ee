package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"github.com/smallbiznis/taxbridge/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type AuditParams struct {
	fx.In

	Log  *zap.Logger
	Repo avalaradomain.Repository
}

type AuditService struct {
	log  *zap.Logger
	repo avalaradomain.Repository
}

func NewAuditService(p AuditParams) avalaradomain.AuditService {
	return &AuditService{
		log:  p.Log.Named("avalara.audit"),
		repo: p.Repo,
	}
}

func (s *AuditService) List(ctx context.Context, req avalaradomain.ListTaxRequestsRequest) (avalaradomain.ListTaxRequestsResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return avalaradomain.ListTaxRequestsResponse{}, avalaradomain.ErrInvalidTimeRange
	}

	var cursor *avalaradomain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(strings.TrimSpace(req.PageToken))
		if err != nil {
			return avalaradomain.ListTaxRequestsResponse{}, avalaradomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return avalaradomain.ListTaxRequestsResponse{}, avalaradomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return avalaradomain.ListTaxRequestsResponse{}, avalaradomain.ErrInvalidPageToken
		}
		cursor = &avalaradomain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, err := s.repo.List(ctx, avalaradomain.ListFilter{
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Cursor:  cursor,
		Limit:   pageSize,
	})
	if err != nil {
		return avalaradomain.ListTaxRequestsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *avalaradomain.TaxRequest) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	views := make([]avalaradomain.TaxRequestView, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		views = append(views, toView(item))
	}

	return avalaradomain.ListTaxRequestsResponse{
		PageInfo:    pageInfo,
		TaxRequests: views,
	}, nil
}

func (s *AuditService) Get(ctx context.Context, id string) (*avalaradomain.TaxRequestDetail, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return nil, avalaradomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, parsed)
	if err != nil {
		return nil, err
	}

	return &avalaradomain.TaxRequestDetail{
		TaxRequestView: toView(item),
		Request:        prettyJSON(item.Request),
		Response:       prettyJSON(item.Response),
	}, nil
}

func toView(item *avalaradomain.TaxRequest) avalaradomain.TaxRequestView {
	view := avalaradomain.TaxRequestView{
		ID:            item.ID.String(),
		AccountNumber: item.AccountNumber,
		Method:        item.Method,
		URL:           item.URL,
		CreatedAt:     item.CreatedAt.UTC(),
	}
	view.DocCode, _ = item.DocCode()
	view.DocType, _ = item.DocType()
	view.ResultCode, _ = item.ResultCode()
	if taxable, ok := item.TotalTaxable(); ok {
		view.TotalTaxable = &taxable
	}
	view.TotalTax, _ = item.TotalTax()
	return view
}

// prettyJSON indents a stored body; anything that is not JSON is returned as is.
func prettyJSON(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(body), "", "    "); err != nil {
		return body
	}
	return out.String()
}

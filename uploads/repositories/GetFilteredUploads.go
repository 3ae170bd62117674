package repositories

import (
	"context"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/utils/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var BatchSortFields = pagination.SortAllowList{
	"created_at": "created_at",
	"file_name":  "file_name",
	"status":     "status",
	"total":      "total_count",
}

var RecordSortFields = pagination.SortAllowList{
	"row_number":     "row_number",
	"created_at":     "created_at",
	"payment_amount": "payment_amount",
	"status":         "status",
	"worker_id":      "worker_id",
}

// GetFilteredBatches lists batches; extra filters: employer_id, toli_id, uploaded_by
func (r *uploadRepository) GetFilteredBatches(ctx context.Context, params pagination.ListParams) ([]models.UploadedBatch, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.UploadedBatch{})
		q = pagination.ApplyCommonFilters(q, params, "")
		for _, key := range []string{"employer_id", "toli_id", "uploaded_by"} {
			if v, ok := params.Filters[key]; ok {
				q = q.Where(key+" = ?", v)
			}
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query, err := pagination.ApplySort(base(), params, BatchSortFields, "created_at")
	if err != nil {
		return nil, 0, err
	}

	var batches []models.UploadedBatch
	if err := query.Limit(params.PageSize).Offset(params.Offset()).Find(&batches).Error; err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// GetFilteredRecords lists the raw rows of one batch
func (r *uploadRepository) GetFilteredRecords(ctx context.Context, batchID uuid.UUID, params pagination.ListParams) ([]models.RawUploadRecord, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.RawUploadRecord{}).Where("batch_id = ?", batchID)
		q = pagination.ApplyCommonFilters(q, params, "receipt_number")
		if v, ok := params.Filters["worker_id"]; ok {
			q = q.Where("worker_id = ?", v)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query, err := pagination.ApplySort(base(), params, RecordSortFields, "row_number")
	if err != nil {
		return nil, 0, err
	}

	var records []models.RawUploadRecord
	if err := query.Limit(params.PageSize).Offset(params.Offset()).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

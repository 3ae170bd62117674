package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/utils"
	"welfare-receipts-backend/utils/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnomalyRepository interface {
	Upsert(ctx context.Context, anomaly *models.LinkageAnomaly) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LinkageAnomaly, error)
	GetByKey(ctx context.Context, kind models.AnomalyKind, entityKey string) (*models.LinkageAnomaly, error)
	GetOpen(ctx context.Context, limit int) ([]models.LinkageAnomaly, error)
	MarkResolved(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	CountOpen(ctx context.Context) (int64, error)
	GetFilteredAnomalies(ctx context.Context, params pagination.ListParams) ([]models.LinkageAnomaly, int64, error)

	FindPaymentsMissingReceipt(ctx context.Context, limit int) ([]LinkCandidate, error)
	FindAggregatedValidatedRecords(ctx context.Context, limit int) ([]LinkCandidate, error)
	FindUnpropagatedEmployerReceipts(ctx context.Context, limit int) ([]LinkCandidate, error)
	FindUnpropagatedBoardReceipts(ctx context.Context, limit int) ([]LinkCandidate, error)
}

// LinkCandidate is a row the detection queries believe is half linked
type LinkCandidate struct {
	EntityKey     string
	BatchID       *uuid.UUID
	ReceiptNumber *string
}

type anomalyRepository struct {
	db *gorm.DB
}

func NewAnomalyRepository(db *gorm.DB) AnomalyRepository {
	return &anomalyRepository{
		db: db,
	}
}

// Upsert inserts the anomaly or, when one already exists for the same kind and entity,
// reopens it with the latest error and details.
func (r *anomalyRepository) Upsert(ctx context.Context, anomaly *models.LinkageAnomaly) error {
	if anomaly.Status == "" {
		anomaly.Status = models.AnomalyOpen
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "entity_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":         models.AnomalyOpen,
			"last_error":     anomaly.LastError,
			"receipt_number": anomaly.ReceiptNumber,
			"details":        anomaly.Details,
			"resolved_at":    nil,
			"updated_at":     time.Now(),
		}),
	}).Create(anomaly).Error
	if err != nil {
		return fmt.Errorf("failed to upsert linkage anomaly %s/%s: %w", anomaly.Kind, anomaly.EntityKey, err)
	}
	return nil
}

func (r *anomalyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LinkageAnomaly, error) {
	var anomaly models.LinkageAnomaly
	if err := r.db.WithContext(ctx).First(&anomaly, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("linkage anomaly", id.String())
		}
		return nil, err
	}
	return &anomaly, nil
}

func (r *anomalyRepository) GetByKey(ctx context.Context, kind models.AnomalyKind, entityKey string) (*models.LinkageAnomaly, error) {
	var anomaly models.LinkageAnomaly
	if err := r.db.WithContext(ctx).First(&anomaly, "kind = ? AND entity_key = ?", kind, entityKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("linkage anomaly", string(kind)+"/"+entityKey)
		}
		return nil, err
	}
	return &anomaly, nil
}

func (r *anomalyRepository) GetOpen(ctx context.Context, limit int) ([]models.LinkageAnomaly, error) {
	var anomalies []models.LinkageAnomaly
	err := r.db.WithContext(ctx).
		Where("status = ?", models.AnomalyOpen).
		Order("attempts ASC, created_at ASC").
		Limit(limit).
		Find(&anomalies).Error
	return anomalies, err
}

func (r *anomalyRepository) MarkResolved(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.LinkageAnomaly{}).
		Where("id = ? AND status = ?", id, models.AnomalyOpen).
		Updates(map[string]interface{}{
			"status":      models.AnomalyResolved,
			"resolved_at": resolvedAt,
			"attempts":    gorm.Expr("attempts + 1"),
		}).Error
}

func (r *anomalyRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).Model(&models.LinkageAnomaly{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_error": lastError,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
}

func (r *anomalyRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LinkageAnomaly{}).
		Where("status = ?", models.AnomalyOpen).
		Count(&count).Error
	return count, err
}

var AnomalySortFields = pagination.SortAllowList{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"attempts":   "attempts",
	"kind":       "kind",
}

// GetFilteredAnomalies lists anomalies; extra filters: kind, batch_id
func (r *anomalyRepository) GetFilteredAnomalies(ctx context.Context, params pagination.ListParams) ([]models.LinkageAnomaly, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.LinkageAnomaly{})
		q = pagination.ApplyCommonFilters(q, params, "receipt_number")
		for _, key := range []string{"kind", "batch_id"} {
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

	query, err := pagination.ApplySort(base(), params, AnomalySortFields, "created_at")
	if err != nil {
		return nil, 0, err
	}

	var anomalies []models.LinkageAnomaly
	if err := query.Limit(params.PageSize).Offset(params.Offset()).Find(&anomalies).Error; err != nil {
		return nil, 0, err
	}
	return anomalies, total, nil
}

package pagination

import (
	"fmt"
	"math"
	"strings"
	"time"

	"welfare-receipts-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListParams carries the finder filters shared by every list endpoint.
type ListParams struct {
	Page          int               `json:"page"`
	PageSize      int               `json:"page_size"`
	Status        string            `json:"status,omitempty"`
	ReceiptNumber string            `json:"receipt_number,omitempty"`
	StartDate     *time.Time        `json:"start_date,omitempty"`
	EndDate       *time.Time        `json:"end_date,omitempty"`
	SortBy        string            `json:"sort_by,omitempty"`
	SortDesc      bool              `json:"sort_desc"`
	Filters       map[string]string `json:"filters,omitempty"`
}

// SortAllowList maps an API sort key to the column it orders by.
type SortAllowList map[string]string

type PaginationMeta struct {
	CurrentPage int     `json:"current_page"`
	PageSize    int     `json:"page_size"`
	TotalPages  int     `json:"total_pages"`
	TotalItems  int64   `json:"total_items"`
	NextPage    *string `json:"next_page"`
	PrevPage    *string `json:"prev_page"`
}

type PaginatedResponse struct {
	Items      interface{}    `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

var reservedKeys = map[string]bool{
	"page": true, "page_size": true, "status": true, "receipt_number": true,
	"start_date": true, "end_date": true, "sort_by": true, "sort_dir": true,
}

// ParseListParams reads the finder query string of a list request.
func ParseListParams(c *fiber.Ctx) (ListParams, error) {
	params := ListParams{
		Page:          c.QueryInt("page", 1),
		PageSize:      c.QueryInt("page_size", DefaultPageSize),
		Status:        utils.CleanQueryParam(c.Query("status")),
		ReceiptNumber: utils.CleanQueryParam(c.Query("receipt_number")),
		SortBy:        utils.CleanQueryParam(c.Query("sort_by")),
		SortDesc:      !strings.EqualFold(utils.CleanQueryParam(c.Query("sort_dir")), "asc"),
		Filters:       make(map[string]string),
	}

	if v := utils.CleanQueryParam(c.Query("start_date")); v != "" {
		t, err := utils.ParseDate(v)
		if err != nil {
			return params, fmt.Errorf("invalid start_date: %w", err)
		}
		params.StartDate = &t
	}
	if v := utils.CleanQueryParam(c.Query("end_date")); v != "" {
		t, err := utils.ParseDate(v)
		if err != nil {
			return params, fmt.Errorf("invalid end_date: %w", err)
		}
		params.EndDate = &t
	}

	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		if !reservedKeys[k] {
			if v := utils.CleanQueryParam(string(value)); v != "" {
				params.Filters[k] = v
			}
		}
	})

	return params, ValidateListParams(params)
}

func ValidateListParams(params ListParams) error {
	if params.Page < 1 {
		return fmt.Errorf("page must be greater than 0")
	}
	if params.PageSize < 1 || params.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be between 1 and %d", MaxPageSize)
	}
	if params.StartDate != nil && params.EndDate != nil && params.EndDate.Before(*params.StartDate) {
		return fmt.Errorf("end_date must not be before start_date")
	}
	return nil
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ApplyCommonFilters narrows a query by status, receipt number and the created_at window.
// An empty receiptColumn disables the receipt filter. The end date is inclusive.
func ApplyCommonFilters(query *gorm.DB, params ListParams, receiptColumn string) *gorm.DB {
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.ReceiptNumber != "" && receiptColumn != "" {
		query = query.Where(receiptColumn+" = ?", params.ReceiptNumber)
	}
	if params.StartDate != nil {
		query = query.Where("created_at >= ?", *params.StartDate)
	}
	if params.EndDate != nil {
		query = query.Where("created_at < ?", params.EndDate.AddDate(0, 0, 1))
	}
	return query
}

// ApplySort orders by an allow-listed column, falling back to defaultKey.
func ApplySort(query *gorm.DB, params ListParams, allowed SortAllowList, defaultKey string) (*gorm.DB, error) {
	key := params.SortBy
	if key == "" {
		key = defaultKey
	}
	column, ok := allowed[key]
	if !ok {
		return nil, fmt.Errorf("sort field '%s' is not allowed", key)
	}
	direction := "DESC"
	if !params.SortDesc {
		direction = "ASC"
	}
	return query.Order(fmt.Sprintf("%s %s", column, direction)), nil
}

func buildPaginationURL(c *fiber.Ctx, page int, params ListParams) string {
	baseURL := fmt.Sprintf("%s://%s%s?", c.Protocol(), c.Hostname(), c.Path())
	queryParams := make([]string, 0)

	if params.PageSize != DefaultPageSize {
		queryParams = append(queryParams, fmt.Sprintf("page_size=%d", params.PageSize))
	}
	if params.Status != "" {
		queryParams = append(queryParams, "status="+params.Status)
	}
	if params.ReceiptNumber != "" {
		queryParams = append(queryParams, "receipt_number="+params.ReceiptNumber)
	}
	if params.StartDate != nil {
		queryParams = append(queryParams, "start_date="+params.StartDate.Format("2006-01-02"))
	}
	if params.EndDate != nil {
		queryParams = append(queryParams, "end_date="+params.EndDate.Format("2006-01-02"))
	}
	if params.SortBy != "" {
		queryParams = append(queryParams, "sort_by="+params.SortBy)
	}
	for key, value := range params.Filters {
		queryParams = append(queryParams, fmt.Sprintf("%s=%s", key, value))
	}

	queryParams = append(queryParams, fmt.Sprintf("page=%d", page))
	return baseURL + strings.Join(queryParams, "&")
}

// NewMeta computes page counts without any request context.
func NewMeta(totalItems int64, params ListParams) PaginationMeta {
	totalPages := int(math.Ceil(float64(totalItems) / float64(params.PageSize)))
	return PaginationMeta{
		CurrentPage: params.Page,
		PageSize:    params.PageSize,
		TotalPages:  totalPages,
		TotalItems:  totalItems,
	}
}

func NewPaginatedResponse(c *fiber.Ctx, items interface{}, totalItems int64, params ListParams) PaginatedResponse {
	meta := NewMeta(totalItems, params)

	if params.Page < meta.TotalPages {
		next := buildPaginationURL(c, params.Page+1, params)
		meta.NextPage = &next
	}
	if params.Page > 1 {
		prev := buildPaginationURL(c, params.Page-1, params)
		meta.PrevPage = &prev
	}

	return PaginatedResponse{
		Items:      items,
		Pagination: meta,
	}
}

package store

import "github.com/taskvault/taskvault-api/internal/domain"

// Pagination defaults and bounds applied by NewPageRequest.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SortField identifies a task column that list queries may sort by.
// Implementations must whitelist these values rather than interpolating
// caller input into queries.
type SortField string

// Recognized sort fields.
const (
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
	SortByDueDate   SortField = "due_date"
	SortByPriority  SortField = "priority"
	SortByStatus    SortField = "status"
	SortByTitle     SortField = "title"
)

// IsValid reports whether the sort field is recognized.
func (f SortField) IsValid() bool {
	switch f {
	case SortByCreatedAt, SortByUpdatedAt, SortByDueDate, SortByPriority, SortByStatus, SortByTitle:
		return true
	}
	return false
}

// PageRequest describes the page, size and ordering of a list query.
// Page numbers start at zero.
type PageRequest struct {
	Page       int
	Size       int
	Sort       SortField
	Descending bool
}

// NewPageRequest builds a PageRequest with defaults applied: negative
// pages clamp to zero, sizes clamp to [1, MaxPageSize], and an invalid
// sort field falls back to created_at descending.
func NewPageRequest(page, size int, sort SortField, descending bool) PageRequest {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if !sort.IsValid() {
		sort = SortByCreatedAt
		descending = true
	}
	return PageRequest{Page: page, Size: size, Sort: sort, Descending: descending}
}

// Offset returns the row offset for the request.
func (r PageRequest) Offset() int {
	return r.Page * r.Size
}

// TaskPage is one page of task results together with the total match count.
type TaskPage struct {
	Items      []*domain.Task
	Total      int64
	Page       int
	Size       int
	TotalPages int64
}

// NewTaskPage builds a TaskPage, deriving the total page count from the
// total match count and page size.
func NewTaskPage(items []*domain.Task, total int64, req PageRequest) *TaskPage {
	totalPages := int64(0)
	if req.Size > 0 {
		totalPages = (total + int64(req.Size) - 1) / int64(req.Size)
	}
	return &TaskPage{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		Size:       req.Size,
		TotalPages: totalPages,
	}
}

package reports

import "context"

// Repository port (insert-only persistence untuk Report)
type Repository interface {
	Insert(ctx context.Context, r *Report) error
	Get(ctx context.Context, id ID) (*Report, error)
	Paginate(ctx context.Context, page, pageSize int) ([]*Report, error)
}

// Cache port. A miss is (nil, nil).
type Cache interface {
	Get(ctx context.Context, id ID) (*Report, error)
	Set(ctx context.Context, r *Report) error
}

// NormalizePage clamps pagination input.
func NormalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Offset int
	Limit  int
}

// Page carries the metadata callers need to walk a listing.
type Page struct {
	Offset  int   `json:"offset"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizeOffset clamps negative offsets to zero.
func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// Normalize returns params with both fields normalized.
func (p Params) Normalize() Params {
	return Params{
		Offset: NormalizeOffset(p.Offset),
		Limit:  NormalizeLimit(p.Limit),
	}
}

// NewPage derives page metadata from normalized params and an exact total.
func NewPage(params Params, total int64) Page {
	params = params.Normalize()
	return Page{
		Offset:  params.Offset,
		Limit:   params.Limit,
		Total:   total,
		HasMore: total > int64(params.Offset+params.Limit),
	}
}

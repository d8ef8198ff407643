package types

type Pagination struct {
	TotalCount uint64 `json:"total_count"`
	Page       uint64 `json:"page"`
	Limit      uint64 `json:"limit"`
}

// Filter carries list-endpoint query options parsed from the request.
type Filter struct {
	Page           uint64
	Limit          uint64
	Offset         uint64
	WithPagination bool
	OnlyUnread     bool
	Type           string
}

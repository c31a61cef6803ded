package model

import "time"

// Response wraps every results API reply.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Run listings are paged; unit listings of a single run are not.
const (
	DefaultRunLimit = 20
	MaxRunLimit     = 100
)

// ListOptions selects a page of runs, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns the first page.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: DefaultRunLimit}
}

// Clamp brings Limit into [1, MaxRunLimit] and Offset to at least 0. A
// non-positive limit means the default.
func (o *ListOptions) Clamp() {
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultRunLimit
	case o.Limit > MaxRunLimit:
		o.Limit = MaxRunLimit
	}
	o.Offset = max(o.Offset, 0)
}

// Pagination describes where a page sits in the full listing.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// PageOf returns the pagination of a page holding n items out of total.
func PageOf(opts ListOptions, n, total int) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+n < total,
	}
}

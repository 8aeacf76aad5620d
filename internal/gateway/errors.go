package gateway

import "errors"

var (
	ErrRateLimited = errors.New("rate limited by upstream")
	ErrOverloaded  = errors.New("upstream overloaded")
	ErrNoData      = errors.New("no data from upstream")
)

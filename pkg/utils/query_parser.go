package utils

import (
	"net/url"
	"strconv"

	"referral-system/pkg/types"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// ParseFilterFromQuery extracts pagination and list filters from query params.
func ParseFilterFromQuery(values url.Values) types.Filter {
	filter := types.Filter{
		Page:           defaultPage,
		Limit:          defaultLimit,
		WithPagination: true,
	}

	if p, err := strconv.ParseUint(values.Get("page"), 10, 64); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.ParseUint(values.Get("limit"), 10, 64); err == nil && l > 0 {
		if l > maxLimit {
			l = maxLimit
		}
		filter.Limit = l
	}
	filter.Offset = (filter.Page - 1) * filter.Limit

	if values.Get("unread") == "true" {
		filter.OnlyUnread = true
	}
	filter.Type = values.Get("type")

	return filter
}

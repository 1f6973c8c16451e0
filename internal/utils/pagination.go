// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi. An empty or
// unparsable string yields the provided default instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageParams parses and bounds the page/page_size query values used by list
// endpoints. Both inputs fall back to their defaults when empty or invalid,
// page is floored at 1, page_size is clamped to [1, maxSize].
func PageParams(pageStr, sizeStr string, defaultSize, maxSize int) (page, pageSize int) {
	page = AtoiDefault(pageStr, 1)
	if page < 1 {
		page = 1
	}
	pageSize = AtoiDefault(sizeStr, defaultSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return
}

// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import "strconv"

// Page size bounds applied to every list endpoint.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s as a decimal int and returns def when s is empty or
// not a valid int. Surrounding spaces are not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// ParsePage reads 1-based page and page_size query values. A missing or
// invalid size falls back to DefaultPageSize; sizes are capped at MaxPageSize.
func ParsePage(page, size string) (int, int) {
	p := AtoiDefault(page, 1)
	if p < 1 {
		p = 1
	}
	return p, Clamp(AtoiDefault(size, DefaultPageSize), 1, MaxPageSize)
}

// Offset converts a 1-based page into a row offset and limit. Non-positive
// sizes use DefaultPageSize.
func Offset(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return (page - 1) * size, size
}

// TotalPages is the number of pages of size needed for total rows.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

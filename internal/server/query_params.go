package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalDecimal(value string) (*decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, errors.New("invalid_decimal")
	}
	return &parsed, nil
}

func parseOptionalInt(value string, def int) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def, nil
	}
	return strconv.Atoi(trimmed)
}

// parsePagination reads page and limit; zero values are left for the
// service to default.
func parsePagination(page, limit string) (pagination.Pagination, error) {
	p, err := parseOptionalInt(page, 0)
	if err != nil || p < 0 {
		return pagination.Pagination{}, newValidationError("page", "invalid_page", "invalid page")
	}
	l, err := parseOptionalInt(limit, 0)
	if err != nil || l < 0 {
		return pagination.Pagination{}, newValidationError("limit", "invalid_limit", "invalid limit")
	}
	return pagination.Pagination{Page: p, Limit: l}, nil
}

package utils

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse creates a standardized error response
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// PaginatedResponse structure for paginated results
type PaginatedResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// ParsePage reads page/limit query parameters, clamping limit to max.
func ParsePage(c *fiber.Ctx, defaultLimit, max int) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > max {
		limit = max
	}
	return page, limit
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// DigitsOnly strips every non-digit character. "1,200.00" becomes "120000".
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeDigits returns the digits of s, or nil when none remain.
func SanitizeDigits(s string) *string {
	digits := DigitsOnly(s)
	if digits == "" {
		return nil
	}
	return &digits
}

// NullIfBlank turns empty or whitespace-only strings into nil.
func NullIfBlank(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ParseAmount parses a stored money string, treating anything non-numeric as 0.
func ParseAmount(s *string) float64 {
	if s == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// IsBlank reports whether s is nil or holds only whitespace.
func IsBlank(s *string) bool {
	return s == nil || strings.IndexFunc(*s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

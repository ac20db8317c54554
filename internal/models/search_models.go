package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 10
	MaxPageSize       = 100
)

// FilterCriteria is the normalized query request for listing clients.
// Every field is optional; unset fields impose no constraint.
type FilterCriteria struct {
	Email        string `json:"email,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	PersonalID   string `json:"personal_id,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
	Sex          Sex    `json:"sex,omitempty"`
	SearchTerm   string `json:"search_term,omitempty"`

	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Street  string `json:"street,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`

	AccountNumber string           `json:"account_number,omitempty"`
	AccountType   string           `json:"account_type,omitempty"`
	MinBalance    *decimal.Decimal `json:"min_balance,omitempty"`
	MaxBalance    *decimal.Decimal `json:"max_balance,omitempty"`

	SortBy         string `json:"sort_by,omitempty"`
	SortDescending bool   `json:"sort_descending"`
	PageNumber     int    `json:"page_number"`
	PageSize       int    `json:"page_size"`
}

// SearchRecord is an immutable audit entry of one executed client listing.
type SearchRecord struct {
	ID              int64     `json:"id" db:"id"`
	AdminID         string    `json:"admin_id" db:"admin_id"`
	SearchCriteria  string    `json:"search_criteria" db:"search_criteria"`
	SearchTimestamp time.Time `json:"search_timestamp" db:"search_timestamp"`
}

// PagedResult is one page of items plus the paging metadata of the full result set.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalItems int `json:"total_items"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPagedResult wraps items and derives TotalPages as ceil(totalItems/pageSize).
func NewPagedResult[T any](items []T, totalItems, pageNumber, pageSize int) *PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalItems + pageSize - 1) / pageSize
	}
	return &PagedResult[T]{
		Items:      items,
		TotalItems: totalItems,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

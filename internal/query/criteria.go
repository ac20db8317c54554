package query

import (
	"errors"
	"fmt"
	"math"

	"bank_panel_backend/internal/models"
)

// ErrInvalidCriteria is returned for criteria that cannot be executed.
var ErrInvalidCriteria = errors.New("invalid filter criteria")

// Normalize applies paging defaults and rejects malformed values.
// It is idempotent.
func Normalize(c models.FilterCriteria) (models.FilterCriteria, error) {
	if c.PageNumber < 0 {
		return c, fmt.Errorf("%w: page number must be at least 1", ErrInvalidCriteria)
	}
	if c.PageSize < 0 {
		return c, fmt.Errorf("%w: page size must be at least 1", ErrInvalidCriteria)
	}
	if c.PageNumber == 0 {
		c.PageNumber = models.DefaultPageNumber
	}
	if c.PageSize == 0 {
		c.PageSize = models.DefaultPageSize
	}
	if c.PageSize > models.MaxPageSize {
		return c, fmt.Errorf("%w: page size must be at most %d", ErrInvalidCriteria, models.MaxPageSize)
	}
	if c.Sex != "" && !c.Sex.Valid() {
		return c, fmt.Errorf("%w: unknown sex %q", ErrInvalidCriteria, c.Sex)
	}
	return c, nil
}

// Build folds every set field of c into one conjunctive predicate. The search
// term contributes a single OR group across the free-text searchable fields.
func Build(c models.FilterCriteria) Predicate {
	var parts []Predicate

	if c.SearchTerm != "" {
		parts = append(parts, Or(
			Contains(FieldFirstName, c.SearchTerm),
			Contains(FieldLastName, c.SearchTerm),
			Contains(FieldEmail, c.SearchTerm),
			Contains(FieldPersonalID, c.SearchTerm),
			Contains(FieldMobileNumber, c.SearchTerm),
			Contains(FieldCity, c.SearchTerm),
			Contains(FieldStreet, c.SearchTerm),
			AccountNumberContains(c.SearchTerm),
		))
	}

	contains := []struct {
		field Field
		term  string
	}{
		{FieldFirstName, c.FirstName},
		{FieldLastName, c.LastName},
		{FieldEmail, c.Email},
		{FieldMobileNumber, c.MobileNumber},
		{FieldCountry, c.Country},
		{FieldCity, c.City},
		{FieldStreet, c.Street},
		{FieldZipCode, c.ZipCode},
	}
	for _, f := range contains {
		if f.term != "" {
			parts = append(parts, Contains(f.field, f.term))
		}
	}

	if c.PersonalID != "" {
		parts = append(parts, Equals(FieldPersonalID, c.PersonalID))
	}
	if c.Sex != "" {
		parts = append(parts, SexIs(c.Sex))
	}
	if c.AccountNumber != "" {
		parts = append(parts, AccountNumberContains(c.AccountNumber))
	}
	if c.AccountType != "" {
		parts = append(parts, AccountTypeContains(c.AccountType))
	}
	if c.MinBalance != nil {
		parts = append(parts, BalanceAtLeast(*c.MinBalance))
	}
	if c.MaxBalance != nil {
		parts = append(parts, BalanceAtMost(*c.MaxBalance))
	}

	return And(parts...)
}

// Page converts the 1-based page number and size into skip/take bounds.
// A skip that would overflow saturates at math.MaxInt, which is past the end
// of any result set.
func Page(c models.FilterCriteria) (skip, take int) {
	take = c.PageSize
	if c.PageNumber <= 1 || take <= 0 {
		return 0, take
	}
	if c.PageNumber-1 > math.MaxInt/take {
		return math.MaxInt, take
	}
	return (c.PageNumber - 1) * take, take
}

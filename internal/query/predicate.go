// Package query turns a FilterCriteria into a composable client predicate, a sort
// directive and paging bounds, and executes them against a ClientStore.
//
// Predicates evaluate against an in-memory client graph and also render
// themselves as a parameterised PostgreSQL condition, so the memory and SQL
// stores share one definition of what a filter means.
package query

import (
	"strings"

	"bank_panel_backend/internal/models"

	"github.com/shopspring/decimal"
)

// Field identifies a scalar client or address attribute.
type Field int

const (
	FieldFirstName Field = iota
	FieldLastName
	FieldEmail
	FieldPersonalID
	FieldMobileNumber
	FieldCountry
	FieldCity
	FieldStreet
	FieldZipCode
)

var fieldColumns = map[Field]string{
	FieldFirstName:    "c.first_name",
	FieldLastName:     "c.last_name",
	FieldEmail:        "c.email",
	FieldPersonalID:   "c.personal_id",
	FieldMobileNumber: "c.mobile_number",
	FieldCountry:      "a.country",
	FieldCity:         "a.city",
	FieldStreet:       "a.street",
	FieldZipCode:      "a.zip_code",
}

// Column returns the qualified SQL column backing the field.
func (f Field) Column() string { return fieldColumns[f] }

// Value reads the field from a client graph.
func (f Field) Value(c *models.Client) string {
	switch f {
	case FieldFirstName:
		return c.FirstName
	case FieldLastName:
		return c.LastName
	case FieldEmail:
		return c.Email
	case FieldPersonalID:
		return c.PersonalID
	case FieldMobileNumber:
		return c.MobileNumber
	case FieldCountry:
		return c.Address.Country
	case FieldCity:
		return c.Address.City
	case FieldStreet:
		return c.Address.Street
	case FieldZipCode:
		return c.Address.ZipCode
	}
	return ""
}

// Predicate is a boolean test over a client aggregate.
type Predicate interface {
	// Match evaluates the predicate against an in-memory client.
	Match(c *models.Client) bool
	writeSQL(w *sqlWriter)
}

// containsFold is the substring test used by every "contains" predicate.
// Matching is case-insensitive, mirroring ILIKE on the SQL side.
func containsFold(value, term string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(term))
}

type containsPredicate struct {
	field Field
	term  string
}

// Contains matches clients whose field contains term, ignoring case.
func Contains(f Field, term string) Predicate { return containsPredicate{field: f, term: term} }

func (p containsPredicate) Match(c *models.Client) bool {
	return containsFold(p.field.Value(c), p.term)
}

type equalsPredicate struct {
	field Field
	value string
}

// Equals matches clients whose field is exactly value.
func Equals(f Field, value string) Predicate { return equalsPredicate{field: f, value: value} }

func (p equalsPredicate) Match(c *models.Client) bool { return p.field.Value(c) == p.value }

type sexPredicate struct{ sex models.Sex }

// SexIs matches clients with the given sex.
func SexIs(s models.Sex) Predicate { return sexPredicate{sex: s} }

func (p sexPredicate) Match(c *models.Client) bool { return c.Sex == p.sex }

type accountTest int

const (
	accountNumberContains accountTest = iota
	accountTypeContains
	balanceAtLeast
	balanceAtMost
)

// anyAccountPredicate holds when at least one of the client's accounts passes the test.
type anyAccountPredicate struct {
	test  accountTest
	term  string
	bound decimal.Decimal
}

func AccountNumberContains(term string) Predicate {
	return anyAccountPredicate{test: accountNumberContains, term: term}
}

func AccountTypeContains(term string) Predicate {
	return anyAccountPredicate{test: accountTypeContains, term: term}
}

// BalanceAtLeast matches clients owning an account with balance >= min.
func BalanceAtLeast(min decimal.Decimal) Predicate {
	return anyAccountPredicate{test: balanceAtLeast, bound: min}
}

// BalanceAtMost matches clients owning an account with balance <= max.
func BalanceAtMost(max decimal.Decimal) Predicate {
	return anyAccountPredicate{test: balanceAtMost, bound: max}
}

func (p anyAccountPredicate) Match(c *models.Client) bool {
	for i := range c.Accounts {
		if p.matchAccount(&c.Accounts[i]) {
			return true
		}
	}
	return false
}

func (p anyAccountPredicate) matchAccount(a *models.Account) bool {
	switch p.test {
	case accountNumberContains:
		return containsFold(a.AccountNumber, p.term)
	case accountTypeContains:
		return containsFold(a.AccountType, p.term)
	case balanceAtLeast:
		return a.Balance.GreaterThanOrEqual(p.bound)
	case balanceAtMost:
		return a.Balance.LessThanOrEqual(p.bound)
	}
	return false
}

type andPredicate []Predicate

// And holds when every part holds. An empty And matches everything.
func And(parts ...Predicate) Predicate { return andPredicate(parts) }

func (p andPredicate) Match(c *models.Client) bool {
	for _, part := range p {
		if !part.Match(c) {
			return false
		}
	}
	return true
}

type orPredicate []Predicate

// Or holds when any part holds. An empty Or matches nothing.
func Or(parts ...Predicate) Predicate { return orPredicate(parts) }

func (p orPredicate) Match(c *models.Client) bool {
	for _, part := range p {
		if part.Match(c) {
			return true
		}
	}
	return false
}

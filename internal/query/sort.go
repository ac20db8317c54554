package query

import (
	"sort"
	"strings"

	"bank_panel_backend/internal/models"
)

// Sort orders clients by one field. Ties always fall back to ascending id.
type Sort struct {
	Field      Field
	Descending bool
}

var sortKeys = map[string]Field{
	"firstname":    FieldFirstName,
	"lastname":     FieldLastName,
	"email":        FieldEmail,
	"personalid":   FieldPersonalID,
	"mobilenumber": FieldMobileNumber,
}

// ParseSort maps a sort key to a Sort. Keys are case-insensitive; an empty or
// unknown key yields ok == false and the store keeps its default order.
func ParseSort(sortBy string, descending bool) (Sort, bool) {
	f, ok := sortKeys[strings.ToLower(sortBy)]
	if !ok {
		return Sort{}, false
	}
	return Sort{Field: f, Descending: descending}, true
}

// OrderBy renders the ORDER BY expression list for the sort.
func (s Sort) OrderBy() string {
	dir := "ASC"
	if s.Descending {
		dir = "DESC"
	}
	return "LOWER(" + s.Field.Column() + `) COLLATE "C" ` + dir + ", c.id ASC"
}

// compare orders two clients by the sort field, ignoring case. Byte-wise
// comparison matches the "C" collation OrderBy asks for.
func (s Sort) compare(a, b *models.Client) int {
	av, bv := strings.ToLower(s.Field.Value(a)), strings.ToLower(s.Field.Value(b))
	cmp := strings.Compare(av, bv)
	if s.Descending {
		cmp = -cmp
	}
	return cmp
}

// Apply sorts clients in place. Input is expected in ascending id order,
// which the stable sort preserves for ties.
func (s Sort) Apply(clients []models.Client) {
	sort.SliceStable(clients, func(i, j int) bool {
		return s.compare(&clients[i], &clients[j]) < 0
	})
}

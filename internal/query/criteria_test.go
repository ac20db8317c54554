package query

import (
	"math"
	"testing"

	"bank_panel_backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func sampleClients() []models.Client {
	return []models.Client{
		{
			ID: 1, FirstName: "Ana", LastName: "Smith", Email: "ana@bank.test",
			PersonalID: "12345678901", MobileNumber: "+995555000001", Sex: models.SexFemale,
			Address: models.Address{Country: "Georgia", City: "Tbilisi", Street: "Rustaveli 1", ZipCode: "0108"},
			Accounts: []models.Account{
				{ID: 10, AccountNumber: "001", AccountType: "Savings", Balance: decimal.NewFromInt(100)},
			},
		},
		{
			ID: 2, FirstName: "Bob", LastName: "Smith-Jones", Email: "bob@bank.test",
			PersonalID: "22345678901", MobileNumber: "+995555000002", Sex: models.SexMale,
			Address: models.Address{Country: "Georgia", City: "Batumi", Street: "Chavchavadze 5", ZipCode: "6000"},
			Accounts: []models.Account{
				{ID: 20, AccountNumber: "002", AccountType: "Checking", Balance: decimal.NewFromInt(10)},
				{ID: 21, AccountNumber: "003", AccountType: "Savings", Balance: decimal.NewFromInt(5000)},
			},
		},
		{
			ID: 3, FirstName: "Cleo", LastName: "Brown", Email: "cleo@mail.test",
			PersonalID: "32345678901", MobileNumber: "+14155550777", Sex: models.SexOther,
			Address: models.Address{Country: "USA", City: "Smithville", Street: "Main 7", ZipCode: "78957"},
		},
	}
}

func matchingIDs(t *testing.T, c models.FilterCriteria) []int64 {
	t.Helper()
	pred := Build(c)
	var ids []int64
	for _, cl := range sampleClients() {
		cl := cl
		if pred.Match(&cl) {
			ids = append(ids, cl.ID)
		}
	}
	return ids
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	c, err := Normalize(models.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.PageNumber)
	assert.Equal(t, 10, c.PageSize)

	again, err := Normalize(c)
	require.NoError(t, err)
	assert.Equal(t, c, again)
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	cases := []models.FilterCriteria{
		{PageNumber: -1},
		{PageSize: -5},
		{PageSize: models.MaxPageSize + 1},
		{PageNumber: 3, PageSize: math.MaxInt/2 + 1},
		{Sex: "Unknown"},
	}
	for _, c := range cases {
		_, err := Normalize(c)
		assert.ErrorIs(t, err, ErrInvalidCriteria)
	}
}

func TestBuildEmptyMatchesAll(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3}, matchingIDs(t, models.FilterCriteria{}))
}

func TestBuildFieldFilters(t *testing.T) {
	tests := []struct {
		name     string
		criteria models.FilterCriteria
		want     []int64
	}{
		{"first name substring ignores case", models.FilterCriteria{FirstName: "an"}, []int64{1}},
		{"last name substring", models.FilterCriteria{LastName: "Smith"}, []int64{1, 2}},
		{"personal id exact", models.FilterCriteria{PersonalID: "12345678901"}, []int64{1}},
		{"personal id is not substring", models.FilterCriteria{PersonalID: "2345678901"}, nil},
		{"sex", models.FilterCriteria{Sex: models.SexMale}, []int64{2}},
		{"country and city", models.FilterCriteria{Country: "georgia", City: "Bat"}, []int64{2}},
		{"zip code", models.FilterCriteria{ZipCode: "789"}, []int64{3}},
		{"account type any account", models.FilterCriteria{AccountType: "savings"}, []int64{1, 2}},
		{"account number", models.FilterCriteria{AccountNumber: "003"}, []int64{2}},
		{"fields are and-combined", models.FilterCriteria{LastName: "Smith", Sex: models.SexFemale}, []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchingIDs(t, tt.criteria))
		})
	}
}

func TestBuildSearchTerm(t *testing.T) {
	// lastName "Smith" / "Smith-Jones" and city "Smithville" all match.
	assert.Equal(t, []int64{1, 2, 3}, matchingIDs(t, models.FilterCriteria{SearchTerm: "Smith"}))
	assert.Equal(t, []int64{2}, matchingIDs(t, models.FilterCriteria{SearchTerm: "003"}))
	assert.Equal(t, []int64{3}, matchingIDs(t, models.FilterCriteria{SearchTerm: "mail.test"}))
	// country is not part of the search term group
	assert.Nil(t, matchingIDs(t, models.FilterCriteria{SearchTerm: "USA"}))
	// the OR group is and-combined with field filters
	assert.Equal(t, []int64{2}, matchingIDs(t, models.FilterCriteria{SearchTerm: "Smith", FirstName: "Bob"}))
}

func TestBuildBalanceBounds(t *testing.T) {
	// Bob qualifies through two different accounts (10 <= 200, 5000 >= 50)
	assert.Equal(t, []int64{1, 2}, matchingIDs(t, models.FilterCriteria{MinBalance: dec("50"), MaxBalance: dec("200")}))
	assert.Equal(t, []int64{2}, matchingIDs(t, models.FilterCriteria{MinBalance: dec("150")}))
	assert.Equal(t, []int64{2}, matchingIDs(t, models.FilterCriteria{MinBalance: dec("1000"), MaxBalance: dec("20")}))
	// clients without accounts never satisfy a balance bound
	assert.Equal(t, []int64{1, 2}, matchingIDs(t, models.FilterCriteria{MaxBalance: dec("100000")}))
}

func TestPage(t *testing.T) {
	tests := []struct {
		name     string
		criteria models.FilterCriteria
		skip     int
		take     int
	}{
		{"first page", models.FilterCriteria{PageNumber: 1, PageSize: 10}, 0, 10},
		{"third page", models.FilterCriteria{PageNumber: 3, PageSize: 25}, 50, 25},
		{"largest exact skip", models.FilterCriteria{PageNumber: math.MaxInt/100 + 1, PageSize: 100}, math.MaxInt / 100 * 100, 100},
		{"overflowing skip saturates", models.FilterCriteria{PageNumber: math.MaxInt, PageSize: 100}, math.MaxInt, 100},
		{"overflow with huge size", models.FilterCriteria{PageNumber: 3, PageSize: math.MaxInt/2 + 1}, math.MaxInt, math.MaxInt/2 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, take := Page(tt.criteria)
			assert.Equal(t, tt.skip, skip)
			assert.Equal(t, tt.take, take)
		})
	}
}

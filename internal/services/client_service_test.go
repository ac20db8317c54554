package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"bank_panel_backend/internal/models"
	"bank_panel_backend/internal/query"
	"bank_panel_backend/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdmin = "4f1c8a52-7d0e-4a8e-9d55-2b1f0f3c6e11"

func newCreateRequest(first, last, personalID string, balances ...int64) CreateClientRequest {
	req := CreateClientRequest{
		Email:        "client@bank.test",
		FirstName:    first,
		LastName:     last,
		PersonalID:   personalID,
		MobileNumber: "+995555123456",
		Sex:          models.SexFemale,
		Address:      &AddressInput{Country: "Georgia", City: "Tbilisi", Street: "Rustaveli 1", ZipCode: "0108"},
	}
	for i, b := range balances {
		req.Accounts = append(req.Accounts, AccountInput{
			AccountNumber: fmt.Sprintf("GE%02d", i),
			AccountType:   "Savings",
			Balance:       decimal.NewFromInt(b),
		})
	}
	return req
}

type clientFixture struct {
	svc     ClientService
	repo    repositories.ClientRepository
	records repositories.SearchRecordRepository
}

func newClientFixture(t *testing.T) clientFixture {
	t.Helper()
	repo := repositories.NewMemoryClientRepository()
	records := repositories.NewMemorySearchRecordRepository()
	return clientFixture{
		svc:     NewClientService(repo, NewSearchHistoryService(records)),
		repo:    repo,
		records: records,
	}
}

func (f clientFixture) seed(t *testing.T, reqs ...CreateClientRequest) []*models.ClientView {
	t.Helper()
	out := make([]*models.ClientView, 0, len(reqs))
	for _, req := range reqs {
		view, err := f.svc.CreateClient(context.Background(), req)
		require.NoError(t, err)
		out = append(out, view)
	}
	return out
}

func (f clientFixture) recordCount(t *testing.T) int {
	t.Helper()
	recs, err := f.records.GetLastSearchRecords(context.Background(), testAdmin, 1000)
	require.NoError(t, err)
	return len(recs)
}

type failingFindRepo struct {
	repositories.ClientRepository
	err error
}

func (r failingFindRepo) FindClients(context.Context, query.Predicate, *query.Sort, int, int) ([]models.Client, error) {
	return nil, r.err
}

func TestListClientsPagesAndProjects(t *testing.T) {
	f := newClientFixture(t)
	f.seed(t,
		newCreateRequest("Ana", "Smith", "12345678901", 100),
		newCreateRequest("Bob", "Smith-Jones", "22345678901", 10, 5000),
		newCreateRequest("Cleo", "Brown", "32345678901", 1),
	)

	page, err := f.svc.ListClients(context.Background(), models.FilterCriteria{PageSize: 2}, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.PageNumber)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Ana", page.Items[0].FirstName)
	assert.Equal(t, "Tbilisi", page.Items[0].Address.City)
	assert.Len(t, page.Items[1].Accounts, 2)

	page, err = f.svc.ListClients(context.Background(), models.FilterCriteria{PageNumber: 5, PageSize: 2}, testAdmin)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.TotalItems)
}

func TestListClientsExtremePaging(t *testing.T) {
	f := newClientFixture(t)
	f.seed(t,
		newCreateRequest("Ana", "Smith", "12345678901", 100),
		newCreateRequest("Bob", "Smith-Jones", "22345678901", 10),
	)

	_, err := f.svc.ListClients(context.Background(), models.FilterCriteria{PageNumber: 3, PageSize: math.MaxInt/2 + 1}, testAdmin)
	assert.ErrorIs(t, err, ErrClientValidation)

	page, err := f.svc.ListClients(context.Background(), models.FilterCriteria{PageNumber: math.MaxInt, PageSize: models.MaxPageSize}, testAdmin)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 2, page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)
}

func TestListClientsRecordsEverySearch(t *testing.T) {
	f := newClientFixture(t)
	f.seed(t, newCreateRequest("Ana", "Smith", "12345678901", 100))

	page, err := f.svc.ListClients(context.Background(), models.FilterCriteria{LastName: "nobody"}, testAdmin)
	require.NoError(t, err)
	assert.Zero(t, page.TotalItems)
	assert.Equal(t, 1, f.recordCount(t))

	_, err = f.svc.ListClients(context.Background(), models.FilterCriteria{}, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, f.recordCount(t))
}

func TestListClientsRecordsBeforeQueryFailure(t *testing.T) {
	records := repositories.NewMemorySearchRecordRepository()
	boom := fmt.Errorf("%w: connection refused", repositories.ErrDatabaseError)
	svc := NewClientService(
		failingFindRepo{ClientRepository: repositories.NewMemoryClientRepository(), err: boom},
		NewSearchHistoryService(records),
	)

	_, err := svc.ListClients(context.Background(), models.FilterCriteria{FirstName: "Ana"}, testAdmin)
	assert.ErrorIs(t, err, repositories.ErrDatabaseError)

	recs, err := records.GetLastSearchRecords(context.Background(), testAdmin, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	criteria, err := DecodeCriteria(recs[0].SearchCriteria)
	require.NoError(t, err)
	assert.Equal(t, "Ana", criteria.FirstName)
}

func TestListClientsRejectsInvalidCriteria(t *testing.T) {
	f := newClientFixture(t)

	_, err := f.svc.ListClients(context.Background(), models.FilterCriteria{PageSize: -1}, testAdmin)
	assert.ErrorIs(t, err, ErrClientValidation)
	assert.ErrorIs(t, err, query.ErrInvalidCriteria)
	assert.Zero(t, f.recordCount(t))
}

func TestListClientsSortsDescendingByFirstName(t *testing.T) {
	f := newClientFixture(t)
	f.seed(t,
		newCreateRequest("Ana", "Smith", "12345678901", 100),
		newCreateRequest("cleo", "Brown", "32345678901", 1),
		newCreateRequest("Bob", "Jones", "22345678901", 10),
	)

	page, err := f.svc.ListClients(context.Background(), models.FilterCriteria{SortBy: "firstName", SortDescending: true}, testAdmin)
	require.NoError(t, err)
	var names []string
	for _, c := range page.Items {
		names = append(names, c.FirstName)
	}
	assert.Equal(t, []string{"cleo", "Bob", "Ana"}, names)
}

func TestLastSearchesReturnsNewestThree(t *testing.T) {
	f := newClientFixture(t)
	for i := 1; i <= 5; i++ {
		_, err := f.svc.ListClients(context.Background(), models.FilterCriteria{City: fmt.Sprintf("city-%d", i), PageNumber: i}, testAdmin)
		require.NoError(t, err)
	}
	_, err := f.svc.ListClients(context.Background(), models.FilterCriteria{City: "other admin"}, "someone-else")
	require.NoError(t, err)

	last, err := f.svc.LastSearches(context.Background(), testAdmin)
	require.NoError(t, err)
	require.Len(t, last, RecentSearchLimit)
	assert.Equal(t, models.FilterCriteria{City: "city-5", PageNumber: 5, PageSize: models.DefaultPageSize}, last[0])
	assert.Equal(t, "city-4", last[1].City)
	assert.Equal(t, "city-3", last[2].City)
}

func TestGetClientByID(t *testing.T) {
	f := newClientFixture(t)
	created := f.seed(t, newCreateRequest("Ana", "Smith", "12345678901", 100))[0]

	view, err := f.svc.GetClientByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "12345678901", view.PersonalID)

	_, err = f.svc.GetClientByID(context.Background(), 0)
	assert.ErrorIs(t, err, ErrClientValidation)

	_, err = f.svc.GetClientByID(context.Background(), created.ID+100)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestCreateClientAssignsIDs(t *testing.T) {
	f := newClientFixture(t)

	view, err := f.svc.CreateClient(context.Background(), newCreateRequest("Ana", "Smith", "12345678901", 100, 0))
	require.NoError(t, err)
	assert.Positive(t, view.ID)
	require.Len(t, view.Accounts, 2)
	assert.Positive(t, view.Accounts[0].ID)
	assert.NotEqual(t, view.Accounts[0].ID, view.Accounts[1].ID)
	assert.True(t, view.Accounts[0].Balance.Equal(decimal.NewFromInt(100)))
}

func TestCreateClientValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateClientRequest)
	}{
		{"short personal id", func(r *CreateClientRequest) { r.PersonalID = "123" }},
		{"bad email", func(r *CreateClientRequest) { r.Email = "not-an-email" }},
		{"mobile not e164", func(r *CreateClientRequest) { r.MobileNumber = "555-0100" }},
		{"unknown sex", func(r *CreateClientRequest) { r.Sex = "Unknown" }},
		{"missing address", func(r *CreateClientRequest) { r.Address = nil }},
		{"empty city", func(r *CreateClientRequest) { r.Address.City = "" }},
		{"no accounts", func(r *CreateClientRequest) { r.Accounts = nil }},
		{"account without number", func(r *CreateClientRequest) { r.Accounts[0].AccountNumber = "" }},
		{"negative balance", func(r *CreateClientRequest) { r.Accounts[0].Balance = decimal.NewFromInt(-1) }},
		{"balance with three decimals", func(r *CreateClientRequest) { r.Accounts[0].Balance = decimal.RequireFromString("10.005") }},
		{"balance wider than the column", func(r *CreateClientRequest) { r.Accounts[0].Balance = decimal.New(1, 16) }},
		{"long first name", func(r *CreateClientRequest) {
			r.FirstName = "Abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghijk"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClientFixture(t)
			req := newCreateRequest("Ana", "Smith", "12345678901", 100)
			tt.mutate(&req)

			_, err := f.svc.CreateClient(context.Background(), req)
			assert.ErrorIs(t, err, ErrClientValidation)
		})
	}
}

func TestCreateClientAcceptsCentPrecision(t *testing.T) {
	f := newClientFixture(t)
	req := newCreateRequest("Ana", "Smith", "12345678901", 0)
	req.Accounts[0].Balance = decimal.RequireFromString("1234.500")

	view, err := f.svc.CreateClient(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "1234.50", view.Accounts[0].Balance.StringFixed(2))
}

func TestCreateClientDuplicatePersonalID(t *testing.T) {
	f := newClientFixture(t)
	f.seed(t, newCreateRequest("Ana", "Smith", "12345678901", 100))

	_, err := f.svc.CreateClient(context.Background(), newCreateRequest("Other", "Person", "12345678901", 1))
	assert.ErrorIs(t, err, ErrPersonalIDExists)
}

func updateFrom(view *models.ClientView) UpdateClientRequest {
	return UpdateClientRequest{
		Email:        view.Email,
		FirstName:    view.FirstName,
		LastName:     view.LastName,
		PersonalID:   view.PersonalID,
		MobileNumber: view.MobileNumber,
		Sex:          view.Sex,
	}
}

func TestUpdateClientMergesAccountsByID(t *testing.T) {
	f := newClientFixture(t)
	created := f.seed(t, newCreateRequest("Ana", "Smith", "12345678901", 100, 200))[0]
	first, second := created.Accounts[0], created.Accounts[1]

	newBalance := decimal.NewFromInt(500)
	newType := "Checking"
	req := updateFrom(created)
	req.LastName = "Smith-Jones"
	req.Accounts = []UpdateAccountInput{
		{ID: first.ID, AccountType: &newType, Balance: &newBalance},
		{ID: 9999, Balance: &newBalance},
	}

	updated, err := f.svc.UpdateClient(context.Background(), created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Smith-Jones", updated.LastName)
	require.Len(t, updated.Accounts, 2)
	assert.True(t, updated.Accounts[0].Balance.Equal(newBalance))
	assert.Equal(t, "Checking", updated.Accounts[0].AccountType)
	assert.Equal(t, first.AccountNumber, updated.Accounts[0].AccountNumber)
	assert.Equal(t, second, updated.Accounts[1])

	stored, err := f.svc.GetClientByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Accounts, stored.Accounts)
	assert.Equal(t, "Tbilisi", stored.Address.City)
}

func TestUpdateClientUnmatchedAccountChangesNothing(t *testing.T) {
	f := newClientFixture(t)
	created := f.seed(t, newCreateRequest("Ana", "Smith", "12345678901", 100))[0]

	balance := decimal.NewFromInt(500)
	req := updateFrom(created)
	req.Accounts = []UpdateAccountInput{{ID: created.Accounts[0].ID + 7, Balance: &balance}}

	updated, err := f.svc.UpdateClient(context.Background(), created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, created.Accounts, updated.Accounts)
}

func TestUpdateClientReplacesAddress(t *testing.T) {
	f := newClientFixture(t)
	created := f.seed(t, newCreateRequest("Ana", "Smith", "12345678901", 100))[0]

	req := updateFrom(created)
	req.Address = &AddressInput{Country: "Georgia", City: "Batumi", Street: "Gorgiladze 3", ZipCode: "6010"}
	updated, err := f.svc.UpdateClient(context.Background(), created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.AddressView{Country: "Georgia", City: "Batumi", Street: "Gorgiladze 3", ZipCode: "6010"}, updated.Address)
}

func TestUpdateClientErrors(t *testing.T) {
	f := newClientFixture(t)
	views := f.seed(t,
		newCreateRequest("Ana", "Smith", "12345678901", 100),
		newCreateRequest("Bob", "Jones", "22345678901", 10),
	)

	_, err := f.svc.UpdateClient(context.Background(), 999, updateFrom(views[0]))
	assert.ErrorIs(t, err, ErrClientNotFound)

	req := updateFrom(views[1])
	req.PersonalID = views[0].PersonalID
	_, err = f.svc.UpdateClient(context.Background(), views[1].ID, req)
	assert.ErrorIs(t, err, ErrPersonalIDExists)

	negative := decimal.NewFromInt(-5)
	req = updateFrom(views[0])
	req.Accounts = []UpdateAccountInput{{ID: views[0].Accounts[0].ID, Balance: &negative}}
	_, err = f.svc.UpdateClient(context.Background(), views[0].ID, req)
	assert.ErrorIs(t, err, ErrClientValidation)

	fractional := decimal.RequireFromString("0.001")
	req.Accounts = []UpdateAccountInput{{ID: views[0].Accounts[0].ID, Balance: &fractional}}
	_, err = f.svc.UpdateClient(context.Background(), views[0].ID, req)
	assert.ErrorIs(t, err, ErrClientValidation)
}

func TestDeleteClient(t *testing.T) {
	f := newClientFixture(t)
	created := f.seed(t, newCreateRequest("Ana", "Smith", "12345678901", 100))[0]

	deleted, err := f.svc.DeleteClient(context.Background(), created.ID+1)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = f.svc.DeleteClient(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = f.svc.GetClientByID(context.Background(), created.ID)
	assert.True(t, errors.Is(err, ErrClientNotFound))
}

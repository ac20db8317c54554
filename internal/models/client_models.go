package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sex is the recorded sex of a bank client. The empty value means "not set".
type Sex string

const (
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
	SexOther  Sex = "Other"
)

// Valid reports whether s is one of the known values.
func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexOther:
		return true
	}
	return false
}

// Client represents a bank client together with its owned address and accounts.
type Client struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	PersonalID   string    `json:"personal_id" db:"personal_id"`
	ProfilePhoto string    `json:"profile_photo,omitempty" db:"profile_photo"`
	MobileNumber string    `json:"mobile_number" db:"mobile_number"`
	Sex          Sex       `json:"sex" db:"sex"`
	Address      Address   `json:"address"`
	Accounts     []Account `json:"accounts"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Address is owned by exactly one client.
type Address struct {
	ID       int64  `json:"id" db:"id"`
	ClientID int64  `json:"client_id" db:"client_id"`
	Country  string `json:"country" db:"country"`
	City     string `json:"city" db:"city"`
	Street   string `json:"street" db:"street"`
	ZipCode  string `json:"zip_code" db:"zip_code"`
}

// Account is a bank account owned by a client.
type Account struct {
	ID            int64           `json:"id" db:"id"`
	ClientID      int64           `json:"client_id" db:"client_id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	AccountType   string          `json:"account_type" db:"account_type"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
}

// Clone returns a deep copy of the client graph.
func (c *Client) Clone() *Client {
	cp := *c
	cp.Accounts = make([]Account, len(c.Accounts))
	copy(cp.Accounts, c.Accounts)
	return &cp
}

// ClientView is the external projection of a client returned by the API.
type ClientView struct {
	ID           int64         `json:"id"`
	Email        string        `json:"email"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	PersonalID   string        `json:"personal_id"`
	ProfilePhoto string        `json:"profile_photo,omitempty"`
	MobileNumber string        `json:"mobile_number"`
	Sex          Sex           `json:"sex"`
	Address      AddressView   `json:"address"`
	Accounts     []AccountView `json:"accounts"`
}

type AddressView struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Street  string `json:"street"`
	ZipCode string `json:"zip_code"`
}

type AccountView struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"account_number"`
	AccountType   string          `json:"account_type"`
	Balance       decimal.Decimal `json:"balance"`
}

// NewClientView flattens a client aggregate into its API representation.
func NewClientView(c *Client) ClientView {
	accounts := make([]AccountView, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		accounts = append(accounts, AccountView{
			ID:            a.ID,
			AccountNumber: a.AccountNumber,
			AccountType:   a.AccountType,
			Balance:       a.Balance,
		})
	}
	return ClientView{
		ID:           c.ID,
		Email:        c.Email,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		PersonalID:   c.PersonalID,
		ProfilePhoto: c.ProfilePhoto,
		MobileNumber: c.MobileNumber,
		Sex:          c.Sex,
		Address: AddressView{
			Country: c.Address.Country,
			City:    c.Address.City,
			Street:  c.Address.Street,
			ZipCode: c.Address.ZipCode,
		},
		Accounts: accounts,
	}
}

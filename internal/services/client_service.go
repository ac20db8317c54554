package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"bank_panel_backend/internal/models"
	"bank_panel_backend/internal/query"
	"bank_panel_backend/internal/repositories"
	"bank_panel_backend/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// --- Custom Service Errors for Client ---
var (
	ErrClientNotFound   = errors.New("client not found")
	ErrClientValidation = errors.New("client data validation error")
	ErrPersonalIDExists = errors.New("personal id already exists")
)

// --- Client DTOs ---
type AddressInput struct {
	Country string `json:"country" validate:"required,max=100"`
	City    string `json:"city" validate:"required,max=100"`
	Street  string `json:"street" validate:"required,max=255"`
	ZipCode string `json:"zip_code" validate:"required,max=20"`
}

type AccountInput struct {
	AccountNumber string          `json:"account_number" validate:"required,max=64"`
	AccountType   string          `json:"account_type" validate:"required,max=32"`
	Balance       decimal.Decimal `json:"balance"`
}

type CreateClientRequest struct {
	Email        string         `json:"email" validate:"required,email"`
	FirstName    string         `json:"first_name" validate:"required,max=60"`
	LastName     string         `json:"last_name" validate:"required,max=60"`
	PersonalID   string         `json:"personal_id" validate:"required,len=11"`
	ProfilePhoto string         `json:"profile_photo" validate:"omitempty,max=2048"`
	MobileNumber string         `json:"mobile_number" validate:"required,e164"`
	Sex          models.Sex     `json:"sex" validate:"required,oneof=Male Female Other"`
	Address      *AddressInput  `json:"address" validate:"required"`
	Accounts     []AccountInput `json:"accounts" validate:"required,min=1,dive"`
}

// UpdateAccountInput changes an account the client already owns. Nil fields keep their value.
type UpdateAccountInput struct {
	ID            int64            `json:"id" validate:"required,gt=0"`
	AccountNumber *string          `json:"account_number" validate:"omitempty,min=1,max=64"`
	AccountType   *string          `json:"account_type" validate:"omitempty,min=1,max=32"`
	Balance       *decimal.Decimal `json:"balance"`
}

// UpdateClientRequest overwrites every scalar field. Address is replaced when present.
type UpdateClientRequest struct {
	Email        string               `json:"email" validate:"required,email"`
	FirstName    string               `json:"first_name" validate:"required,max=60"`
	LastName     string               `json:"last_name" validate:"required,max=60"`
	PersonalID   string               `json:"personal_id" validate:"required,len=11"`
	ProfilePhoto string               `json:"profile_photo" validate:"omitempty,max=2048"`
	MobileNumber string               `json:"mobile_number" validate:"required,e164"`
	Sex          models.Sex           `json:"sex" validate:"required,oneof=Male Female Other"`
	Address      *AddressInput        `json:"address"`
	Accounts     []UpdateAccountInput `json:"accounts" validate:"omitempty,dive"`
}

// --- ClientService Interface ---
type ClientService interface {
	ListClients(ctx context.Context, criteria models.FilterCriteria, adminID string) (*models.PagedResult[models.ClientView], error)
	GetClientByID(ctx context.Context, clientID int64) (*models.ClientView, error)
	CreateClient(ctx context.Context, req CreateClientRequest) (*models.ClientView, error)
	UpdateClient(ctx context.Context, clientID int64, req UpdateClientRequest) (*models.ClientView, error)
	// DeleteClient reports whether a client was found and deleted.
	DeleteClient(ctx context.Context, clientID int64) (bool, error)
	LastSearches(ctx context.Context, adminID string) ([]models.FilterCriteria, error)
}

// --- clientService Implementation ---
type clientService struct {
	clientRepo repositories.ClientRepository
	engine     *query.Engine
	history    SearchHistoryService
}

// NewClientService creates a new instance of ClientService.
func NewClientService(repo repositories.ClientRepository, history SearchHistoryService) ClientService {
	return &clientService{
		clientRepo: repo,
		engine:     query.NewEngine(repo),
		history:    history,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// describeValidation renders validator output as "field failed 'tag=param'" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s=%s'", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s'", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func validationError(err error) error {
	return fmt.Errorf("%w: %s", ErrClientValidation, describeValidation(err))
}

// Balances are stored as NUMERIC(18, 2).
const balanceScale = 2

var balanceLimit = decimal.New(1, 16)

func checkBalance(d decimal.Decimal, field string) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: %s cannot be negative", ErrClientValidation, field)
	}
	if !d.Equal(d.Truncate(balanceScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrClientValidation, field, balanceScale)
	}
	if d.GreaterThanOrEqual(balanceLimit) {
		return fmt.Errorf("%w: %s is too large", ErrClientValidation, field)
	}
	return nil
}

func (s *clientService) ListClients(ctx context.Context, criteria models.FilterCriteria, adminID string) (*models.PagedResult[models.ClientView], error) {
	criteria, err := query.Normalize(criteria)
	if err != nil {
		utils.RecordClientSearch("invalid")
		return nil, fmt.Errorf("%w: %w", ErrClientValidation, err)
	}

	// The search is written to the audit log even if the query below fails.
	if err := s.history.Record(ctx, adminID, criteria); err != nil {
		utils.RecordClientSearch("failed")
		return nil, err
	}

	clients, total, err := s.engine.Query(ctx, criteria)
	if err != nil {
		utils.RecordClientSearch("failed")
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	utils.RecordClientSearch("ok")

	views := make([]models.ClientView, 0, len(clients))
	for i := range clients {
		views = append(views, models.NewClientView(&clients[i]))
	}
	log.Debug().Str("admin_id", adminID).Int("total", total).Int("page", criteria.PageNumber).Msg("Clients listed")
	return models.NewPagedResult(views, total, criteria.PageNumber, criteria.PageSize), nil
}

func (s *clientService) GetClientByID(ctx context.Context, clientID int64) (*models.ClientView, error) {
	if clientID <= 0 {
		return nil, fmt.Errorf("%w: client id must be positive", ErrClientValidation)
	}
	client, err := s.clientRepo.GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client by ID: %w", err)
	}
	view := models.NewClientView(client)
	return &view, nil
}

func (s *clientService) CreateClient(ctx context.Context, req CreateClientRequest) (*models.ClientView, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	for i, a := range req.Accounts {
		if err := checkBalance(a.Balance, fmt.Sprintf("accounts[%d].balance", i)); err != nil {
			return nil, err
		}
	}

	client := &models.Client{
		Email:        strings.TrimSpace(req.Email),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PersonalID:   req.PersonalID,
		ProfilePhoto: req.ProfilePhoto,
		MobileNumber: req.MobileNumber,
		Sex:          req.Sex,
		Address: models.Address{
			Country: req.Address.Country,
			City:    req.Address.City,
			Street:  req.Address.Street,
			ZipCode: req.Address.ZipCode,
		},
		Accounts: make([]models.Account, 0, len(req.Accounts)),
	}
	for _, a := range req.Accounts {
		client.Accounts = append(client.Accounts, models.Account{
			AccountNumber: a.AccountNumber,
			AccountType:   a.AccountType,
			Balance:       a.Balance,
		})
	}

	if err := s.clientRepo.CreateClient(ctx, client); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrPersonalIDExists
		}
		return nil, fmt.Errorf("failed to create client in repository: %w", err)
	}
	log.Info().Int64("client_id", client.ID).Int("accounts", len(client.Accounts)).Msg("Client created")

	view := models.NewClientView(client)
	return &view, nil
}

func (s *clientService) UpdateClient(ctx context.Context, clientID int64, req UpdateClientRequest) (*models.ClientView, error) {
	if clientID <= 0 {
		return nil, fmt.Errorf("%w: client id must be positive", ErrClientValidation)
	}
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	for i, a := range req.Accounts {
		if a.Balance != nil {
			if err := checkBalance(*a.Balance, fmt.Sprintf("accounts[%d].balance", i)); err != nil {
				return nil, err
			}
		}
	}

	client, err := s.clientRepo.GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to find client for update: %w", err)
	}

	client.Email = strings.TrimSpace(req.Email)
	client.FirstName = strings.TrimSpace(req.FirstName)
	client.LastName = strings.TrimSpace(req.LastName)
	client.PersonalID = req.PersonalID
	client.ProfilePhoto = req.ProfilePhoto
	client.MobileNumber = req.MobileNumber
	client.Sex = req.Sex
	if req.Address != nil {
		client.Address.Country = req.Address.Country
		client.Address.City = req.Address.City
		client.Address.Street = req.Address.Street
		client.Address.ZipCode = req.Address.ZipCode
	}
	mergeAccounts(client.Accounts, req.Accounts)

	if err := s.clientRepo.UpdateClient(ctx, client); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrPersonalIDExists
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to update client in repository: %w", err)
	}
	log.Info().Int64("client_id", client.ID).Msg("Client updated")

	view := models.NewClientView(client)
	return &view, nil
}

// mergeAccounts applies incoming changes to existing accounts with the same id.
// Incoming ids the client does not own are ignored; no account is added or removed.
func mergeAccounts(existing []models.Account, incoming []UpdateAccountInput) {
	for _, in := range incoming {
		for i := range existing {
			if existing[i].ID != in.ID {
				continue
			}
			if in.AccountNumber != nil {
				existing[i].AccountNumber = *in.AccountNumber
			}
			if in.AccountType != nil {
				existing[i].AccountType = *in.AccountType
			}
			if in.Balance != nil {
				existing[i].Balance = *in.Balance
			}
		}
	}
}

func (s *clientService) DeleteClient(ctx context.Context, clientID int64) (bool, error) {
	if clientID <= 0 {
		return false, fmt.Errorf("%w: client id must be positive", ErrClientValidation)
	}
	if err := s.clientRepo.DeleteClient(ctx, clientID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete client: %w", err)
	}
	log.Info().Int64("client_id", clientID).Msg("Client deleted")
	return true, nil
}

func (s *clientService) LastSearches(ctx context.Context, adminID string) ([]models.FilterCriteria, error) {
	return s.history.LastN(ctx, adminID, RecentSearchLimit)
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank_panel_backend/internal/models"
	"bank_panel_backend/internal/query"

	"github.com/lib/pq"
)

// ClientRepository defines the persistence gateway for client aggregates
// (client row, its address and its accounts).
type ClientRepository interface {
	query.ClientStore
	GetClientByID(ctx context.Context, id int64) (*models.Client, error)
	// CreateClient inserts the whole graph and fills in store-assigned ids.
	CreateClient(ctx context.Context, client *models.Client) error
	// UpdateClient writes scalars, the address and every account already owned by the client.
	UpdateClient(ctx context.Context, client *models.Client) error
	// DeleteClient removes the client; address and accounts cascade.
	DeleteClient(ctx context.Context, id int64) error
}

type clientRepository struct {
	db *sql.DB
}

// NewClientRepository creates a new PostgreSQL backed ClientRepository.
func NewClientRepository(db *sql.DB) ClientRepository {
	return &clientRepository{db: db}
}

const clientSelect = `SELECT c.id, c.email, c.first_name, c.last_name, c.personal_id, c.profile_photo,
	       c.mobile_number, c.sex, c.created_at, c.updated_at,
	       a.id, a.country, a.city, a.street, a.zip_code
	  FROM clients c
	  JOIN addresses a ON a.client_id = c.id`

func scanClient(row scanner) (*models.Client, error) {
	var (
		client models.Client
		sex    string
	)
	err := row.Scan(
		&client.ID, &client.Email, &client.FirstName, &client.LastName, &client.PersonalID, &client.ProfilePhoto,
		&client.MobileNumber, &sex, &client.CreatedAt, &client.UpdatedAt,
		&client.Address.ID, &client.Address.Country, &client.Address.City, &client.Address.Street, &client.Address.ZipCode,
	)
	if err != nil {
		return nil, err
	}
	client.Sex = models.Sex(sex)
	client.Address.ClientID = client.ID
	client.Accounts = []models.Account{}
	return &client, nil
}

// buildFindQuery renders the paged SELECT for pred. A negative skip is read as zero.
func buildFindQuery(pred query.Predicate, sort *query.Sort, skip, take int) (string, []interface{}) {
	where, args := query.ToSQL(pred, 1)

	var qb strings.Builder
	qb.WriteString(clientSelect)
	qb.WriteString(" WHERE " + where)
	if sort != nil {
		qb.WriteString(" ORDER BY " + sort.OrderBy())
	} else {
		qb.WriteString(" ORDER BY c.id ASC")
	}
	if skip < 0 {
		skip = 0
	}
	fmt.Fprintf(&qb, " LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, take, skip)
	return qb.String(), args
}

// FindClients retrieves one page of clients matching pred.
func (r *clientRepository) FindClients(ctx context.Context, pred query.Predicate, sort *query.Sort, skip, take int) ([]models.Client, error) {
	return findClients(ctx, r.db, pred, sort, skip, take)
}

func findClients(ctx context.Context, exec SQLExecutor, pred query.Predicate, sort *query.Sort, skip, take int) ([]models.Client, error) {
	q, args := buildFindQuery(pred, sort, skip, take)
	rows, err := exec.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying clients: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning client: %v", ErrDatabaseError, err)
		}
		clients = append(clients, *client)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating client rows: %v", ErrDatabaseError, err)
	}

	if err := attachAccounts(ctx, exec, clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// CountClients counts every client matching pred, ignoring paging.
func (r *clientRepository) CountClients(ctx context.Context, pred query.Predicate) (int, error) {
	where, args := query.ToSQL(pred, 1)
	q := `SELECT COUNT(*) FROM clients c JOIN addresses a ON a.client_id = c.id WHERE ` + where

	var total int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: counting clients: %v", ErrDatabaseError, err)
	}
	return total, nil
}

// attachAccounts loads the accounts of every given client in one round trip.
func attachAccounts(ctx context.Context, exec SQLExecutor, clients []models.Client) error {
	if len(clients) == 0 {
		return nil
	}
	ids := make([]int64, len(clients))
	index := make(map[int64]int, len(clients))
	for i, c := range clients {
		ids[i] = c.ID
		index[c.ID] = i
	}

	rows, err := exec.QueryContext(ctx,
		`SELECT id, client_id, account_number, account_type, balance
		   FROM accounts WHERE client_id = ANY($1) ORDER BY id ASC`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("%w: querying accounts: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.ClientID, &a.AccountNumber, &a.AccountType, &a.Balance); err != nil {
			return fmt.Errorf("%w: scanning account: %v", ErrDatabaseError, err)
		}
		i := index[a.ClientID]
		clients[i].Accounts = append(clients[i].Accounts, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterating account rows: %v", ErrDatabaseError, err)
	}
	return nil
}

// GetClientByID retrieves a client graph by id.
func (r *clientRepository) GetClientByID(ctx context.Context, id int64) (*models.Client, error) {
	return getClient(ctx, r.db, id)
}

func getClient(ctx context.Context, exec SQLExecutor, id int64) (*models.Client, error) {
	client, err := scanClient(exec.QueryRowContext(ctx, clientSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting client by ID %d: %v", ErrDatabaseError, id, err)
	}
	page := []models.Client{*client}
	if err := attachAccounts(ctx, exec, page); err != nil {
		return nil, err
	}
	return &page[0], nil
}

// CreateClient inserts a client, its address and accounts in one transaction.
func (r *clientRepository) CreateClient(ctx context.Context, client *models.Client) error {
	now := time.Now().UTC()
	client.CreatedAt, client.UpdatedAt = now, now

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return insertClient(ctx, tx, client)
	})
}

func insertClient(ctx context.Context, exec SQLExecutor, client *models.Client) error {
	err := exec.QueryRowContext(ctx,
		`INSERT INTO clients (email, first_name, last_name, personal_id, profile_photo, mobile_number, sex, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		client.Email, client.FirstName, client.LastName, client.PersonalID, client.ProfilePhoto,
		client.MobileNumber, string(client.Sex), client.CreatedAt, client.UpdatedAt,
	).Scan(&client.ID)
	if err != nil {
		return wrapWriteError(err, "creating client")
	}

	client.Address.ClientID = client.ID
	err = exec.QueryRowContext(ctx,
		`INSERT INTO addresses (client_id, country, city, street, zip_code)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		client.ID, client.Address.Country, client.Address.City, client.Address.Street, client.Address.ZipCode,
	).Scan(&client.Address.ID)
	if err != nil {
		return wrapWriteError(err, "creating address")
	}

	for i := range client.Accounts {
		a := &client.Accounts[i]
		a.ClientID = client.ID
		err = exec.QueryRowContext(ctx,
			`INSERT INTO accounts (client_id, account_number, account_type, balance)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			client.ID, a.AccountNumber, a.AccountType, a.Balance,
		).Scan(&a.ID)
		if err != nil {
			return wrapWriteError(err, "creating account")
		}
	}
	return nil
}

// UpdateClient updates an existing client graph. Accounts are matched by id
// and owner; no account is inserted or removed here.
func (r *clientRepository) UpdateClient(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now().UTC()

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return updateClient(ctx, tx, client)
	})
}

func updateClient(ctx context.Context, exec SQLExecutor, client *models.Client) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE clients SET
		    email = $1, first_name = $2, last_name = $3, personal_id = $4,
		    profile_photo = $5, mobile_number = $6, sex = $7, updated_at = $8
		  WHERE id = $9`,
		client.Email, client.FirstName, client.LastName, client.PersonalID,
		client.ProfilePhoto, client.MobileNumber, string(client.Sex), client.UpdatedAt, client.ID,
	)
	if err != nil {
		return wrapWriteError(err, fmt.Sprintf("updating client ID %d", client.ID))
	}
	if err := expectRows(result, fmt.Sprintf("updating client ID %d", client.ID)); err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx,
		`UPDATE addresses SET country = $1, city = $2, street = $3, zip_code = $4 WHERE client_id = $5`,
		client.Address.Country, client.Address.City, client.Address.Street, client.Address.ZipCode, client.ID,
	)
	if err != nil {
		return wrapWriteError(err, fmt.Sprintf("updating address of client ID %d", client.ID))
	}

	for _, a := range client.Accounts {
		_, err = exec.ExecContext(ctx,
			`UPDATE accounts SET account_number = $1, account_type = $2, balance = $3
			  WHERE id = $4 AND client_id = $5`,
			a.AccountNumber, a.AccountType, a.Balance, a.ID, client.ID,
		)
		if err != nil {
			return wrapWriteError(err, fmt.Sprintf("updating account ID %d", a.ID))
		}
	}
	return nil
}

// DeleteClient removes a client from the database.
func (r *clientRepository) DeleteClient(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting client ID %d: %v", ErrDatabaseError, id, err)
	}
	return expectRows(result, fmt.Sprintf("deleting client ID %d", id))
}

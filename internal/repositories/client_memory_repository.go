package repositories

import (
	"context"
	"sync"
	"time"

	"bank_panel_backend/internal/models"
	"bank_panel_backend/internal/query"
)

type memoryClientRepository struct {
	mu            sync.RWMutex
	clients       []*models.Client // ascending id
	nextClientID  int64
	nextAddressID int64
	nextAccountID int64
}

// NewMemoryClientRepository creates a ClientRepository that keeps everything in process memory.
// Stored graphs are copied on the way in and out.
func NewMemoryClientRepository() ClientRepository {
	return &memoryClientRepository{}
}

func (r *memoryClientRepository) matching(pred query.Predicate) []models.Client {
	matched := []models.Client{}
	for _, c := range r.clients {
		if pred.Match(c) {
			matched = append(matched, *c.Clone())
		}
	}
	return matched
}

func (r *memoryClientRepository) FindClients(ctx context.Context, pred query.Predicate, sort *query.Sort, skip, take int) ([]models.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matched := r.matching(pred)
	r.mu.RUnlock()

	if sort != nil {
		sort.Apply(matched)
	}
	if skip < 0 {
		skip = 0
	}
	if skip >= len(matched) || take <= 0 {
		return []models.Client{}, nil
	}
	end := len(matched)
	if take < end-skip {
		end = skip + take
	}
	return matched[skip:end], nil
}

func (r *memoryClientRepository) CountClients(ctx context.Context, pred query.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.clients {
		if pred.Match(c) {
			n++
		}
	}
	return n, nil
}

func (r *memoryClientRepository) indexOf(id int64) int {
	for i, c := range r.clients {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (r *memoryClientRepository) personalIDTaken(personalID string, except int64) bool {
	for _, c := range r.clients {
		if c.PersonalID == personalID && c.ID != except {
			return true
		}
	}
	return false
}

func (r *memoryClientRepository) GetClientByID(ctx context.Context, id int64) (*models.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return r.clients[i].Clone(), nil
}

func (r *memoryClientRepository) CreateClient(ctx context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.personalIDTaken(client.PersonalID, 0) {
		return ErrDuplicateKey
	}

	now := time.Now().UTC()
	r.nextClientID++
	r.nextAddressID++
	client.ID = r.nextClientID
	client.CreatedAt, client.UpdatedAt = now, now
	client.Address.ID = r.nextAddressID
	client.Address.ClientID = client.ID
	for i := range client.Accounts {
		r.nextAccountID++
		client.Accounts[i].ID = r.nextAccountID
		client.Accounts[i].ClientID = client.ID
	}

	r.clients = append(r.clients, client.Clone())
	return nil
}

func (r *memoryClientRepository) UpdateClient(ctx context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(client.ID)
	if i < 0 {
		return ErrNotFound
	}
	if r.personalIDTaken(client.PersonalID, client.ID) {
		return ErrDuplicateKey
	}

	stored := r.clients[i]
	updated := client.Clone()
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	updated.Address.ID = stored.Address.ID
	updated.Address.ClientID = stored.ID

	// only accounts the client already owns are written
	accounts := make([]models.Account, len(stored.Accounts))
	copy(accounts, stored.Accounts)
	for _, in := range client.Accounts {
		for j := range accounts {
			if accounts[j].ID == in.ID {
				accounts[j].AccountNumber = in.AccountNumber
				accounts[j].AccountType = in.AccountType
				accounts[j].Balance = in.Balance
			}
		}
	}
	updated.Accounts = accounts

	r.clients[i] = updated
	client.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *memoryClientRepository) DeleteClient(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	r.clients = append(r.clients[:i], r.clients[i+1:]...)
	return nil
}

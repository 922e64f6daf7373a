package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"mygizmo/internal/billing"
	"mygizmo/internal/models"
	"mygizmo/internal/storage"
)

// fakeDB is an in-memory stand-in for the Postgres repository.
type fakeDB struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*models.Account
	files    []models.StoredFile
	pingErr  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{accounts: map[int64]*models.Account{}}
}

func (d *fakeDB) CreateAccount(_ context.Context, acc *models.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.accounts {
		if a.Username == acc.Username || strings.EqualFold(a.Email, acc.Email) {
			return fmt.Errorf("fakeDB: %w", storage.ErrConflict)
		}
	}
	d.nextID++
	acc.ID = d.nextID
	acc.CreatedAt = time.Now()
	if acc.SubscriptionStatus == "" {
		acc.SubscriptionStatus = models.SubscriptionInactive
	}
	cp := *acc
	d.accounts[acc.ID] = &cp
	return nil
}

func (d *fakeDB) GetAccountByID(_ context.Context, id int64) (*models.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (d *fakeDB) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (d *fakeDB) AccountTaken(_ context.Context, username, email string) (bool, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var u, e bool
	for _, a := range d.accounts {
		u = u || a.Username == username
		e = e || strings.EqualFold(a.Email, email)
	}
	return u, e, nil
}

func (d *fakeDB) SetSubscriptionStatus(_ context.Context, customerID, status string) (*models.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.accounts {
		if a.StripeCustomerID != nil && *a.StripeCustomerID == customerID {
			a.SubscriptionStatus = status
			cp := *a
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (d *fakeDB) DeleteAccount(_ context.Context, id int64) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.accounts[id]; !ok {
		return nil, storage.ErrNotFound
	}
	delete(d.accounts, id)
	var names []string
	kept := d.files[:0]
	for _, f := range d.files {
		if f.AccountID == id {
			names = append(names, f.StoredName)
			continue
		}
		kept = append(kept, f)
	}
	d.files = kept
	return names, nil
}

func (d *fakeDB) Ping(context.Context) error { return d.pingErr }

func (d *fakeDB) CreateStoredFile(ctx context.Context, f *models.StoredFile, persist func(ctx context.Context) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, row := range d.files {
		if row.StoredName == f.StoredName {
			return fmt.Errorf("fakeDB: %w", storage.ErrConflict)
		}
	}
	if err := persist(ctx); err != nil {
		return err
	}
	f.CreatedAt = time.Now()
	d.files = append(d.files, *f)
	return nil
}

func (d *fakeDB) GetStoredFile(_ context.Context, storedName string, accountID int64) (*models.StoredFile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, row := range d.files {
		if row.StoredName == storedName && row.AccountID == accountID {
			cp := row
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (d *fakeDB) ListStoredFiles(_ context.Context, accountID int64, limit int) ([]models.StoredFile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.StoredFile
	for i := len(d.files) - 1; i >= 0 && len(out) < limit; i-- {
		if d.files[i].AccountID == accountID {
			out = append(out, d.files[i])
		}
	}
	return out, nil
}

func (d *fakeDB) storedFiles() []models.StoredFile {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.StoredFile(nil), d.files...)
}

func (d *fakeDB) account(username string) *models.Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.accounts {
		if a.Username == username {
			cp := *a
			return &cp
		}
	}
	return nil
}

type fakeBilling struct {
	event      billing.Event
	webhookErr error
	sessionErr error
}

func (b *fakeBilling) Enabled() bool          { return true }
func (b *fakeBilling) PublishableKey() string { return "pk_test_1" }

func (b *fakeBilling) CreateCustomer(_ context.Context, _, name string) (string, error) {
	return "cus_" + name, nil
}

func (b *fakeBilling) CreateCheckoutSession(_ context.Context, customerID, successURL, _ string) (string, error) {
	if b.sessionErr != nil {
		return "", b.sessionErr
	}
	return "cs_for_" + customerID, nil
}

func (b *fakeBilling) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	if b.sessionErr != nil {
		return "", b.sessionErr
	}
	return "https://portal.example/" + customerID, nil
}

func (b *fakeBilling) ParseWebhook(payload []byte, signature string) (billing.Event, error) {
	if b.webhookErr != nil {
		return billing.Event{}, b.webhookErr
	}
	if signature != "valid" {
		return billing.Event{}, billing.ErrInvalidSignature
	}
	return b.event, nil
}

type fakeRemover struct{ err error }

func (r fakeRemover) Remove(_ context.Context, image []byte) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return append([]byte("nobg:"), image...), nil
}

type fakeRasterizer struct{ pages [][]byte }

func (r fakeRasterizer) Rasterize(_ context.Context, pdf io.Reader) ([][]byte, error) {
	data, err := io.ReadAll(pdf)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		return nil, errors.New("not a pdf")
	}
	return r.pages, nil
}

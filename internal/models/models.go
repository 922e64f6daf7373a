package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubscriptionInactive = "inactive"
	SubscriptionActive   = "active"
)

// Tool labels recorded with every stored file.
const (
	ToolImageStudio       = "Image Studio"
	ToolFileConverter     = "File Converter"
	ToolBackgroundRemover = "AI Background Remover"
)

type Account struct {
	ID                 int64     `db:"id"`
	Username           string    `db:"username"`
	Email              string    `db:"email"`
	PasswordHash       string    `db:"password_hash"`
	StripeCustomerID   *string   `db:"stripe_customer_id"`
	SubscriptionStatus string    `db:"subscription_status"` // inactive, active or provider-supplied
	CreatedAt          time.Time `db:"created_at"`
}

// StoredFile is the metadata row of an artifact kept for its owner.
// Rows are never updated; they go away with the owning account.
type StoredFile struct {
	ID           uuid.UUID `db:"id"`
	OriginalName string    `db:"original_name"`
	StoredName   string    `db:"stored_name"`
	Tool         string    `db:"tool"`
	CreatedAt    time.Time `db:"created_at"`
	AccountID    int64     `db:"account_id"`
}

// Identity is an authenticated caller. A nil *Identity is anonymous.
type Identity struct {
	AccountID int64
	Username  string
}

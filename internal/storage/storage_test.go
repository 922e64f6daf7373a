package storage

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"mygizmo/internal/models"
)

var testStorage *Storage

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(run(m))
}

func run(m *testing.M) int {
	if testing.Short() {
		return m.Run()
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("mygizmo_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		log.Printf("postgres container unavailable, storage tests skipped: %v", err)
		return m.Run()
	}
	defer pgContainer.Terminate(ctx)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %s", err)
	}

	testStorage, err = NewStorage(ctx, connStr)
	if err != nil {
		log.Fatalf("failed to open storage: %s", err)
	}
	defer testStorage.Close()

	return m.Run()
}

func requireStorage(t *testing.T) *Storage {
	t.Helper()
	if testStorage == nil {
		t.Skip("postgres not available")
	}
	return testStorage
}

func createTestAccount(t *testing.T, s *Storage, name string) *models.Account {
	t.Helper()
	customer := "cus_" + name
	acc := &models.Account{
		Username:         name,
		Email:            name + "@example.com",
		PasswordHash:     "hash",
		StripeCustomerID: &customer,
	}
	require.NoError(t, s.CreateAccount(context.Background(), acc))
	return acc
}

func storedFile(owner int64, name string) *models.StoredFile {
	return &models.StoredFile{
		ID:           uuid.New(),
		OriginalName: "original.zip",
		StoredName:   name,
		Tool:         models.ToolImageStudio,
		AccountID:    owner,
	}
}

func noop(context.Context) error { return nil }

func TestCreateAndGetAccount(t *testing.T) {
	s := requireStorage(t)
	ctx := context.Background()

	acc := createTestAccount(t, s, "alice")
	require.NotZero(t, acc.ID)
	require.Equal(t, models.SubscriptionInactive, acc.SubscriptionStatus)

	got, err := s.GetAccountByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)

	got, err = s.GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)

	_, err = s.GetAccountByID(ctx, acc.ID+1000)
	require.ErrorIs(t, err, ErrNotFound)

	dup := &models.Account{Username: "alice", Email: "other@example.com", PasswordHash: "x"}
	require.ErrorIs(t, s.CreateAccount(ctx, dup), ErrConflict)

	userTaken, emailTaken, err := s.AccountTaken(ctx, "alice", "nobody@example.com")
	require.NoError(t, err)
	require.True(t, userTaken)
	require.False(t, emailTaken)
}

func TestSetSubscriptionStatus(t *testing.T) {
	s := requireStorage(t)
	ctx := context.Background()
	acc := createTestAccount(t, s, "bob")

	got, err := s.SetSubscriptionStatus(ctx, *acc.StripeCustomerID, "past_due")
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)
	require.Equal(t, "past_due", got.SubscriptionStatus)

	_, err = s.SetSubscriptionStatus(ctx, "cus_unknown", models.SubscriptionActive)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoredFileOwnership(t *testing.T) {
	s := requireStorage(t)
	ctx := context.Background()
	owner := createTestAccount(t, s, "carol")
	other := createTestAccount(t, s, "dave")

	f := storedFile(owner.ID, "tok1_original.zip")
	require.NoError(t, s.CreateStoredFile(ctx, f, noop))
	require.False(t, f.CreatedAt.IsZero())

	got, err := s.GetStoredFile(ctx, f.StoredName, owner.ID)
	require.NoError(t, err)
	require.Equal(t, f.ID, got.ID)

	_, err = s.GetStoredFile(ctx, f.StoredName, other.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateStoredFileRollsBack(t *testing.T) {
	s := requireStorage(t)
	ctx := context.Background()
	owner := createTestAccount(t, s, "erin")

	f := storedFile(owner.ID, "tok2_original.zip")
	err := s.CreateStoredFile(ctx, f, func(context.Context) error { return errors.New("disk full") })
	require.Error(t, err)

	_, err = s.GetStoredFile(ctx, f.StoredName, owner.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.CreateStoredFile(ctx, f, noop))
	again := storedFile(owner.ID, f.StoredName)
	require.ErrorIs(t, s.CreateStoredFile(ctx, again, noop), ErrConflict)
}

func TestListAndDeleteAccount(t *testing.T) {
	s := requireStorage(t)
	ctx := context.Background()
	owner := createTestAccount(t, s, "frank")

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateStoredFile(ctx, storedFile(owner.ID, fmt.Sprintf("frank_%d", i)), noop))
	}

	files, err := s.ListStoredFiles(ctx, owner.ID, 2)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.False(t, files[0].CreatedAt.Before(files[1].CreatedAt))

	names, err := s.DeleteAccount(ctx, owner.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"frank_0", "frank_1", "frank_2"}, names)

	files, err = s.ListStoredFiles(ctx, owner.ID, 10)
	require.NoError(t, err)
	require.Empty(t, files)

	_, err = s.DeleteAccount(ctx, owner.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

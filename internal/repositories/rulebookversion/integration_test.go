package rulebookversion_test

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/sage/internal/repositories/rulebookversion"
	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	// Use environment variables or defaults for test DB
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "sage"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

func createVersion(t *testing.T, repo *rulebookversion.Repository, tenantID, name string) *models.RulebookVersion {
	t.Helper()
	version, err := repo.Create(context.Background(), tenantID, models.CreateVersionRequest{
		Name:          name,
		EffectiveFrom: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return version
}

func TestRulebookVersionRepository_Activate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := rulebookversion.NewRepository(db, getTestLogger())

	tenantID := uuid.New().String()
	ctx := context.Background()

	first := createVersion(t, repo, tenantID, "2026 rulebook")
	second := createVersion(t, repo, tenantID, "2026 rulebook rev 2")

	// no version is active until one is activated
	_, err := repo.GetActive(ctx, tenantID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	require.NoError(t, repo.Activate(ctx, tenantID, first.ID))

	active, err := repo.GetActive(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	// swapping to the second version must not trip the one-active-per-tenant
	// index, and the first version must end up inactive
	require.NoError(t, repo.Activate(ctx, tenantID, second.ID))

	active, err = repo.GetActive(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	previous, err := repo.Get(ctx, tenantID, first.ID)
	require.NoError(t, err)
	assert.False(t, previous.IsActive)

	// swapping back exercises the opposite update order
	require.NoError(t, repo.Activate(ctx, tenantID, first.ID))

	active, err = repo.GetActive(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	// re-activating the already active version is a no-op
	require.NoError(t, repo.Activate(ctx, tenantID, first.ID))

	versions, err := repo.List(ctx, tenantID)
	require.NoError(t, err)
	activeCount := 0
	for _, v := range versions {
		if v.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestRulebookVersionRepository_ActivateUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := rulebookversion.NewRepository(db, getTestLogger())

	tenantID := uuid.New().String()
	ctx := context.Background()

	existing := createVersion(t, repo, tenantID, "2026 rulebook")
	require.NoError(t, repo.Activate(ctx, tenantID, existing.ID))

	err := repo.Activate(ctx, tenantID, uuid.New().String())
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	// the rollback must leave the previously active version active
	active, err := repo.GetActive(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, active.ID)
}

package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/database"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
)

var columns = []string{"id", "url", "page_path", "product_path", "label", "created_at"}

func newRepo(t *testing.T, driver string) (*database.TrainingDataRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return database.NewTrainingDataRepository(sqlx.NewDb(mockDB, driver)), mock
}

func TestListExamples(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t, "postgres")
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM train_data ORDER BY id")).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, "https://shop.example/a", `C:\data\pages\a.html`, `C:\data\products\a1.html`, 1, created).
			AddRow(2, "https://shop.example/a", `C:\data\pages\a.html`, `C:\data\products\a2.html`, 0, created))

	rows, err := repo.ListExamples(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.ExampleRow{
		ID:          1,
		URL:         "https://shop.example/a",
		PagePath:    `C:\data\pages\a.html`,
		ProductPath: `C:\data\products\a1.html`,
		Label:       1,
		CreatedAt:   created,
	}, rows[0])
	assert.Equal(t, 0, rows[1].Label)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListExamples_Error(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t, "mysql")
	mock.ExpectQuery("FROM train_data").WillReturnError(errors.New("connection reset"))

	_, err := repo.ListExamples(context.Background())
	require.ErrorContains(t, err, "list training rows")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListExamplesSince_RebindsPerDriver(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for driver, placeholder := range map[string]string{"postgres": "$1", "mysql": "?"} {
		repo, mock := newRepo(t, driver)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE created_at >= " + placeholder + " ORDER BY id")).
			WithArgs(since).
			WillReturnRows(sqlmock.NewRows(columns))

		rows, err := repo.ListExamplesSince(context.Background(), since)
		require.NoError(t, err, driver)
		assert.Empty(t, rows)
		require.NoError(t, mock.ExpectationsWereMet(), driver)
	}
}

func TestCountByLabel(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t, "postgres")
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY label")).
		WillReturnRows(sqlmock.NewRows([]string{"label", "count"}).AddRow(0, 120).AddRow(1, 45))

	counts, err := repo.CountByLabel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.LabelCount{{Label: 0, Count: 120}, {Label: 1, Count: 45}}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	t.Parallel()

	cfg := config.DatabaseConfig{
		Driver: "mysql", Host: "db", Port: "3306", User: "pd", Password: "secret", Name: "products",
	}
	driver, dsn, err := database.DSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mysql", driver)
	assert.Equal(t, "pd:secret@tcp(db:3306)/products?parseTime=true", dsn)

	cfg.Driver, cfg.Port, cfg.SSLMode = "postgres", "5432", "disable"
	driver, dsn, err = database.DSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "host=db port=5432 user=pd password=secret dbname=products sslmode=disable", dsn)

	cfg.Driver = "sqlite"
	_, _, err = database.DSN(cfg)
	require.Error(t, err)
}

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"storefront-payments/config"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:            "db.internal",
		Port:            5432,
		User:            "shop",
		Password:        "secret",
		DBName:          "storefront",
		SSLMode:         "disable",
		MaxConns:        8,
		MinConns:        2,
		ConnMaxLifetime: 10 * time.Minute,
	}

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(8), poolCfg.MaxConns)
	assert.Equal(t, int32(2), poolCfg.MinConns)
	assert.Equal(t, 10*time.Minute, poolCfg.MaxConnLifetime)
	assert.Equal(t, "db.internal", poolCfg.ConnConfig.Host)
	assert.Equal(t, "storefront-payments", poolCfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "UTC", poolCfg.ConnConfig.RuntimeParams["timezone"])
}

func TestPoolConfig_MinAboveMaxIgnored(t *testing.T) {
	poolCfg, err := poolConfig(config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "u", DBName: "d", SSLMode: "disable",
		MaxConns: 2, MinConns: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), poolCfg.MaxConns)
	assert.Zero(t, poolCfg.MinConns)
}

func TestPoolConfig_InvalidSSLMode(t *testing.T) {
	_, err := poolConfig(config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "u", DBName: "d", SSLMode: "sometimes",
	})
	assert.ErrorContains(t, err, "parsing database config")
}

func TestTransactor_AppliesLockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '250ms'")).
		WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectRollback()

	tx, err := NewTransactor(mock, 250*time.Millisecond).Begin(context.Background())
	require.NoError(t, err)
	assert.NoError(t, tx.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_NoLockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tx, err := NewTransactor(mock, 0).Begin(context.Background())
	require.NoError(t, err)
	assert.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_LockTimeoutFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	tx, err := NewTransactor(mock, time.Second).Begin(context.Background())
	assert.Nil(t, tx)
	assert.ErrorContains(t, err, "setting lock timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many clients"))

	_, err = NewTransactor(mock, time.Second).Begin(context.Background())
	assert.ErrorContains(t, err, "beginning transaction")
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		migrated bool
		queryErr error
		wantErr  error
	}{
		{name: "migrated", migrated: true},
		{name: "schema missing", migrated: false, wantErr: errSchemaMissing},
		{name: "unreachable", queryErr: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			q := mock.ExpectQuery("SELECT to_regclass")
			if tt.queryErr != nil {
				q.WillReturnError(tt.queryErr)
			} else {
				q.WillReturnRows(pgxmock.NewRows([]string{"migrated"}).AddRow(tt.migrated))
			}

			hc := NewHealthCheck(mock)
			assert.Equal(t, "postgres", hc.Name())
			err = hc.Ping(context.Background())
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.queryErr != nil:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/AlibekovAA/taskforge/backend/internal/observability/metrics"
)

func TestSQLStateClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&pgconn.PgError{Code: "23505"}, "23"},
		{fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "08006"}), "08"},
		{errors.New("dial tcp: connection refused"), "driver"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqlStateClass(tt.err), tt.err.Error())
	}
}

func TestHandleQueryError_CountsByTableAndClass(t *testing.T) {
	counter := metrics.DBQueryErrors.WithLabelValues("tasks", "40")
	before := testutil.ToFloat64(counter)

	err := HandleQueryError(&pgconn.PgError{Code: "40001"}, nil, "get task", time.Now())
	assert.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	notFound := errors.New("missing")
	err = HandleQueryError(pgx.ErrNoRows, notFound, "get task", time.Now())
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

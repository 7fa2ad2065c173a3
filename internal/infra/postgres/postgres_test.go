package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestCategoryErr(t *testing.T) {
	err := categoryErr("GetCategory", "food", pgx.ErrNoRows)
	assert.ErrorIs(t, err, budget.ErrCategoryNotFound)

	err = categoryErr("GetCategory", "food", errors.New("conn reset"))
	assert.NotErrorIs(t, err, budget.ErrCategoryNotFound)
	assert.ErrorContains(t, err, "conn reset")
}

func TestMessageJSONColumns(t *testing.T) {
	b, err := jsonOrNil[*domain.ActionResult](nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = jsonOrNil([]domain.Insight(nil))
	require.NoError(t, err)
	assert.Nil(t, b)

	action := &domain.ActionResult{Type: domain.ActionTransfer, Success: true, Message: "ok"}
	b, err = jsonOrNil(action)
	require.NoError(t, err)

	var decoded *domain.ActionResult
	require.NoError(t, decodeJSON(b, &decoded))
	assert.Equal(t, action, decoded)

	var none *domain.ActionResult
	require.NoError(t, decodeJSON(nil, &none))
	assert.Nil(t, none)
}

package common

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"unique", &pq.Error{Code: "23505", Constraint: "affiliate_links_code_key"}, ErrAlreadyExists},
		{"serialization", &pq.Error{Code: "40001"}, ErrConflict},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrConflict},
		{"connection", &pq.Error{Code: "08006"}, ErrUnavailable},
		{"admin shutdown", &pq.Error{Code: "57P01"}, ErrUnavailable},
		{"check", &pq.Error{Code: "23514"}, ErrInvalidInput},
		{"bad conn", driver.ErrBadConn, ErrUnavailable},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ErrUnavailable},
		{"already classified", ErrConflict, ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, Classify(tc.err), tc.want)
		})
	}
}

func TestClassify_UnknownKeepsError(t *testing.T) {
	err := errors.New("syntax error")
	got := Classify(err)
	assert.Equal(t, err, got)
	assert.False(t, IsTransient(got))
	assert.Nil(t, Classify(nil))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("x: %w", ErrConflict)))
	assert.True(t, IsTransient(ErrUnavailable))
	assert.False(t, IsTransient(ErrNotFound))
}

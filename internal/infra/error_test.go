//go:build unit

package infra_test

import (
	"errors"
	"fmt"
	"testing"

	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/pkg/pgconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestWrapRepoErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind []infra.RepositoryErrorKind
		want infra.RepositoryErrorKind
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: infra.KindNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: pgconv.CodeUniqueViolation}, want: infra.KindDuplicateKey},
		{name: "foreign key violation", err: &pgconn.PgError{Code: pgconv.CodeForeignKeyViolation}, want: infra.KindForeignKeyViolated},
		{name: "check violation", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgconv.CodeCheckViolation}), want: infra.KindCheckViolated},
		{name: "anything else", err: errors.New("broken pipe"), want: infra.KindDBFailure},
		{name: "explicit kind wins", err: errors.New("gone"), kind: []infra.RepositoryErrorKind{infra.KindNotFound}, want: infra.KindNotFound},
		{name: "nil cause", err: nil, kind: []infra.RepositoryErrorKind{infra.KindNotFound}, want: infra.KindNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := infra.WrapRepoErr("load thing", tc.err, tc.kind...)
			assert.True(t, infra.IsKind(err, tc.want))
			assert.Contains(t, err.Error(), "load thing")
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}

	assert.False(t, infra.IsKind(errors.New("plain"), infra.KindNotFound))
}

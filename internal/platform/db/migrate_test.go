package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationURLRewritesPostgresScheme(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/db?sslmode=disable", migrationURL("postgres://u:p@localhost:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/db", migrationURL("postgresql://localhost/db"))
	assert.Equal(t, "pgx5://already", migrationURL("pgx5://already"))
}

func TestRollbackRejectsNonPositiveSteps(t *testing.T) {
	err := Rollback(nil, "postgres://localhost/db", 0)
	assert.Error(t, err)
}

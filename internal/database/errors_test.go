package database

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueConstraintError(t *testing.T) {
	require.False(t, IsUniqueConstraintError(nil))
	require.True(t, IsUniqueConstraintError(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	require.True(t, IsUniqueConstraintError(&mysql.MySQLError{Number: 1062}))
	require.True(t, IsUniqueConstraintError(errors.New("UNIQUE constraint failed: tenants.slug")))
	require.False(t, IsUniqueConstraintError(errors.New("connection refused")))
}

func TestIsAlreadyExistsError(t *testing.T) {
	require.False(t, IsAlreadyExistsError(nil))
	require.True(t, IsAlreadyExistsError(&pgconn.PgError{Code: "42P04"}))
	require.True(t, IsAlreadyExistsError(&pgconn.PgError{Code: "42P07"}))
	require.True(t, IsAlreadyExistsError(&mysql.MySQLError{Number: 1050}))
	require.True(t, IsAlreadyExistsError(errors.New(`table "projects" already exists`)))
	require.False(t, IsAlreadyExistsError(errors.New("syntax error")))
}

func TestIsPrivilegeError(t *testing.T) {
	require.False(t, IsPrivilegeError(nil))
	require.True(t, IsPrivilegeError(&pgconn.PgError{Code: "42501"}))
	require.True(t, IsPrivilegeError(&mysql.MySQLError{Number: 1044}))
	require.True(t, IsPrivilegeError(errors.New("pq: permission denied to create database")))
	require.False(t, IsPrivilegeError(errors.New("no such table")))
}

package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// IsUniqueConstraintError detects database uniqueness constraint violations across vendors.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}

// IsAlreadyExistsError reports whether err indicates the target object
// (database, table, index) already exists. Schema application treats such
// failures as success so re-provisioning stays idempotent.
func IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		switch pgErr.Code {
		case "42P04", // duplicate_database
			"42P07", // duplicate_table
			"42710", // duplicate_object
			"42P06": // duplicate_schema
			return true
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil {
		switch myErr.Number {
		case 1007, // database exists
			1050, // table exists
			1061: // duplicate key name
			return true
		}
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "already exists")
}

// IsPrivilegeError reports whether err looks like a missing-privilege failure,
// used to surface an actionable remediation message during provisioning.
func IsPrivilegeError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "42501" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && (myErr.Number == 1044 || myErr.Number == 1227) {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "privilege")
}

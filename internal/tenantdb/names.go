package tenantdb

import (
	"strings"

	apperrors "github.com/tidecms/tidecms/pkg/errors"
)

const (
	// TenantDatabasePrefix is the fixed naming convention for isolated
	// tenant databases. Externally provisioned databases follow the same
	// convention, so the derivation below must stay bit-exact.
	TenantDatabasePrefix = "cms_tenant_"

	// PlatformDatabase is the shared catalog database, matched
	// case-insensitively.
	PlatformDatabase = "cms_platform"
)

// reservedDatabases are administrative or vendor system databases that must
// never be targeted by tenant operations.
var reservedDatabases = map[string]struct{}{
	"postgres":           {},
	"template0":          {},
	"template1":          {},
	"mysql":              {},
	"information_schema": {},
	"performance_schema": {},
	"sys":                {},
	"master":             {},
	"admin":              {},
}

// DeriveDatabaseName maps a tenant slug onto its isolated database name:
// lowercase, every run of characters outside [a-z0-9] becomes an underscore,
// outer underscores trimmed, tenant prefix prepended. Pure and idempotent.
func DeriveDatabaseName(slug string) string {
	var b strings.Builder
	b.Grow(len(slug))

	for _, r := range strings.ToLower(slug) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}

	return TenantDatabasePrefix + strings.Trim(b.String(), "_")
}

// IsReservedDatabase reports whether name is on the system denylist.
func IsReservedDatabase(name string) bool {
	_, reserved := reservedDatabases[strings.ToLower(strings.TrimSpace(name))]
	return reserved
}

// IsTenantDatabase reports whether name follows the tenant naming convention.
func IsTenantDatabase(name string) bool {
	name = strings.TrimSpace(name)
	if IsReservedDatabase(name) {
		return false
	}
	return strings.HasPrefix(name, TenantDatabasePrefix) && len(name) > len(TenantDatabasePrefix)
}

// IsPlatformDatabase reports whether name is the shared platform catalog.
func IsPlatformDatabase(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), PlatformDatabase)
}

// IsValidTargetDatabase reports whether name may be targeted by any
// operation: either the platform catalog or a well-formed tenant database.
func IsValidTargetDatabase(name string) bool {
	if IsReservedDatabase(name) {
		return false
	}
	return IsPlatformDatabase(name) || IsTenantDatabase(name)
}

// AssertTenantDatabase validates name as an isolated tenant database and
// returns it unchanged. Callers run this before every administrative
// statement that names a database.
func AssertTenantDatabase(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !IsTenantDatabase(name) {
		return "", apperrors.NewValidation("invalid tenant database name: " + name)
	}
	return name, nil
}

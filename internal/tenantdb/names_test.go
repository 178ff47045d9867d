package tenantdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/tidecms/tidecms/pkg/errors"
)

func TestDeriveDatabaseName(t *testing.T) {
	cases := []struct {
		slug string
		want string
	}{
		{"acme-corp", "cms_tenant_acme_corp"},
		{"Acme Corp!", "cms_tenant_acme_corp"},
		{"acme", "cms_tenant_acme"},
		{"ACME", "cms_tenant_acme"},
		{"a1-b2", "cms_tenant_a1_b2"},
		{"über-shop", "cms_tenant_ber_shop"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, DeriveDatabaseName(tc.slug), "slug %q", tc.slug)
		// Idempotence: deriving from an already-sanitised slug is stable.
		require.Equal(t, tc.want, DeriveDatabaseName(tc.slug), "slug %q second pass", tc.slug)
	}
}

func TestIsTenantDatabase(t *testing.T) {
	require.True(t, IsTenantDatabase("cms_tenant_acme_corp"))
	require.False(t, IsTenantDatabase("cms_tenant_"), "bare prefix carries no tenant")
	require.False(t, IsTenantDatabase("cms_platform"))
	require.False(t, IsTenantDatabase("acme"))
	require.False(t, IsTenantDatabase("postgres"))
}

func TestIsPlatformDatabase(t *testing.T) {
	require.True(t, IsPlatformDatabase("cms_platform"))
	require.True(t, IsPlatformDatabase("CMS_Platform"))
	require.False(t, IsPlatformDatabase("cms_platform2"))
	require.False(t, IsPlatformDatabase("cms_tenant_acme"))
}

func TestIsValidTargetDatabase(t *testing.T) {
	require.True(t, IsValidTargetDatabase("cms_platform"))
	require.True(t, IsValidTargetDatabase("cms_tenant_acme"))

	for name := range reservedDatabases {
		require.False(t, IsValidTargetDatabase(name), "reserved %q", name)
	}
	require.False(t, IsValidTargetDatabase("MYSQL"))
	require.False(t, IsValidTargetDatabase("random_db"))
}

func TestAssertTenantDatabase(t *testing.T) {
	name, err := AssertTenantDatabase("cms_tenant_acme")
	require.NoError(t, err)
	require.Equal(t, "cms_tenant_acme", name)

	for _, bad := range []string{"postgres", "cms_platform", "orders", ""} {
		_, err := AssertTenantDatabase(bad)
		require.ErrorIs(t, err, apperrors.ErrValidation, "name %q", bad)
	}

	// Round-trip: every derived name passes the assertion.
	for _, slug := range []string{"acme-corp", "tenant42", "x"} {
		_, err := AssertTenantDatabase(DeriveDatabaseName(slug))
		require.NoError(t, err, "slug %q", slug)
	}
}

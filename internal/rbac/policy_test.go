package rbac

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

func TestAuthorizeMatrix(t *testing.T) {
	policy := NewPolicy(DefaultPolicyConfig(nil))

	cases := []struct {
		name     string
		role     Role
		method   string
		resource string
		want     error
	}{
		{"admin writes payments", RoleAdministrator, http.MethodPost, "payments", nil},
		{"admin deletes expenses", RoleAdministrator, http.MethodDelete, "expenses", nil},
		{"auditor reads payments", RoleAuditor, http.MethodGet, "payments", nil},
		{"auditor reads audit logs", RoleAuditor, http.MethodGet, "audit-logs", nil},
		{"auditor creates installment", RoleAuditor, http.MethodPost, "installments", nil},
		{"auditor cannot update installment", RoleAuditor, http.MethodPut, "installments", httpx.ErrForbidden},
		{"auditor cannot create payment", RoleAuditor, http.MethodPost, "payments", httpx.ErrForbidden},
		{"auditor cannot purge audit logs", RoleAuditor, http.MethodDelete, "audit-logs", httpx.ErrForbidden},
		{"unauthenticated read denied", RoleNone, http.MethodGet, "payments", httpx.ErrUnauthenticated},
		{"unauthenticated write denied", RoleNone, http.MethodPost, "payments", httpx.ErrUnauthenticated},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Authorize(tc.role, tc.method, tc.resource)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAdminSurfaceClosedToAuditors(t *testing.T) {
	policy := NewPolicy(DefaultPolicyConfig(nil))

	assert.ErrorIs(t, policy.Authorize(RoleAuditor, http.MethodGet, ResourceAdmin), httpx.ErrForbidden)
	assert.ErrorIs(t, policy.Authorize(RoleAuditor, http.MethodPost, ResourceAdmin), httpx.ErrForbidden)
	assert.NoError(t, policy.Authorize(RoleAdministrator, http.MethodGet, ResourceAdmin))
}

func TestEffectiveRoleSuperAdminUpgrade(t *testing.T) {
	policy := NewPolicy(DefaultPolicyConfig([]string{"Root@Meridian.edu"}))

	require.True(t, policy.IsSuperAdmin("root@meridian.edu"))
	assert.Equal(t, RoleAdministrator, policy.EffectiveRole(RoleAuditor, "root@meridian.edu"))
	assert.Equal(t, RoleAuditor, policy.EffectiveRole(RoleAuditor, "someone@meridian.edu"))
	assert.Equal(t, RoleNone, policy.EffectiveRole(RoleNone, ""))
}

func TestParseRoleUnknownIsNone(t *testing.T) {
	assert.Equal(t, RoleNone, ParseRole("superuser"))
	assert.Equal(t, RoleAuditor, ParseRole("auditor"))
}

package rbac

import (
	"net/http"
	"strings"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

// PolicyConfig describes the static authorization table. It is built once
// at startup and never mutated afterwards; no handler reads the
// environment directly.
type PolicyConfig struct {
	// AuditorWriteExceptions lists "resource:METHOD" pairs opened to the
	// auditor role in addition to administrators. The only exception
	// shipped by default is installment creation.
	AuditorWriteExceptions []string
	// SuperAdminEmails always authorize as administrator regardless of
	// the stored role.
	SuperAdminEmails []string
}

// Policy decides allow/deny for a (role, verb, resource) triple.
// It has no side effects beyond the decision.
type Policy struct {
	auditorWrites map[string]struct{}
	superAdmins   map[string]struct{}
}

// NewPolicy constructs an immutable Policy from config.
func NewPolicy(cfg PolicyConfig) *Policy {
	p := &Policy{
		auditorWrites: make(map[string]struct{}, len(cfg.AuditorWriteExceptions)),
		superAdmins:   make(map[string]struct{}, len(cfg.SuperAdminEmails)),
	}
	for _, exc := range cfg.AuditorWriteExceptions {
		exc = strings.TrimSpace(strings.ToLower(exc))
		if exc != "" {
			p.auditorWrites[exc] = struct{}{}
		}
	}
	for _, email := range cfg.SuperAdminEmails {
		email = strings.TrimSpace(strings.ToLower(email))
		if email != "" {
			p.superAdmins[email] = struct{}{}
		}
	}
	return p
}

// DefaultPolicyConfig returns the shipped authorization table.
// Installment creation is deliberately available to auditors as well.
func DefaultPolicyConfig(superAdminEmails []string) PolicyConfig {
	return PolicyConfig{
		AuditorWriteExceptions: []string{"installments:" + http.MethodPost},
		SuperAdminEmails:       superAdminEmails,
	}
}

// Authorize decides whether role may perform method on resource.
// Reads are open to any authenticated role; writes require
// administrator unless the resource/method pair is an auditor exception.
func (p *Policy) Authorize(role Role, method, resource string) error {
	if role == RoleNone {
		return httpx.ErrUnauthenticated
	}
	// The admin surface is closed to non-administrators even for reads.
	if resource == ResourceAdmin && role != RoleAdministrator {
		return httpx.ErrForbidden
	}
	if !IsWrite(method) {
		return nil
	}
	if role == RoleAdministrator {
		return nil
	}
	if role == RoleAuditor {
		key := strings.ToLower(resource + ":" + method)
		if _, ok := p.auditorWrites[key]; ok {
			return nil
		}
	}
	return httpx.ErrForbidden
}

// IsSuperAdmin reports whether the email is on the allowlist.
func (p *Policy) IsSuperAdmin(email string) bool {
	_, ok := p.superAdmins[strings.TrimSpace(strings.ToLower(email))]
	return ok
}

// EffectiveRole upgrades allowlisted callers to administrator.
func (p *Policy) EffectiveRole(role Role, email string) Role {
	if p.IsSuperAdmin(email) {
		return RoleAdministrator
	}
	return role
}

// Package policy is the access-control decision table for bank data.
//
// Decide is a pure function: it performs no I/O and reads no clock, so it is
// safe for unlimited parallel use. Owner resolution (including the transitive
// transaction → account → customer step) is the caller's job.
package policy

import (
	"digitalbank/internal/identity"
	id "digitalbank/pkg/domain"
)

// Action is what the principal wants to do with a resource.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

func (a Action) IsValid() bool { return a == ActionRead || a == ActionWrite }

// ResourceType names a protected entity.
type ResourceType string

const (
	ResourceCustomerProfile ResourceType = "customer_profile"
	ResourceAccount         ResourceType = "account"
	ResourceTransaction     ResourceType = "transaction"
	ResourceAuditLog        ResourceType = "audit_log"
)

// Effect is the outcome of a decision.
type Effect string

const (
	Allow Effect = "allow"
	Deny  Effect = "deny"
)

// Rule identifies which row of the table produced a decision.
type Rule string

const (
	RuleAnonymous      Rule = "anonymous"
	RuleAuditAdminOnly Rule = "audit_admin_only"
	RuleAdmin          Rule = "admin"
	RuleAnalystRead    Rule = "analyst_read_only"
	RuleOwner          Rule = "owner"
	RuleNotOwner       Rule = "not_owner"
	RuleUnknown        Rule = "unknown_resource"
)

// Decision is the result of Decide.
type Decision struct {
	Effect Effect
	Rule   Rule
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool { return d.Effect == Allow }

func allow(r Rule) Decision { return Decision{Effect: Allow, Rule: r} }
func deny(r Rule) Decision  { return Decision{Effect: Deny, Rule: r} }

// Decide maps (principal, action, resource type, owner) to Allow or Deny.
// owner is the customer owning the row; pass the nil ID when the resource has
// no owner or the caller is asking about a whole collection.
//
// Rule precedence (first match wins):
//  1. anonymous principals are denied everything
//  2. audit logs are admin-only for read and write
//  3. accounts and transactions: admin all, analyst read-only, customer owner-only
//  4. customer profiles: admin all, analyst read-only, customer owner-only
//  5. anything else is denied
func Decide(p identity.Principal, action Action, resource ResourceType, owner id.PrincipalID) Decision {
	if p.IsAnonymous() || !action.IsValid() {
		return deny(RuleAnonymous)
	}

	switch resource {
	case ResourceAuditLog:
		if p.Role == identity.RoleAdmin {
			return allow(RuleAuditAdminOnly)
		}
		return deny(RuleAuditAdminOnly)

	case ResourceAccount, ResourceTransaction, ResourceCustomerProfile:
		return decideOwned(p, action, owner)
	}

	return deny(RuleUnknown)
}

// decideOwned covers rules 3 and 4, which share one shape.
func decideOwned(p identity.Principal, action Action, owner id.PrincipalID) Decision {
	switch p.Role {
	case identity.RoleAdmin:
		return allow(RuleAdmin)
	case identity.RoleAnalyst:
		if action == ActionRead {
			return allow(RuleAnalystRead)
		}
		return deny(RuleAnalystRead)
	case identity.RoleCustomer:
		if !owner.IsNil() && owner == p.ID {
			return allow(RuleOwner)
		}
		return deny(RuleNotOwner)
	}
	return deny(RuleAnonymous)
}

// SeesAll reports whether p may read every row of resource regardless of owner.
// Callers use it to decide between an unfiltered and an owner-scoped query.
func SeesAll(p identity.Principal, resource ResourceType) bool {
	if p.IsAnonymous() {
		return false
	}
	switch p.Role {
	case identity.RoleAdmin:
		return true
	case identity.RoleAnalyst:
		return resource != ResourceAuditLog
	}
	return false
}

// AuditRequired reports whether an allowed action must be recorded by the
// audit recorder: every write to an account or the audit log, and every write
// made by an admin.
func AuditRequired(p identity.Principal, action Action, resource ResourceType) bool {
	if action != ActionWrite {
		return false
	}
	if resource == ResourceAccount || resource == ResourceAuditLog {
		return true
	}
	return p.Role == identity.RoleAdmin
}

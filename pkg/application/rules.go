package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plaenen/commandgateway/pkg/command"
)

// ErrRuleViolation is wrapped by errors returned from the built-in rules.
var ErrRuleViolation = errors.New("command rejected")

// Rule is a cross-cutting check applied to every command after its handler
// has been identified. A non-nil error rejects the command.
type Rule interface {
	Check(ctx context.Context, env *command.Envelope, client command.ClientMetadata) error
}

// RuleFunc is a function adapter for Rule.
type RuleFunc func(ctx context.Context, env *command.Envelope, client command.ClientMetadata) error

// Check implements Rule.
func (f RuleFunc) Check(ctx context.Context, env *command.Envelope, client command.ClientMetadata) error {
	return f(ctx, env, client)
}

// ReservedNames rejects commands whose name is reserved for internal use.
// A name is reserved if it is listed explicitly or starts with one of the
// reserved prefixes.
type ReservedNames struct {
	names    map[string]struct{}
	prefixes []string
}

// NewReservedNames creates a rule reserving the given command names.
func NewReservedNames(names ...string) *ReservedNames {
	r := &ReservedNames{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		r.names[name] = struct{}{}
	}
	return r
}

// WithPrefixes additionally reserves every command name starting with one of prefixes.
func (r *ReservedNames) WithPrefixes(prefixes ...string) *ReservedNames {
	r.prefixes = append(r.prefixes, prefixes...)
	return r
}

// Check implements Rule.
func (r *ReservedNames) Check(_ context.Context, env *command.Envelope, _ command.ClientMetadata) error {
	if _, reserved := r.names[env.Name]; reserved {
		return fmt.Errorf("%w: command name '%s' is reserved", ErrRuleViolation, env.Name)
	}
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(env.Name, prefix) {
			return fmt.Errorf("%w: command name '%s' is reserved", ErrRuleViolation, env.Name)
		}
	}
	return nil
}

// RoleResolver returns the roles held by the command's initiating client.
type RoleResolver func(ctx context.Context, client command.ClientMetadata) ([]string, error)

// RoleBasedAuthorizer requires the client to hold one of the roles configured
// for a command. Commands without configured roles are allowed.
type RoleBasedAuthorizer struct {
	// commandRoles maps "{context}.{aggregate}.{command}" to the accepted roles.
	commandRoles map[string][]string
	roles        RoleResolver
}

// DefaultRolesClaim is the user claim read when no RoleResolver is given.
const DefaultRolesClaim = "roles"

// NewRoleBasedAuthorizer creates a role-based authorization rule. A nil roles
// resolver reads the DefaultRolesClaim claim.
func NewRoleBasedAuthorizer(commandRoles map[string][]string, roles RoleResolver) *RoleBasedAuthorizer {
	if roles == nil {
		roles = RolesFromClaim(DefaultRolesClaim)
	}
	return &RoleBasedAuthorizer{
		commandRoles: commandRoles,
		roles:        roles,
	}
}

// Check implements Rule.
func (a *RoleBasedAuthorizer) Check(ctx context.Context, env *command.Envelope, client command.ClientMetadata) error {
	name := env.FullyQualifiedName()

	requiredRoles, exists := a.commandRoles[name]
	if !exists || len(requiredRoles) == 0 {
		return nil
	}

	held, err := a.roles(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to resolve roles: %w", err)
	}

	heldSet := make(map[string]bool, len(held))
	for _, role := range held {
		heldSet[role] = true
	}

	for _, role := range requiredRoles {
		if heldSet[role] {
			return nil
		}
	}

	return fmt.Errorf("%w: user '%s' lacks required role for command %s (required: %v)",
		ErrRuleViolation, client.User.ID, name, requiredRoles)
}

// RolesFromClaim resolves roles from a claim on the client user. The claim may
// hold a single string or a list of strings.
func RolesFromClaim(claim string) RoleResolver {
	return func(_ context.Context, client command.ClientMetadata) ([]string, error) {
		switch v := client.User.Claims[claim].(type) {
		case nil:
			return nil, nil
		case string:
			return []string{v}, nil
		case []string:
			return v, nil
		case []any:
			roles := make([]string, 0, len(v))
			for _, item := range v {
				role, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("claim '%s' contains non-string value %v", claim, item)
				}
				roles = append(roles, role)
			}
			return roles, nil
		default:
			return nil, fmt.Errorf("claim '%s' has unsupported type %T", claim, v)
		}
	}
}

// Package access decides per-room permissions. It is a pure decision
// function over the external ownership/collaborator registry: a failed
// registry query denies (fail closed) and is logged, never fatal.
package access

import (
	"context"
	"fmt"
	"log/slog"

	"preview-lab/contract"
	"preview-lab/domain"
)

type Authorizer struct {
	registry contract.AccessRegistry
	log      *slog.Logger
}

func NewAuthorizer(registry contract.AccessRegistry, log *slog.Logger) *Authorizer {
	return &Authorizer{registry: registry, log: log}
}

// CanAccessRoom reports whether the identity may view the preview room.
func (a *Authorizer) CanAccessRoom(ctx context.Context, identity domain.Identity,
	kind domain.ResourceKind, resourceID string) bool {
	if identity.Role.Elevated() {
		return true
	}
	if a.check(ctx, identity, kind, resourceID, a.registry.IsOwner) {
		return true
	}
	if a.check(ctx, identity, kind, resourceID, a.registry.IsCollaborator) {
		return true
	}
	return a.check(ctx, identity, kind, resourceID, a.registry.HasGrantedAccess)
}

// CanCollaborate reports whether the identity may mutate the preview.
// Viewers with a plain access grant cannot.
func (a *Authorizer) CanCollaborate(ctx context.Context, identity domain.Identity,
	kind domain.ResourceKind, resourceID string) bool {
	if identity.Role.Elevated() {
		return true
	}
	if a.check(ctx, identity, kind, resourceID, a.registry.IsOwner) {
		return true
	}
	return a.check(ctx, identity, kind, resourceID, a.registry.IsCollaborator)
}

type query func(ctx context.Context, kind domain.ResourceKind, resourceID, subjectID string) (bool, error)

func (a *Authorizer) check(ctx context.Context, identity domain.Identity,
	kind domain.ResourceKind, resourceID string, q query) bool {
	ok, err := q(ctx, kind, resourceID, identity.SubjectID)
	if err != nil {
		a.log.Warn(fmt.Sprintf("Access registry query failed for %s:%s, denying", kind, resourceID),
			"subject", identity.SubjectID, "error", err)
		return false
	}
	return ok
}

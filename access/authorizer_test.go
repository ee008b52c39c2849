package access

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"preview-lab/domain"
)

type fakeRegistry struct {
	owner        bool
	collaborator bool
	granted      bool
	err          error
}

func (f fakeRegistry) IsOwner(context.Context, domain.ResourceKind, string, string) (bool, error) {
	return f.owner, f.err
}

func (f fakeRegistry) IsCollaborator(context.Context, domain.ResourceKind, string, string) (bool, error) {
	return f.collaborator, f.err
}

func (f fakeRegistry) HasGrantedAccess(context.Context, domain.ResourceKind, string, string) (bool, error) {
	return f.granted, f.err
}

func TestAuthorizer_ElevatedRolesShortCircuit(t *testing.T) {
	req := require.New(t)
	// The registry would deny everything
	authorizer := NewAuthorizer(fakeRegistry{}, slog.Default())

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleModerator} {
		identity := domain.Identity{SubjectID: "mod-1", Role: role}
		req.True(authorizer.CanAccessRoom(context.Background(), identity, domain.KindWorkshop, "W1"))
		req.True(authorizer.CanCollaborate(context.Background(), identity, domain.KindWorkshop, "W1"))
	}
}

func TestAuthorizer_OwnerCanCollaborate(t *testing.T) {
	req := require.New(t)
	authorizer := NewAuthorizer(fakeRegistry{owner: true}, slog.Default())
	identity := domain.Identity{SubjectID: "user-1", Role: domain.RoleUser}

	req.True(authorizer.CanAccessRoom(context.Background(), identity, domain.KindWorkshop, "W1"))
	req.True(authorizer.CanCollaborate(context.Background(), identity, domain.KindWorkshop, "W1"))
}

func TestAuthorizer_GrantedAccessIsReadOnly(t *testing.T) {
	req := require.New(t)
	authorizer := NewAuthorizer(fakeRegistry{granted: true}, slog.Default())
	identity := domain.Identity{SubjectID: "user-1", Role: domain.RoleUser}

	// A plain access grant may view the room but never mutate it
	req.True(authorizer.CanAccessRoom(context.Background(), identity, domain.KindWorkshop, "W1"))
	req.False(authorizer.CanCollaborate(context.Background(), identity, domain.KindWorkshop, "W1"))
}

func TestAuthorizer_RegistryFailureDenies(t *testing.T) {
	req := require.New(t)
	authorizer := NewAuthorizer(fakeRegistry{
		owner: true,
		err:   fmt.Errorf("registry unreachable"),
	}, slog.Default())
	identity := domain.Identity{SubjectID: "user-1", Role: domain.RoleUser}

	// Fail closed: an unreachable registry denies even a would-be owner
	req.False(authorizer.CanAccessRoom(context.Background(), identity, domain.KindWorkshop, "W1"))
	req.False(authorizer.CanCollaborate(context.Background(), identity, domain.KindWorkshop, "W1"))
}

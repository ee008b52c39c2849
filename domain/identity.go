// Package domain contains core concepts of the collaborative preview system.
// This file defines identities and resource addressing.
// No runtime, network, or UI logic should be added here.
package domain

import "fmt"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Elevated roles bypass the ownership/collaborator registry entirely.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleModerator
}

type ResourceKind string

const (
	KindWorkshop      ResourceKind = "workshop"
	KindQuestionnaire ResourceKind = "questionnaire"
)

func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case KindWorkshop, KindQuestionnaire:
		return ResourceKind(s), nil
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Identity is the claim produced once per connection by the authenticator.
// It is immutable for the lifetime of the connection.
type Identity struct {
	SubjectID    string
	Email        string
	Role         Role
	ConnectionID string
}

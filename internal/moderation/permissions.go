package moderation

import (
	"slices"
	"strings"
)

// Actor is the user issuing a command
type Actor struct {
	UserID   int64
	Username string
	RoleIDs  []string
}

// RoleDirectory resolves role positions in the community. Higher positions
// rank above lower ones.
type RoleDirectory interface {
	Position(roleID string) (int, bool)
}

// StaticRoles is a RoleDirectory backed by configuration
type StaticRoles map[string]int

// Position implements RoleDirectory
func (s StaticRoles) Position(roleID string) (int, bool) {
	p, ok := s[roleID]
	return p, ok
}

// Policy decides who may moderate
type Policy struct {
	moderatorRoles []string
	hierarchical   bool
	directory      RoleDirectory
}

// NewPolicy builds a policy from the configured moderator roles. With
// hierarchical set, any actor whose highest role is positioned at or above
// the lowest moderator role also qualifies. directory may be nil when
// hierarchical is false.
func NewPolicy(moderatorRoles []string, hierarchical bool, directory RoleDirectory) *Policy {
	roles := make([]string, 0, len(moderatorRoles))
	for _, r := range moderatorRoles {
		if r = strings.TrimSpace(r); r != "" && !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	if directory == nil {
		directory = StaticRoles{}
	}
	return &Policy{moderatorRoles: roles, hierarchical: hierarchical, directory: directory}
}

// IsModerator reports whether actor may approve, rename and manage producers
func (p *Policy) IsModerator(actor Actor) bool {
	if len(actor.RoleIDs) == 0 {
		return false
	}
	for _, r := range actor.RoleIDs {
		if slices.Contains(p.moderatorRoles, r) {
			return true
		}
	}
	if !p.hierarchical {
		return false
	}

	minModerator, found := 0, false
	for _, r := range p.moderatorRoles {
		if pos, ok := p.directory.Position(r); ok && (!found || pos < minModerator) {
			minModerator, found = pos, true
		}
	}
	if !found {
		return false
	}

	highest, known := 0, false
	for _, r := range actor.RoleIDs {
		if pos, ok := p.directory.Position(r); ok && (!known || pos > highest) {
			highest, known = pos, true
		}
	}
	return known && highest >= minModerator
}

// ModeratorRoles returns the configured moderator role ids
func (p *Policy) ModeratorRoles() []string { return slices.Clone(p.moderatorRoles) }

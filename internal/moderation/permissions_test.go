package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyIsModerator(t *testing.T) {
	t.Parallel()

	roles := StaticRoles{"admin": 30, "mod": 20, "trusted": 10, "member": 1}

	tests := []struct {
		name         string
		modRoles     []string
		hierarchical bool
		actor        Actor
		want         bool
	}{
		{"no roles", []string{"mod"}, false, Actor{UserID: 1}, false},
		{"direct role", []string{"mod"}, false, Actor{RoleIDs: []string{"member", "mod"}}, true},
		{"higher role without hierarchy", []string{"mod"}, false, Actor{RoleIDs: []string{"admin"}}, false},
		{"higher role with hierarchy", []string{"mod"}, true, Actor{RoleIDs: []string{"admin"}}, true},
		{"lower role with hierarchy", []string{"mod"}, true, Actor{RoleIDs: []string{"trusted", "member"}}, false},
		{"lowest of several moderator roles counts", []string{"admin", "trusted"}, true, Actor{RoleIDs: []string{"mod"}}, true},
		{"unknown actor roles", []string{"mod"}, true, Actor{RoleIDs: []string{"ghost"}}, false},
		{"unknown moderator roles", []string{"ghost"}, true, Actor{RoleIDs: []string{"admin"}}, false},
		{"no moderator roles configured", nil, true, Actor{RoleIDs: []string{"admin"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewPolicy(tt.modRoles, tt.hierarchical, roles)
			assert.Equal(t, tt.want, p.IsModerator(tt.actor))
		})
	}
}

func TestNewPolicyCleansRoles(t *testing.T) {
	t.Parallel()

	p := NewPolicy([]string{" 42 ", "", "42", "7"}, false, nil)
	assert.Equal(t, []string{"42", "7"}, p.ModeratorRoles())
	assert.True(t, p.IsModerator(Actor{RoleIDs: []string{"7"}}))
}

package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Version(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{name: "nil context", ctx: nil, want: UnknownValue},
		{name: "empty version", ctx: NewContext("", "2024-01-01"), want: UnknownValue},
		{name: "valid version", ctx: NewContext("1.0.0", "2024-01-01"), want: "1.0.0"},
		{name: "version with pre-release tag", ctx: NewContext("1.0.0-beta.1", ""), want: "1.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.ctx.GetVersion())
		})
	}
}

func TestContext_BuildDate(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Equal(t, UnknownValue, nilCtx.GetBuildDate())
	assert.Equal(t, UnknownValue, NewContext("1.0.0", "").GetBuildDate())
	assert.Equal(t, "2024-01-01", NewContext("1.0.0", "2024-01-01").GetBuildDate())
}

func TestContext_Release(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "strainbot@1.2.3", NewContext("1.2.3", "").Release())
	assert.Equal(t, "strainbot@unknown", (*Context)(nil).Release())
	assert.Contains(t, NewContext("1.2.3", "2024-01-01").String(), "strainbot 1.2.3 (built 2024-01-01)")
}

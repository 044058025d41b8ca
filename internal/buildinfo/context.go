// Package buildinfo holds metadata injected at build time
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// UnknownValue is reported for metadata that was not injected
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
// It is filled from ldflags in main and passed down explicitly.
type Context struct {
	Version   string
	BuildDate string
	Commit    string
}

// NewContext creates a Context. The commit is taken from the Go build info
// when the binary was built from a VCS checkout.
func NewContext(version, buildDate string) *Context {
	c := &Context{Version: version, BuildDate: buildDate}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				c.Commit = s.Value[:7]
			}
		}
	}
	return c
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// GetVersion returns the version or UnknownValue
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Version)
}

// GetBuildDate returns the build date or UnknownValue
func (c *Context) GetBuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.BuildDate)
}

// Release is the release name reported to error tracking
func (c *Context) Release() string {
	return "strainbot@" + c.GetVersion()
}

func (c *Context) String() string {
	s := fmt.Sprintf("strainbot %s (built %s)", c.GetVersion(), c.GetBuildDate())
	if c != nil && c.Commit != "" {
		s += " commit " + c.Commit
	}
	return s
}

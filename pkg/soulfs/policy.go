package soulfs

import (
	"fmt"
	"path"

	"github.com/gobwas/glob"
)

// WritePolicy decides which soul-relative paths may be written.
// Denied patterns win over allowed ones; an empty allow list permits
// everything not denied.
type WritePolicy struct {
	allowed []glob.Glob
	denied  []glob.Glob
}

// DeniedByDefault lists files the core must never rewrite: secrets and the
// user-authored identity documents.
var DeniedByDefault = []string{
	".env",
	"**/.env",
	"SEED.md",
	"SOUL.md",
	".git/**",
}

// NewWritePolicy compiles allow and deny patterns. Patterns use '/' as
// separator, so '*' stays within one path segment and '**' crosses them.
func NewWritePolicy(allowed, denied []string) (*WritePolicy, error) {
	p := &WritePolicy{}
	for _, pattern := range allowed {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid allowed pattern '%s': %w", pattern, err)
		}
		p.allowed = append(p.allowed, g)
	}
	for _, pattern := range denied {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid denied pattern '%s': %w", pattern, err)
		}
		p.denied = append(p.denied, g)
	}
	return p, nil
}

// DefaultWritePolicy allows everything except DeniedByDefault.
func DefaultWritePolicy() *WritePolicy {
	p, err := NewWritePolicy(nil, DeniedByDefault)
	if err != nil {
		panic(err)
	}
	return p
}

// IsAllowed reports whether rel may be written.
func (p *WritePolicy) IsAllowed(rel string) bool {
	rel = path.Clean(rel)
	for _, g := range p.denied {
		if g.Match(rel) {
			return false
		}
	}
	if len(p.allowed) == 0 {
		return true
	}
	for _, g := range p.allowed {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

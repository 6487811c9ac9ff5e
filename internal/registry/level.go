package registry

import (
	"fmt"

	"github.com/roach88/tenantrpc/internal/session"
)

// Level is an operation's authorization level. Levels are strictly ordered:
// a tenant session satisfies user and public operations, a user session
// satisfies public ones.
type Level int

const (
	// LevelPublic operations run without a session.
	LevelPublic Level = iota
	// LevelUser operations need a resolved user.
	LevelUser
	// LevelTenant operations need a resolved user and tenant.
	LevelTenant
)

func (l Level) String() string {
	switch l {
	case LevelPublic:
		return "public"
	case LevelUser:
		return "user"
	case LevelTenant:
		return "tenant"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Valid reports whether l is one of the declared levels.
func (l Level) Valid() bool {
	return l >= LevelPublic && l <= LevelTenant
}

// RequiresSession reports whether the dispatcher must resolve a session.
func (l Level) RequiresSession() bool {
	return l > LevelPublic
}

// Allows reports whether a caller holding level have may invoke an
// operation declared at l.
func (l Level) Allows(have Level) bool {
	return have >= l
}

// ParseLevel parses "public", "user" or "tenant".
func ParseLevel(s string) (Level, error) {
	switch s {
	case "public":
		return LevelPublic, nil
	case "user":
		return LevelUser, nil
	case "tenant":
		return LevelTenant, nil
	}
	return 0, fmt.Errorf("unknown authorization level %q (want public, user or tenant)", s)
}

// LevelOf returns the level a resolved session grants.
func LevelOf(sess session.Context) Level {
	if sess.HasTenant() {
		return LevelTenant
	}
	return LevelUser
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid level %d", int(l))
	}
	return []byte(l.String()), nil
}

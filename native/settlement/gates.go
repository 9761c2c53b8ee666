package settlement

import "strings"

// Gates is the capability set an engine is constructed with. The ownership
// gate is always present; the allow and lock gates are optional.
type Gates uint8

const (
	GateOwnership Gates = 1 << iota
	GateAllow
	GateLock
)

// Has reports whether every gate in other is part of g.
func (g Gates) Has(other Gates) bool { return g&other == other }

func (g Gates) String() string {
	var parts []string
	if g.Has(GateOwnership) {
		parts = append(parts, "ownership")
	}
	if g.Has(GateAllow) {
		parts = append(parts, "allow")
	}
	if g.Has(GateLock) {
		parts = append(parts, "lock")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// ParseGates converts configuration names into a capability set. The
// ownership gate is implied.
func ParseGates(names []string) (Gates, error) {
	gates := GateOwnership
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "", "ownership":
		case "allow":
			gates |= GateAllow
		case "lock":
			gates |= GateLock
		default:
			return 0, &UnknownGateError{Name: name}
		}
	}
	return gates, nil
}

// UnknownGateError reports an unrecognised gate name.
type UnknownGateError struct {
	Name string
}

func (e *UnknownGateError) Error() string {
	return "settlement: unknown gate " + e.Name
}

package relay

import "strings"

// Relay represents one controllable on/off device owned by a user.
type Relay struct {
	ID     int    `json:"id"`
	Device string `json:"device"`
	State  bool   `json:"state"`
}

// Collection maps relay ids to relays for a single owner.
type Collection map[int]Relay

// Clone returns a copy safe to hand out across goroutines.
func (c Collection) Clone() Collection {
	if c == nil {
		return Collection{}
	}
	out := make(Collection, len(c))
	for id, r := range c {
		out[id] = r
	}
	return out
}

// NextID derives the identifier for the next relay from a snapshot of the
// collection: one past the highest existing id, or 1 for an empty
// collection. Recomputed from the current snapshot on every workflow
// activation; two sessions activating concurrently can derive the same id
// and the later create wins (known limitation, see DESIGN.md).
func NextID(c Collection) int {
	max := 0
	for id := range c {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// NormalizeDeviceName trims and upper-cases a display name. Stored names
// are always upper-cased.
func NormalizeDeviceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyDeviceName
	}
	return strings.ToUpper(name), nil
}

// SuggestedDevices returns the static autocomplete names offered by the
// registration screen.
func SuggestedDevices() []string {
	return []string{
		"LIVING ROOM LIGHT",
		"LIVING ROOM FAN",
		"BEDROOM LIGHT",
		"BEDROOM FAN",
		"KITCHEN APPLIANCE",
		"BATHROOM HEATER",
	}
}

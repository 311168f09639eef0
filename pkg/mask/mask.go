// Package mask holds the bidirectional mapping between textual inotify
// event names (e.g. "IN_CREATE") and kernel mask bits.
package mask

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// Mask is a bitset of event kinds, a union of catalog entries.
type Mask uint32

// catalogOrder and byName hold the twelve catalog entries; byBit maps the
// eleven entries other than IN_ALL_EVENTS back to their names. Order
// matters for Format: entries are emitted in catalogOrder, not map order.
var (
	catalogOrder = []string{
		"IN_ACCESS",
		"IN_CLOSE_WRITE",
		"IN_CLOSE_NOWRITE",
		"IN_CREATE",
		"IN_DELETE",
		"IN_DELETE_SELF",
		"IN_MODIFY",
		"IN_MOVE_SELF",
		"IN_MOVED_FROM",
		"IN_MOVED_TO",
		"IN_OPEN",
		"IN_ALL_EVENTS",
	}

	byName = map[string]Mask{
		"IN_ACCESS":        Mask(unix.IN_ACCESS),
		"IN_CLOSE_WRITE":   Mask(unix.IN_CLOSE_WRITE),
		"IN_CLOSE_NOWRITE": Mask(unix.IN_CLOSE_NOWRITE),
		"IN_CREATE":        Mask(unix.IN_CREATE),
		"IN_DELETE":        Mask(unix.IN_DELETE),
		"IN_DELETE_SELF":   Mask(unix.IN_DELETE_SELF),
		"IN_MODIFY":        Mask(unix.IN_MODIFY),
		"IN_MOVE_SELF":     Mask(unix.IN_MOVE_SELF),
		"IN_MOVED_FROM":    Mask(unix.IN_MOVED_FROM),
		"IN_MOVED_TO":      Mask(unix.IN_MOVED_TO),
		"IN_OPEN":          Mask(unix.IN_OPEN),
		"IN_ALL_EVENTS":    Mask(unix.IN_ALL_EVENTS),
	}

	byBit = func() map[Mask]string {
		m := make(map[Mask]string, len(byName))
		for name, bit := range byName {
			// IN_ALL_EVENTS aliases every other bit; keep the narrower
			// names as canonical so Format never collapses a concrete
			// mask down to "IN_ALL_EVENTS".
			if name == "IN_ALL_EVENTS" {
				continue
			}
			m[bit] = name
		}
		return m
	}()
)

// ParseName looks up a catalog entry by its textual name.
func ParseName(name string) (Mask, bool) {
	m, ok := byName[name]
	return m, ok
}

// Names returns the catalog's twelve entry names in canonical order.
func Names() []string {
	names := make([]string, len(catalogOrder))
	copy(names, catalogOrder)
	return names
}

// Format renders a mask set as a comma-separated list of catalog names,
// in canonical catalog order. Used for the round-trip table
// representation (watch.Entry.String).
func (m Mask) Format() string {
	var parts []string
	for _, name := range catalogOrder {
		if name == "IN_ALL_EVENTS" {
			continue
		}
		bit := byName[name]
		if m&bit != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ",")
}

// Has reports whether m contains every bit in other.
func (m Mask) Has(other Mask) bool {
	return m&other == other
}

// Display renders every recognized bit set in m — including bits outside
// the twelve-name catalog, such as IN_ISDIR — pipe-joined, the form the
// command template's $% placeholder substitutes. Unrecognized residual
// bits are rendered as a trailing hex literal.
func Display(raw uint32) string {
	var names []string
	for bit, name := range byBit {
		if raw&uint32(bit) != 0 {
			names = append(names, name)
		}
	}
	if raw&unix.IN_ISDIR != 0 {
		names = append(names, "IN_ISDIR")
	}
	if raw&unix.IN_IGNORED != 0 {
		names = append(names, "IN_IGNORED")
	}
	sort.Strings(names)

	matched := uint32(0)
	for _, name := range names {
		if name == "IN_ISDIR" {
			matched |= unix.IN_ISDIR
		} else if name == "IN_IGNORED" {
			matched |= unix.IN_IGNORED
		} else {
			matched |= uint32(byName[name])
		}
	}
	if residual := raw &^ matched; residual != 0 {
		names = append(names, fmt.Sprintf("0x%x", residual))
	}

	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, " | ")
}

// IsDir reports whether the raw kernel mask carries the is-directory bit.
func IsDir(raw uint32) bool {
	return raw&unix.IN_ISDIR != 0
}

// IsIgnored reports whether the raw kernel mask is the watch-removed
// ("ignored") indicator.
func IsIgnored(raw uint32) bool {
	return raw == unix.IN_IGNORED
}

// CreateBit is the catalog's "create" bit, checked by the engine when
// deciding whether a recursive entry should expand into its children.
const CreateBit = Mask(unix.IN_CREATE)

// Package watch holds the watch entry data model, the table-line parser,
// and the command template that executes on each kernel event.
package watch

import (
	"fmt"

	"github.com/dpvpro/rsincron/pkg/mask"
)

// Attributes carries the per-entry flags the line parser recognizes.
type Attributes struct {
	// Starting is true iff the entry came directly from a table line,
	// rather than from recursive directory expansion.
	Starting bool
	// Recursive requests that every existing and future subdirectory of
	// Path be watched with the same Masks and Command.
	Recursive bool
}

// Entry is the atomic unit a user declares in the watch table: a path, the
// event kinds to watch for on it, behavioral attributes, and the command
// to run on each matching event.
type Entry struct {
	Path       string
	Masks      mask.Mask
	Attributes Attributes
	Command    Command
}

// String renders the entry as a table line that re-parses to an
// equivalent entry (modulo whitespace), per the round-trip property in
// spec.md §8.
func (e Entry) String() string {
	opts := e.Masks.Format()
	// Format never emits IN_ALL_EVENTS and the catalog has no name for
	// every bit it covers, so a full mask is written under its own name.
	if all, _ := mask.ParseName("IN_ALL_EVENTS"); e.Masks.Has(all) {
		opts = "IN_ALL_EVENTS"
	}
	if e.Attributes.Recursive {
		if opts != "" {
			opts += ","
		}
		opts += "recursive=true"
	}
	return fmt.Sprintf("%s %s %s", e.Path, opts, e.Command.String())
}

// Derive builds the entry recursive expansion registers for a child
// directory: same masks and command, attributes reset to
// {starting: false, recursive: true}, path set to childPath as given (the
// caller joins the parent path and the child's name).
func (e Entry) Derive(childPath string) Entry {
	return Entry{
		Path:    childPath,
		Masks:   e.Masks,
		Command: e.Command,
		Attributes: Attributes{
			Starting:  false,
			Recursive: true,
		},
	}
}

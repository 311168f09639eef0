// Package table reads a watch table file and dispatches each non-comment
// line to the parser, yielding a sequence of watch entries.
package table

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dpvpro/rsincron/pkg/watch"
)

// Load reads the entire file at path as UTF-8 and parses one entry per
// line. Comment and blank lines are silently omitted from both return
// values. Other per-line parse errors are collected in errs for the
// caller to log — a bad line never aborts the load. A failure to read
// the file itself is returned as err and is fatal for this reload:
// spec.md §4.5 requires the caller to leave the current registry intact
// rather than wipe it.
func Load(path string) (entries []watch.Entry, errs []*watch.ParseError, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading table %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		entry, perr := watch.ParseLine(line)
		if perr != nil {
			pe := perr.(*watch.ParseError)
			if pe.Kind == watch.IsComment {
				continue
			}
			errs = append(errs, pe)
			continue
		}
		entries = append(entries, entry)
	}
	if serr := scanner.Err(); serr != nil {
		return nil, nil, fmt.Errorf("reading table %s: %w", path, serr)
	}

	return entries, errs, nil
}

package watch

import (
	"strconv"
	"strings"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/dpvpro/rsincron/pkg/mask"
)

// ParseLine parses one table line into an Entry. Grammar, in order:
// a whitespace-free path token, a single comma-separated options token
// (mask names and/or name=value attributes, at least one element), and
// the remainder of the line as a shell-word-split command.
//
// A line whose first non-whitespace character is '#' yields a
// *ParseError with Kind IsComment. Blank lines are also reported as
// IsComment so callers can use one check to skip both.
func ParseLine(line string) (Entry, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Entry{}, &ParseError{Kind: IsComment, Line: line}
	}

	pathTok, rest, ok := cutField(trimmed)
	if !ok || pathTok == "" {
		return Entry{}, &ParseError{Kind: MissingField, Line: line}
	}

	optsTok, rest, ok := cutField(rest)
	if !ok || optsTok == "" {
		return Entry{}, &ParseError{Kind: MissingField, Line: line}
	}

	command := strings.TrimSpace(rest)
	if command == "" {
		return Entry{}, &ParseError{Kind: MissingField, Line: line}
	}

	masks, attrs, err := parseOptions(optsTok)
	if err != nil {
		pe := err.(*ParseError)
		pe.Line = line
		return Entry{}, pe
	}

	cmd, err := parseCommand(command)
	if err != nil {
		return Entry{}, &ParseError{Kind: CorruptInput, Line: line, Err: err}
	}

	return Entry{
		Path:       pathTok,
		Masks:      masks,
		Attributes: attrs,
		Command:    cmd,
	}, nil
}

// cutField splits off the first whitespace-delimited token from s,
// returning it, the remainder (with leading whitespace trimmed), and
// whether a token was found at all.
func cutField(s string) (field, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", "", false
	}
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, "", true
	}
	return s[:i], strings.TrimLeft(s[i:], " \t"), true
}

// parseOptions parses the comma-separated options token into a mask set
// and attributes. Ordering is irrelevant; duplicate masks union,
// duplicate attributes last-wins.
func parseOptions(tok string) (mask.Mask, Attributes, error) {
	var masks mask.Mask
	attrs := Attributes{Starting: true}

	for _, elem := range strings.Split(tok, ",") {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			continue
		}

		if name, value, isAttr := strings.Cut(elem, "="); isAttr {
			switch name {
			case "recursive":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return 0, Attributes{}, &ParseError{Kind: InvalidAttribute, Err: err}
				}
				attrs.Recursive = b
			default:
				return 0, Attributes{}, &ParseError{Kind: InvalidAttribute}
			}
			continue
		}

		m, ok := mask.ParseName(elem)
		if !ok {
			return 0, Attributes{}, &ParseError{Kind: InvalidMask}
		}
		masks |= m
	}

	if masks == 0 {
		return 0, Attributes{}, &ParseError{Kind: InvalidMask}
	}

	return masks, attrs, nil
}

// parseCommand shell-word-splits s; the first word is the program, the
// rest form argv.
func parseCommand(s string) (Command, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return Command{}, err
	}
	if len(words) == 0 {
		return Command{}, errEmptyCommand
	}
	return Command{Program: words[0], Argv: words[1:]}, nil
}

var errEmptyCommand = emptyCommandError{}

type emptyCommandError struct{}

func (emptyCommandError) Error() string { return "empty command after shell-word splitting" }

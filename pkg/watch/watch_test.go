package watch

import (
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/dpvpro/rsincron/pkg/mask"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		expectError bool
		errKind     ErrorKind
		want        Entry
	}{
		{
			name: "simple entry",
			line: "/var/tmp\tIN_CREATE,recursive=true,IN_DELETE\techo $@ $# &> /dev/null",
			want: Entry{
				Path:       "/var/tmp",
				Masks:      mask.Mask(unix.IN_CREATE) | mask.Mask(unix.IN_DELETE),
				Attributes: Attributes{Starting: true, Recursive: true},
				Command:    Command{Program: "echo", Argv: []string{"$@", "$#", "&>", "/dev/null"}},
			},
		},
		{
			name:        "empty line",
			line:        "",
			expectError: true,
			errKind:     IsComment,
		},
		{
			name:        "comment line",
			line:        "  # a comment",
			expectError: true,
			errKind:     IsComment,
		},
		{
			name:        "missing command",
			line:        "/tmp IN_CREATE",
			expectError: true,
			errKind:     MissingField,
		},
		{
			name:        "invalid mask",
			line:        "/tmp IN_BOGUS echo test",
			expectError: true,
			errKind:     InvalidMask,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ParseLine(tt.line)
			if tt.expectError {
				pe, ok := err.(*ParseError)
				if !ok {
					t.Fatalf("expected *ParseError, got %T (%v)", err, err)
				}
				if pe.Kind != tt.errKind {
					t.Errorf("error kind = %v, want %v", pe.Kind, tt.errKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if entry.Path != tt.want.Path {
				t.Errorf("path = %q, want %q", entry.Path, tt.want.Path)
			}
			if entry.Masks != tt.want.Masks {
				t.Errorf("masks = %v, want %v", entry.Masks, tt.want.Masks)
			}
			if entry.Attributes != tt.want.Attributes {
				t.Errorf("attributes = %+v, want %+v", entry.Attributes, tt.want.Attributes)
			}
			if entry.Command.Program != tt.want.Command.Program {
				t.Errorf("command program = %q, want %q", entry.Command.Program, tt.want.Command.Program)
			}
		})
	}
}

func TestEntryStringRoundTrip(t *testing.T) {
	entry, err := ParseLine("/var/tmp IN_CREATE,recursive=true echo hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, err := ParseLine(entry.String())
	if err != nil {
		t.Fatalf("re-parsing String() output failed: %v", err)
	}
	if again.Path != entry.Path || again.Masks != entry.Masks || again.Attributes != entry.Attributes {
		t.Errorf("round-trip mismatch: got %+v, want %+v", again, entry)
	}
}

func TestCommandRender(t *testing.T) {
	cmd := Command{Program: "echo", Argv: []string{"$@", "$#", "$%", "$&", "literal$$dollar"}}
	rawMask := uint32(unix.IN_CREATE) | uint32(unix.IN_ISDIR)

	got := cmd.Render("/watch/path", "file.txt", rawMask)
	if len(got) != 5 {
		t.Fatalf("Render() returned %d args, want 5", len(got))
	}
	if got[0] != "/watch/path" {
		t.Errorf("$@ = %q, want %q", got[0], "/watch/path")
	}
	if got[1] != "file.txt" {
		t.Errorf("$# = %q, want %q", got[1], "file.txt")
	}
	if got[2] != `"IN_CREATE | IN_ISDIR"` {
		t.Errorf("$%% = %q, want %q", got[2], `"IN_CREATE | IN_ISDIR"`)
	}
	if got[3] == "" {
		t.Errorf("$& should render a non-empty numeric mask, got %q", got[3])
	}
	if got[4] != "literal$dollar" {
		t.Errorf("$$ = %q, want %q", got[4], "literal$dollar")
	}
}

func TestCommandString(t *testing.T) {
	cmd := Command{Program: "echo", Argv: []string{"hello world", "plain"}}
	s := cmd.String()
	if !strings.Contains(s, "echo") || !strings.Contains(s, "plain") {
		t.Errorf("String() = %q, missing expected tokens", s)
	}
}

package watch

import (
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"
	"syscall"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/dpvpro/rsincron/pkg/mask"
)

// Command holds a program and argument template. Each argument may
// contain $@ $# $% $& $$ placeholders, substituted at execution time
// from event metadata.
type Command struct {
	Program string
	Argv    []string
}

// String renders the command as a shell-quoted line built from Program
// and Argv, so that re-parsing yields the same Program/Argv. The quoting
// style of the original table line is not kept.
func (c Command) String() string {
	words := make([]string, 0, len(c.Argv)+1)
	words = append(words, c.Program)
	words = append(words, c.Argv...)
	return shellquote.Join(words...)
}

// Render expands every placeholder in argv against the given watch path,
// triggering event filename, and raw kernel mask. Scanning is
// single-pass, left to right, with a one-bit "dollar seen" state: outside
// dollar-state, '$' toggles into it and any other character is appended
// verbatim; inside dollar-state, '#' '@' '%' '&' '$' substitute and any
// other character is appended literally, and dollar-state always clears
// after the second character.
func (c Command) Render(path, name string, rawMask uint32) []string {
	out := make([]string, len(c.Argv))
	for i, arg := range c.Argv {
		out[i] = renderArg(arg, path, name, rawMask)
	}
	return out
}

func renderArg(arg, path, name string, rawMask uint32) string {
	var b strings.Builder
	dollar := false
	for _, c := range arg {
		if c == '$' {
			if dollar {
				b.WriteRune(c)
			}
			dollar = !dollar
			continue
		}
		if dollar {
			switch c {
			case '#':
				b.WriteString(name)
			case '@':
				b.WriteString(path)
			case '%':
				b.WriteString(strconv.Quote(mask.Display(rawMask)))
			case '&':
				b.WriteString(strconv.FormatUint(uint64(rawMask), 10))
			default:
				b.WriteRune(c)
			}
			dollar = false
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// RunAs, when non-empty, is the username commands are spawned as. Set on
// the Command's owning engine configuration, not per-entry.
type RunAs string

// Execute spawns the command as a child process with the rendered argv.
// It does not wait for the child: the process is started, stdio is
// inherited, and a goroutine reaps the exit status so the caller's event
// loop is never blocked on command completion. onExit, if non-nil, is
// called with the reaped error (nil on success) once the child exits.
func (c Command) Execute(path, name string, rawMask uint32, runAs RunAs, onExit func(error)) error {
	argv := c.Render(path, name, rawMask)
	cmd := exec.Command(c.Program, argv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"RSINCRON_PATH="+path,
		"RSINCRON_NAME="+name,
		"RSINCRON_EVENT="+mask.Display(rawMask),
	)

	if runAs != "" {
		if err := applyCredential(cmd, string(runAs)); err != nil {
			return err
		}
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		err := cmd.Wait()
		if onExit != nil {
			onExit(err)
		}
	}()

	return nil
}

// applyCredential configures cmd to run as the named user, mirroring the
// teacher's executor.go privilege-drop logic.
func applyCredential(cmd *exec.Cmd, username string) error {
	u, err := user.Lookup(username)
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return err
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)},
	}
	cmd.Dir = u.HomeDir
	cmd.Env = append(cmd.Env, "USER="+username, "HOME="+u.HomeDir)
	return nil
}

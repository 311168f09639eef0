// Package main implements rsincrontab, the watch table editor.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/dpvpro/rsincron/internal/config"
	"github.com/dpvpro/rsincron/pkg/control"
	"github.com/dpvpro/rsincron/pkg/table"
	"github.com/dpvpro/rsincron/pkg/watch"
)

const (
	defaultEditor  = "vi"
	tempFilePrefix = "rsincrontab"
)

func main() {
	var (
		listFlag    = flag.Bool("l", false, "List the current watch table")
		editFlag    = flag.Bool("e", false, "Edit the current watch table")
		removeFlag  = flag.Bool("r", false, "Remove the current watch table")
		configFile  string
		socketFile  = flag.String("s", "", "Control socket path (default: $XDG_RUNTIME_DIR/rsincron.socket)")
		versionFlag = flag.Bool("V", false, "Show version and exit")
	)
	flag.StringVar(&configFile, "c", config.DefaultConfigPath(), "Configuration file path")
	flag.StringVar(&configFile, "config", config.DefaultConfigPath(), "Configuration file path")
	flag.Parse()

	if *versionFlag {
		fmt.Println("rsincrontab 0.1.0")
		os.Exit(0)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	cfg := config.Load(configFile, log)
	socketPath := *socketFile
	if socketPath == "" {
		socketPath = config.DefaultSocketPath()
	}

	var err error
	switch {
	case *listFlag:
		err = listTable(cfg.WatchTableFile)
	case *removeFlag:
		err = removeTable(cfg.WatchTableFile)
	case *editFlag:
		err = editTable(cfg.WatchTableFile, socketPath)
	default:
		err = listTable(cfg.WatchTableFile)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "rsincrontab: %v\n", err)
		os.Exit(1)
	}
}

func listTable(path string) error {
	entries, parseErrs, err := table.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, pe := range parseErrs {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed line: %v\n", pe)
	}
	for _, e := range entries {
		fmt.Println(e.String())
	}
	return nil
}

func removeTable(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing table: %w", err)
	}
	fmt.Println("table removed")
	return nil
}

// editTable opens the table in $EDITOR/$VISUAL, then rewrites it with
// every line that parses cleanly, each in Entry.String form. Lines that
// fail to parse are dropped, with a note on stderr for each, rather than
// rejecting the whole save — the original Rust rsincrontab's Edit mode
// also drops them (original_source/src/bin/rsincrontab.rs), and spec.md
// delegates editor semantics entirely to this out-of-core tool. Comment
// and blank lines are not written back.
func editTable(path, socketPath string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		editor = defaultEditor
	}

	tmp, err := os.CreateTemp("", tempFilePrefix+"_*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if existing, err := os.ReadFile(path); err == nil {
		if _, err := tmp.Write(existing); err != nil {
			tmp.Close()
			return fmt.Errorf("writing existing table to temp file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		tmp.Close()
		return fmt.Errorf("reading existing table: %w", err)
	}
	tmp.Close()

	cmd := exec.Command(editor, tmpPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running editor %s: %w", editor, err)
	}

	entries, parseErrs, err := table.Load(tmpPath)
	if err != nil {
		return fmt.Errorf("reading edited table: %w", err)
	}
	for _, pe := range parseErrs {
		fmt.Fprintf(os.Stderr, "dropping unparseable line: %v\n", pe)
	}

	if err := writeTable(path, entries); err != nil {
		return fmt.Errorf("saving table: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("setting table permissions: %w", err)
	}

	if err := control.SendUpdateWatches(socketPath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not notify rsincrond: %v\n", err)
	}

	fmt.Printf("table saved, %d entries\n", len(entries))
	return nil
}

func writeTable(path string, entries []watch.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, e := range entries {
		if _, err := fmt.Fprintln(f, e.String()); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/phobologic/anycop/internal/config"
)

const (
	sentinelStart = "# anycop:start"
	sentinelEnd   = "# anycop:end"
)

// runInit implements the `anycop init` subcommand, which writes (or updates)
// the anycop settings block in a .anycop.toml file.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("anycop init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: anycop init [flags] [path-to-config]

Write the default anycop settings to a config file. The settings are wrapped
in sentinel comments so they can be updated in place on subsequent runs
without touching surrounding content. Creates the file if it does not exist.

path-to-config defaults to ./%s.

Flags:
`, config.FileName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	section := generateSection()

	// --dry-run with no path: just print the section itself.
	if dryRun && fs.NArg() == 0 {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := config.FileName
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	existing, _ := os.ReadFile(path)
	if err := checkUnmanaged(string(existing)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote anycop settings to %s\n", path)
	return nil
}

// generateSection returns the full sentinel-wrapped default settings block.
func generateSection() string {
	def := config.Default()
	body := fmt.Sprintf(`# Managed by "anycop init"; edits between the markers are overwritten.

[rule]
# Style/SimplifyNotEmptyWithAny: prefer x.any? over !x.empty?
enabled = %t

[files]
# gitignore-style patterns, relative to the project root.
exclude = []
max_file_size = %d

[run]
# 0 uses one worker per CPU.
jobs = 0
# Upper bound on autocorrect passes per file; 0 uses the built-in default.
max_iterations = 0`, def.Rule.Enabled, def.Files.MaxFileSize)

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// checkUnmanaged fails if content defines any settings outside the sentinel
// block. The block redefines every table, and keys written after it would
// be read as part of [run].
func checkUnmanaged(content string) error {
	var rest map[string]any
	meta, err := toml.Decode(withoutSection(content), &rest)
	if err != nil {
		return fmt.Errorf("parsing existing settings: %w", err)
	}
	if keys := meta.Keys(); len(keys) > 0 {
		return fmt.Errorf("%q is already set outside the %s block; move it inside the block or remove it",
			keys[0].String(), sentinelStart)
	}
	return nil
}

// withoutSection returns content with the sentinel block cut out.
func withoutSection(content string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)
	if start >= 0 && end > start {
		return content[:start] + content[end+len(sentinelEnd):]
	}
	return content
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if len(content) == 0 {
		return section + "\n"
	}
	return content + "\n" + section + "\n"
}

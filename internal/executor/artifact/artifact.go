// Package artifact finds the file a just-executed script produced.
//
// There is no explicit filename contract between the caller and the script:
// the script is told (through the assistant's system prompt) to write into a
// fixed output directory using a fixed naming pattern. The Locator picks the
// most recently modified match and accepts it only if it was written during
// the run.
//
// Concurrent external writers to the output directory are not guarded
// against; one could make Latest pick the wrong file.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default values for the artifact contract.
const (
	DefaultDir     = "./map_output"
	DefaultPattern = "temp_map_*.html"
)

// Config describes where artifacts are written and how they are named.
type Config struct {
	// Dir is the output directory executed code writes into.
	Dir string
	// Pattern is a filepath.Match pattern with exactly one '*'.
	Pattern string
}

// DefaultConfig returns the conventional map_output/temp_map_*.html contract.
func DefaultConfig() Config {
	return Config{
		Dir:     DefaultDir,
		Pattern: DefaultPattern,
	}
}

// Validate checks that the pattern is usable for both matching and naming.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("artifact: output directory is required")
	}
	if strings.Count(c.Pattern, "*") != 1 {
		return fmt.Errorf("artifact: pattern %q must contain exactly one '*'", c.Pattern)
	}
	if _, err := filepath.Match(c.Pattern, ""); err != nil {
		return fmt.Errorf("artifact: invalid pattern %q: %w", c.Pattern, err)
	}
	return nil
}

// PathFor returns the path an artifact called name should be written to,
// e.g. PathFor("20240101") → map_output/temp_map_20240101.html.
func (c Config) PathFor(name string) string {
	prefix, suffix, _ := strings.Cut(c.Pattern, "*")
	return filepath.Join(c.Dir, prefix+name+suffix)
}

// Locator finds qualifying artifact files.
type Locator struct {
	cfg Config
}

// New creates a Locator. It returns an error if cfg is invalid.
func New(cfg Config) (*Locator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Locator{cfg: cfg}, nil
}

// Config returns the locator's configuration.
func (l *Locator) Config() Config { return l.cfg }

// EnsureDir creates the output directory if it does not exist.
func (l *Locator) EnsureDir() error {
	if err := os.MkdirAll(l.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("artifact: creating output directory: %w", err)
	}
	return nil
}

// Now returns the current time as the file system stamps it, by creating
// and removing a scratch file in the output directory.
//
// WHY NOT time.Now()?
// Many file systems stamp mtimes from a coarse kernel clock that can trail
// the wall clock by a few milliseconds. A run start taken from time.Now()
// could then be later than the mtime of a file the run wrote. Taking the
// start from the same clock as the mtimes keeps Latest's comparison exact.
// If the scratch file cannot be written, Now falls back to time.Now().
func (l *Locator) Now() time.Time {
	f, err := os.CreateTemp(l.cfg.Dir, ".clock-*")
	if err != nil {
		return time.Now()
	}
	defer os.Remove(f.Name())
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return time.Now()
	}
	return info.ModTime()
}

// Latest returns the most recently modified file matching the pattern,
// provided it was modified at or after since.
//
// ALGORITHM:
//  1. list the directory and keep regular files matching the pattern
//  2. none → not found
//  3. pick the maximum modification time; ties go to the lexically greatest
//     name, which is deterministic for a fixed directory state
//  4. accept it only if mtime >= since, so a stale file from an earlier,
//     unrelated run is never returned
//
// File-system failures (unreadable directory, vanished file) are returned
// as errors; callers treat them as "no artifact".
func (l *Locator) Latest(since time.Time) (string, bool, error) {
	entries, err := os.ReadDir(l.cfg.Dir)
	if err != nil {
		return "", false, fmt.Errorf("artifact: reading %s: %w", l.cfg.Dir, err)
	}

	var (
		bestName string
		bestMod  time.Time
	)
	// os.ReadDir returns entries sorted by name.
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(l.cfg.Pattern, e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", false, fmt.Errorf("artifact: stat %s: %w", e.Name(), err)
		}
		if bestName == "" || !info.ModTime().Before(bestMod) {
			bestName = e.Name()
			bestMod = info.ModTime()
		}
	}

	if bestName == "" {
		return "", false, nil
	}
	if bestMod.Before(since) {
		return "", false, nil
	}
	return filepath.Join(l.cfg.Dir, bestName), true, nil
}

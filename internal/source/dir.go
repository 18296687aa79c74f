package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
)

// ErrTableNotFound is returned when no table matches the requested name.
var ErrTableNotFound = errors.New("table not found")

// DefaultExtensions are the file suffixes tried for a table name without
// an extension.
var DefaultExtensions = map[record.TestLevel]string{
	record.Cycle: ".CDD",
	record.Suite: ".STD",
	record.Step:  ".SDD",
}

// Dir reads tables from files under a project directory.
type Dir struct {
	root       string
	extensions map[record.TestLevel]string
}

// DirOption configures a Dir.
type DirOption func(*Dir)

// WithExtension overrides the file suffix for level.
func WithExtension(level record.TestLevel, ext string) DirOption {
	return func(d *Dir) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		d.extensions[level] = ext
	}
}

// NewDir creates a directory-backed source rooted at root.
func NewDir(root string, opts ...DirOption) *Dir {
	d := &Dir{root: root, extensions: make(map[record.TestLevel]string)}
	for level, ext := range DefaultExtensions {
		d.extensions[level] = ext
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the project directory.
func (d *Dir) Root() string {
	return d.root
}

// Open loads the table named by src.
//
// Lookup order: the name as given (absolute or relative to root), then the
// name with the level's extension. When neither exists, a case-insensitive
// match in the containing directory is tried, since tables often move
// between case-insensitive and case-sensitive file systems.
func (d *Dir) Open(ctx context.Context, src record.Source) (driver.TableReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.Resolve(src)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	text, err := decodeTable(data)
	if err != nil {
		return nil, fmt.Errorf("decode table %s: %w", path, err)
	}
	slog.Debug("table opened", "table", src.Name, "level", src.Level, "path", path)
	return newLineReader(src.Name, src.Separator, splitLines(text)), nil
}

// decodeTable returns data as text. Files that are not valid UTF-8 are
// read as Windows-1252, the encoding legacy table editors save in.
func decodeTable(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// Resolve returns the file path for src.
func (d *Dir) Resolve(src record.Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		return "", fmt.Errorf("empty table name: %w", ErrTableNotFound)
	}
	base := name
	if !filepath.IsAbs(base) {
		base = filepath.Join(d.root, base)
	}

	candidates := []string{base}
	if filepath.Ext(base) == "" {
		if ext := d.extensions[src.Level]; ext != "" {
			candidates = append(candidates, base+ext)
		}
	}
	for _, c := range candidates {
		if isFile(c) {
			return c, nil
		}
	}
	for _, c := range candidates {
		if match, ok := foldMatch(c); ok {
			return match, nil
		}
	}
	return "", fmt.Errorf("%s table %q under %s: %w", src.Level, name, d.root, ErrTableNotFound)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// foldMatch finds a file whose name equals path's base name ignoring case.
func foldMatch(path string) (string, bool) {
	dir, file := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("table directory unreadable", "dir", dir, "error", err)
		}
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), file) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

// SymbolFile persists the tracked list as one normalized symbol per line.
type SymbolFile struct {
	path string
}

func NewSymbolFile(path string) *SymbolFile {
	return &SymbolFile{path: path}
}

func (f *SymbolFile) Path() string { return f.path }

// Load returns the saved symbols, normalized and deduplicated. A missing file is an empty list.
func (f *SymbolFile) Load() ([]string, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	seen := make(map[models.Symbol]bool)
	var symbols []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		sym := models.NormalizeSymbol(sc.Text())
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym.String())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return symbols, nil
}

// Save replaces the file contents through a temp file and rename.
func (f *SymbolFile) Save(symbols []models.Symbol) error {
	var b strings.Builder
	for _, s := range symbols {
		b.WriteString(s.String())
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

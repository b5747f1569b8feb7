package scoreio

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/decision"
	"github.com/banshee-data/antispoofing.motion/internal/fsutil"
)

// Ext is the extension of every file in a data tree.
const Ext = ".csv"

// Tree maps catalog files to paths under a root directory, mirroring the
// database layout.
type Tree struct {
	Root string
	FS   fsutil.FileSystem
}

// NewTree returns a tree on the local filesystem.
func NewTree(root string) Tree {
	return Tree{Root: root, FS: fsutil.OSFileSystem{}}
}

// Path returns the location of f's data. Catalog paths must stay inside
// the root.
func (t Tree) Path(f catalog.File) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(f.Path)) {
		return "", fmt.Errorf("file %s: path %q escapes the data directory", f.ID, f.Path)
	}
	return filepath.Join(t.Root, filepath.FromSlash(f.Path)+Ext), nil
}

// Has reports whether f has data in the tree.
func (t Tree) Has(f catalog.File) bool {
	p, err := t.Path(f)
	return err == nil && t.FS.Exists(p)
}

func (t Tree) read(f catalog.File, parse func(io.Reader) error) error {
	p, err := t.Path(f)
	if err != nil {
		return err
	}
	r, err := t.FS.Open(p)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := parse(r); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	return nil
}

func (t Tree) write(f catalog.File, emit func(io.Writer) error) error {
	p, err := t.Path(f)
	if err != nil {
		return err
	}
	if err := t.FS.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	w, err := t.FS.Create(p)
	if err != nil {
		return err
	}
	if err := emit(w); err != nil {
		w.Close()
		return fmt.Errorf("%s: %w", p, err)
	}
	return w.Close()
}

// ReadScores loads f's per-frame scores.
func (t Tree) ReadScores(f catalog.File) ([]decision.Score, error) {
	var vs []float64
	err := t.read(f, func(r io.Reader) (err error) {
		vs, err = ReadScores(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decision.FromFloats(vs), nil
}

// ReadSignal loads f's difference signal.
func (t Tree) ReadSignal(f catalog.File) ([]float64, error) {
	var vs []float64
	err := t.read(f, func(r io.Reader) (err error) {
		vs, err = ReadSignal(r)
		return err
	})
	return vs, err
}

// ReadFeatures loads f's feature matrix.
func (t Tree) ReadFeatures(f catalog.File) ([][]float64, error) {
	var rows [][]float64
	err := t.read(f, func(r io.Reader) (err error) {
		rows, err = ReadFeatures(r)
		return err
	})
	return rows, err
}

// WriteScores stores f's per-frame scores.
func (t Tree) WriteScores(f catalog.File, scores []decision.Score) error {
	return t.write(f, func(w io.Writer) error { return WriteScores(w, scores) })
}

// WriteFeatures stores f's feature matrix.
func (t Tree) WriteFeatures(f catalog.File, rows [][]float64) error {
	return t.write(f, func(w io.Writer) error { return WriteFeatures(w, rows) })
}

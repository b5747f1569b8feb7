package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var manifestHeader = []string{"id", "path", "protocol", "support", "group", "class"}

// Manifest is a Catalog backed by a CSV file with the columns
// id,path,protocol,support,group,class. The header row is required.
type Manifest struct {
	files []File
}

// OpenManifest reads a manifest from disk.
func OpenManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	m, err := ReadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadManifest parses a manifest.
func ReadManifest(r io.Reader) (*Manifest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(manifestHeader)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty manifest")
		}
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}
	for i, h := range manifestHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != h {
			return nil, fmt.Errorf("manifest column %d is %q, want %q", i+1, header[i], h)
		}
	}

	m := &Manifest{}
	seen := make(map[string]bool)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		line, _ := cr.FieldPos(0)
		f := File{
			ID:       rec[0],
			Path:     rec[1],
			Protocol: rec[2],
			Support:  rec[3],
			Group:    Group(rec[4]),
			Class:    Class(rec[5]),
		}
		if f.ID == "" || f.Path == "" {
			return nil, fmt.Errorf("line %d: id and path are required", line)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("line %d: duplicate id %q", line, f.ID)
		}
		if err := validate(f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		seen[f.ID] = true
		m.files = append(m.files, f)
	}
	return m, nil
}

// NewManifest builds an in-memory catalog.
func NewManifest(files []File) (*Manifest, error) {
	for _, f := range files {
		if err := validate(f); err != nil {
			return nil, err
		}
	}
	return &Manifest{files: append([]File(nil), files...)}, nil
}

func validate(f File) error {
	switch f.Group {
	case Train, Devel, Test:
	default:
		return fmt.Errorf("file %s: unknown group %q", f.ID, f.Group)
	}
	switch f.Class {
	case Real, Attack:
	default:
		return fmt.Errorf("file %s: unknown class %q", f.ID, f.Class)
	}
	return nil
}

// Files returns the matching files in manifest order.
func (m *Manifest) Files(ctx context.Context, flt Filter) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []File
	for _, f := range m.files {
		if flt.Match(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Write stores the catalog as a manifest.
func (m *Manifest) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(manifestHeader); err != nil {
		return err
	}
	for _, f := range m.files {
		if err := cw.Write([]string{f.ID, f.Path, f.Protocol, f.Support, string(f.Group), string(f.Class)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

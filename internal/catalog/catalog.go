// Package catalog describes the video files of a face anti-spoofing
// database and selects subsets of them by protocol, support, group and
// class.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
)

// ErrNoClientID is returned when a file path carries no clientNNN token.
var ErrNoClientID = errors.New("no client id in file path")

// Group is a database partition.
type Group string

const (
	Train Group = "train"
	Devel Group = "devel"
	Test  Group = "test"
)

// Groups lists the partitions in the order reports walk them.
var Groups = []Group{Train, Devel, Test}

// Class is the ground-truth label of a file.
type Class string

const (
	Real   Class = "real"
	Attack Class = "attack"
)

// File is one video in the catalog. Path is relative to the data
// directories and has no extension. A file with an empty Protocol belongs
// to every protocol.
type File struct {
	ID       string
	Path     string
	Protocol string
	Support  string
	Group    Group
	Class    Class
}

// ClientID returns the identity number encoded in the file name, as in
// "attack_highdef_client012_session01_..." or "client001_session01_...".
func (f File) ClientID() (int, error) {
	for _, tok := range strings.Split(path.Base(f.Path), "_") {
		digits, ok := strings.CutPrefix(tok, "client")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(digits)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrNoClientID, f.Path, err)
		}
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrNoClientID, f.Path)
}

// Filter selects files. Empty fields match everything.
type Filter struct {
	Protocol string
	Supports []string
	Groups   []Group
	Classes  []Class
}

// Match reports whether f passes the filter.
func (flt Filter) Match(f File) bool {
	if flt.Protocol != "" && f.Protocol != "" && f.Protocol != flt.Protocol {
		return false
	}
	if len(flt.Supports) > 0 && !slices.Contains(flt.Supports, f.Support) {
		return false
	}
	if len(flt.Groups) > 0 && !slices.Contains(flt.Groups, f.Group) {
		return false
	}
	if len(flt.Classes) > 0 && !slices.Contains(flt.Classes, f.Class) {
		return false
	}
	return true
}

// Catalog lists database files.
type Catalog interface {
	Files(ctx context.Context, flt Filter) ([]File, error)
}

// ParseSupports splits a support option such as "hand+fixed" or
// "hand fixed" into its parts.
func ParseSupports(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ' ' || r == ',' })
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/config"
	"github.com/banshee-data/antispoofing.motion/internal/lda"
)

// machineFile is the trained machine inside a machine directory.
const machineFile = "lda.json"

// machineDir is the output of ldatrain: a machine and the session that
// produced it.
type machineDir struct {
	path    string
	session *config.Session
	machine *lda.Machine
}

func loadMachineDir(dir string) (*machineDir, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("machine directory %q: %w", dir, err)
	}
	session, err := config.LoadSession(filepath.Join(dir, config.SessionFile))
	if err != nil {
		return nil, err
	}
	machine, err := lda.LoadFile(filepath.Join(dir, machineFile))
	if err != nil {
		return nil, err
	}
	return &machineDir{path: dir, session: session, machine: machine}, nil
}

// manifestPath picks the --manifest flag over the one a session recorded.
func (a *app) manifestPath(fallback string) (string, error) {
	if p := a.v.GetString("manifest"); p != "" {
		return p, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no manifest given (use --manifest)")
}

func (a *app) openManifest(fallback string) (*catalog.Manifest, string, error) {
	p, err := a.manifestPath(fallback)
	if err != nil {
		return nil, "", err
	}
	m, err := catalog.OpenManifest(p)
	if err != nil {
		return nil, "", err
	}
	return m, p, nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input directory %q does not exist", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", path)
	}
	return nil
}

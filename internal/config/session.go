package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SessionFile is the name of the session record written next to a trained
// machine.
const SessionFile = "session.json"

// Session records how a machine was trained, so later stages can find the
// inputs and options it was built from.
type Session struct {
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
	Duration    string    `json:"duration"`
	Host        string    `json:"host,omitempty"`
	CommandLine []string  `json:"command_line,omitempty"`
	Version     string    `json:"version,omitempty"`

	Input       string `json:"input"`
	Manifest    string `json:"manifest,omitempty"`
	TrainReal   int    `json:"train_real"`
	TrainAttack int    `json:"train_attack"`
	Dimension   int    `json:"dimension"`

	Analysis *AnalysisConfig `json:"analysis,omitempty"`
}

// Finish stamps the end time and duration.
func (s *Session) Finish(now time.Time) {
	s.Finished = now
	s.Duration = now.Sub(s.Started).Round(time.Second).String()
}

// Save writes the session as indented JSON.
func (s *Session) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// LoadSession reads a session written by Save.
func LoadSession(path string) (*Session, error) {
	var s Session
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	if s.Input == "" {
		return nil, fmt.Errorf("session %s has no input directory", path)
	}
	if s.Analysis != nil {
		if err := s.Analysis.Validate(); err != nil {
			return nil, fmt.Errorf("invalid session analysis options: %w", err)
		}
	}
	return &s, nil
}

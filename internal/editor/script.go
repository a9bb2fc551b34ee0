package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thruflo/tracksync/internal/track"
)

// Script is a sequence of editor actions replayed against a connected demo.
type Script struct {
	// WaitTracks is how many track requests to wait for before the first step.
	WaitTracks int    `yaml:"wait_tracks"`
	Steps      []Step `yaml:"steps"`
}

// Step is one action. Exactly one field is set.
type Step struct {
	SetKey    *KeyStep      `yaml:"set_key,omitempty"`
	DeleteKey *KeyStep      `yaml:"delete_key,omitempty"`
	SetRow    *uint32       `yaml:"set_row,omitempty"`
	Pause     bool          `yaml:"pause,omitempty"`
	Play      bool          `yaml:"play,omitempty"`
	Save      bool          `yaml:"save,omitempty"`
	Sleep     time.Duration `yaml:"sleep,omitempty"`
	WaitRow   *uint32       `yaml:"wait_row,omitempty"`
}

// KeyStep addresses a key by track name.
type KeyStep struct {
	Track  string              `yaml:"track"`
	Row    uint32              `yaml:"row"`
	Value  float32             `yaml:"value"`
	Interp track.Interpolation `yaml:"interp"`
}

// Action names the step's action.
func (s Step) Action() string {
	actions := s.actions()
	if len(actions) != 1 {
		return ""
	}
	return actions[0]
}

func (s Step) actions() []string {
	var out []string
	if s.SetKey != nil {
		out = append(out, "set_key")
	}
	if s.DeleteKey != nil {
		out = append(out, "delete_key")
	}
	if s.SetRow != nil {
		out = append(out, "set_row")
	}
	if s.Pause {
		out = append(out, "pause")
	}
	if s.Play {
		out = append(out, "play")
	}
	if s.Save {
		out = append(out, "save")
	}
	if s.Sleep != 0 {
		out = append(out, "sleep")
	}
	if s.WaitRow != nil {
		out = append(out, "wait_row")
	}
	return out
}

// LoadScript reads and validates a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript parses and validates script YAML.
func ParseScript(data []byte) (*Script, error) {
	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks every step names exactly one well-formed action.
func (sc *Script) Validate() error {
	if sc.WaitTracks < 0 {
		return errors.New("wait_tracks must not be negative")
	}
	for i, step := range sc.Steps {
		actions := step.actions()
		switch {
		case len(actions) == 0:
			return fmt.Errorf("steps[%d]: no action", i)
		case len(actions) > 1:
			return fmt.Errorf("steps[%d]: more than one action %v", i, actions)
		}
		if step.Sleep < 0 {
			return fmt.Errorf("steps[%d]: sleep must not be negative", i)
		}
		for _, k := range []*KeyStep{step.SetKey, step.DeleteKey} {
			if k != nil && k.Track == "" {
				return fmt.Errorf("steps[%d]: track is required", i)
			}
		}
	}
	return nil
}

// Run waits for a demo, then performs every step in order. It stops at the
// first failing step.
func (sc *Script) Run(ctx context.Context, srv *Server) error {
	if err := srv.WaitConnected(ctx); err != nil {
		return fmt.Errorf("waiting for demo: %w", err)
	}
	if sc.WaitTracks > 0 {
		if err := srv.WaitTracks(ctx, sc.WaitTracks); err != nil {
			return fmt.Errorf("waiting for %d tracks: %w", sc.WaitTracks, err)
		}
	}

	for i, step := range sc.Steps {
		if err := runStep(ctx, srv, step); err != nil {
			return fmt.Errorf("steps[%d] %s: %w", i, step.Action(), err)
		}
		srv.log.Debug("step done", "index", i, "action", step.Action())
	}
	return nil
}

func runStep(ctx context.Context, srv *Server, step Step) error {
	switch {
	case step.SetKey != nil:
		k := step.SetKey
		return srv.SetKey(k.Track, track.Key{Row: k.Row, Value: k.Value, Interp: k.Interp})
	case step.DeleteKey != nil:
		return srv.DeleteKey(step.DeleteKey.Track, step.DeleteKey.Row)
	case step.SetRow != nil:
		return srv.SetRow(*step.SetRow)
	case step.Pause:
		return srv.Pause()
	case step.Play:
		return srv.Play()
	case step.Save:
		return srv.SaveTracks()
	case step.Sleep > 0:
		t := time.NewTimer(step.Sleep)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case step.WaitRow != nil:
		target := *step.WaitRow
		return srv.WaitRow(ctx, func(row uint32) bool { return row >= target })
	}
	return nil
}

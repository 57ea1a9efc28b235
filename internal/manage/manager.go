// Package manage implements the change management loop: one pass over the
// repo's outstanding Changes, driving each through the configured Steps.
package manage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/event"
	"github.com/nathro/autotransform/internal/runner"
	"github.com/nathro/autotransform/internal/schema"
	"github.com/nathro/autotransform/internal/step"
)

// ErrChangeAction marks a failed action on a Change. Action failures are
// reported as warning events and never abort the management pass.
var ErrChangeAction = errors.New("change action failed")

// Manager holds the repo to fetch outstanding Changes from and the Steps to
// drive them through.
type Manager struct {
	Repo  schema.Repo
	Steps []step.Step
}

// Run performs one management pass. The runner handed to update actions is
// the config's local or remote runner depending on the local flag, falling
// back to an in-process runner.
func (m *Manager) Run(ctx context.Context, cfg *config.Config, local bool) error {
	r, err := runner.Select(cfg, local)
	if err != nil {
		return err
	}
	for _, s := range m.Steps {
		s.SetRunner(r)
	}

	changes, err := m.Repo.GetOutstandingChanges(ctx)
	if err != nil {
		return fmt.Errorf("manage: fetching outstanding changes: %w", err)
	}
	events := event.Default()
	events.Handle(event.DebugEvent{Msg: fmt.Sprintf("managing %d outstanding changes", len(changes))})

	for _, ch := range changes {
		m.manageChange(ctx, ch)
	}
	return nil
}

// manageChange drives one Change through the Steps in order. Step chaining:
// once a step returns actions, later steps are skipped unless the step
// elects to continue.
func (m *Manager) manageChange(ctx context.Context, ch schema.Change) {
	events := event.Default()
	events.Handle(event.DebugEvent{Msg: fmt.Sprintf("checking steps for %s", ch)})

	for _, s := range m.Steps {
		actions, err := s.GetActions(ctx, ch)
		if err != nil {
			events.Handle(event.WarningEvent{
				Msg: fmt.Sprintf("step %s failed for %s", s.ComponentName(), ch),
				Err: err,
			})
			continue
		}
		for _, a := range actions {
			events.Handle(event.ManageActionEvent{
				Action: a.ComponentName(),
				Change: ch.String(),
				Step:   s.ComponentName(),
			})
			if err := a.Run(ctx, ch); err != nil {
				events.Handle(event.WarningEvent{
					Msg: fmt.Sprintf("action %s failed for %s", a.ComponentName(), ch),
					Err: fmt.Errorf("%w: %w", ErrChangeAction, err),
				})
			}
		}
		if len(actions) > 0 && !s.ContinueManagement(ch) {
			events.Handle(event.DebugEvent{Msg: fmt.Sprintf("steps ended for %s", ch)})
			return
		}
	}
}

// managerBundle is the JSON shape of a Manager file.
type managerBundle struct {
	Repo  json.RawMessage   `json:"repo"`
	Steps []json.RawMessage `json:"steps"`
}

// FromBundle decodes a Manager from its JSON form.
func FromBundle(data json.RawMessage) (*Manager, error) {
	var b managerBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("manage: decoding manager: %w (%w)", err, config.ErrConfig)
	}
	if len(b.Repo) == 0 {
		return nil, fmt.Errorf("manage: manager requires a repo: %w", config.ErrConfig)
	}
	m := &Manager{}
	var err error
	if m.Repo, err = schema.DecodeRepo(b.Repo); err != nil {
		return nil, err
	}
	for _, raw := range b.Steps {
		s, err := step.DecodeStep(raw)
		if err != nil {
			return nil, err
		}
		m.Steps = append(m.Steps, s)
	}
	return m, nil
}

// Bundle serializes the Manager to its JSON form.
func (m *Manager) Bundle() (json.RawMessage, error) {
	b := managerBundle{}
	var err error
	if b.Repo, err = schema.EncodeComponent(m.Repo); err != nil {
		return nil, err
	}
	for _, s := range m.Steps {
		encoded, err := schema.EncodeComponent(s)
		if err != nil {
			return nil, err
		}
		b.Steps = append(b.Steps, encoded)
	}
	return json.Marshal(b)
}

// FromFile reads a Manager from a JSON file.
func FromFile(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manage: reading %s: %w (%w)", path, err, config.ErrConfig)
	}
	return FromBundle(data)
}

// Write writes the Manager to a JSON file, creating parent directories.
func (m *Manager) Write(path string) error {
	bundle, err := m.Bundle()
	if err != nil {
		return err
	}
	var indented json.RawMessage = bundle
	pretty, err := json.MarshalIndent(indented, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("manage: creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		return fmt.Errorf("manage: writing %s: %w", path, err)
	}
	return nil
}

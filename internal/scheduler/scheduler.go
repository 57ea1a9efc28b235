// Package scheduler implements the wall-clock driver that decides, for each
// scheduled schema, whether the current tick should trigger a run, computes
// the shard assignment, and dispatches via the configured runner.
//
// The scheduler assumes it is invoked at most once per hour; multiple
// invocations within the same hour redispatch the same schemas. The
// cron-like driver invoking it is responsible for throttling.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/event"
	"github.com/nathro/autotransform/internal/runner"
	"github.com/nathro/autotransform/internal/schema"
)

// Repeats is how often a scheduled schema runs.
type Repeats string

// Repeat settings.
const (
	RepeatDaily  Repeats = "daily"
	RepeatWeekly Repeats = "weekly"
)

// Schedule decides when one schema runs.
type Schedule struct {
	// Repeats is daily or weekly.
	Repeats Repeats `json:"repeats"`

	// HourOfDay is the hour (0-23, relative to the scheduler's base time)
	// the schema runs at.
	HourOfDay int `json:"hour_of_day"`

	// DayOfWeek is the day (0-6) a weekly schema runs on.
	DayOfWeek int `json:"day_of_week,omitempty"`

	// ShardFilter optionally partitions the schema's input across runs. The
	// bundle is decoded fresh for each dispatch and its valid shard is set
	// from the tick arithmetic.
	ShardFilter json.RawMessage `json:"shard_filter,omitempty"`
}

// shouldRun applies the schedule gate for the tick's hour and day.
func (s Schedule) shouldRun(hourOfDay, dayOfWeek int) bool {
	if s.HourOfDay != hourOfDay {
		return false
	}
	return s.Repeats == RepeatDaily || s.DayOfWeek == dayOfWeek
}

func (s Schedule) validate() error {
	if s.Repeats != RepeatDaily && s.Repeats != RepeatWeekly {
		return fmt.Errorf("scheduler: unknown repeats %q: %w", s.Repeats, config.ErrConfig)
	}
	if s.HourOfDay < 0 || s.HourOfDay > 23 {
		return fmt.Errorf("scheduler: hour_of_day %d out of range: %w", s.HourOfDay, config.ErrConfig)
	}
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return fmt.Errorf("scheduler: day_of_week %d out of range: %w", s.DayOfWeek, config.ErrConfig)
	}
	return nil
}

// ScheduledSchema is one schema on the schedule.
type ScheduledSchema struct {
	SchemaName string   `json:"schema_name"`
	Schedule   Schedule `json:"schedule"`

	// MaxSubmissions caps submissions for scheduled runs, overriding the
	// schema's own setting. Zero means no override.
	MaxSubmissions int `json:"max_submissions,omitempty"`
}

// ShardFilter is satisfied by filters that partition work determinstically
// across scheduled runs.
type ShardFilter interface {
	schema.Filter
	SetValidShard(shard int)
	ShardCount() int
}

// Scheduler is the full schedule: a base time anchoring the day/hour
// arithmetic, excluded days, and the scheduled schemas.
type Scheduler struct {
	// BaseTime is the unix timestamp considered day 0, hour 0. Midnight
	// Monday local makes day_of_week 0 a Monday.
	BaseTime int64 `json:"base_time"`

	// ExcludedDays lists days of the week (0-6) to skip entirely.
	ExcludedDays []int `json:"excluded_days"`

	// Schemas are the scheduled schemas, checked in order every tick.
	Schemas []ScheduledSchema `json:"schemas"`
}

// Run performs one scheduler tick for the given wall-clock time, resolving
// due schemas through the schema map and dispatching them via the runner.
func (s *Scheduler) Run(ctx context.Context, now int64, schemaMap *schema.Map, r runner.Runner) error {
	elapsedHours := (now - s.BaseTime) / 3600
	hourOfDay := int(elapsedHours % 24)
	elapsedDays := elapsedHours / 24
	dayOfWeek := int(elapsedDays % 7)
	elapsedWeeks := elapsedDays / 7

	events := event.Default()
	events.Handle(event.DebugEvent{
		Msg: fmt.Sprintf("running for hour %d, day %d (elapsed days %d, weeks %d)",
			hourOfDay, dayOfWeek, elapsedDays, elapsedWeeks),
	})

	for _, excluded := range s.ExcludedDays {
		if excluded == dayOfWeek {
			events.Handle(event.DebugEvent{
				Msg: fmt.Sprintf("day %d is excluded, skipping run", dayOfWeek),
			})
			return nil
		}
	}

	for _, scheduled := range s.Schemas {
		if !scheduled.Schedule.shouldRun(hourOfDay, dayOfWeek) {
			events.Handle(event.DebugEvent{
				Msg: fmt.Sprintf("skipping run of schema %s", scheduled.SchemaName),
			})
			continue
		}
		target, err := schemaMap.Get(scheduled.SchemaName)
		if err != nil {
			return err
		}
		if len(scheduled.Schedule.ShardFilter) > 0 {
			shardFilter, err := decodeShardFilter(scheduled.Schedule.ShardFilter)
			if err != nil {
				return fmt.Errorf("scheduler: schema %s: %w", scheduled.SchemaName, err)
			}
			elapsed := elapsedDays
			if scheduled.Schedule.Repeats == RepeatWeekly {
				elapsed = elapsedWeeks
			}
			shardFilter.SetValidShard(int(elapsed % int64(shardFilter.ShardCount())))
			target.AddFilter(shardFilter)
		}
		if scheduled.MaxSubmissions > 0 {
			target.Config.MaxSubmissions = scheduled.MaxSubmissions
		}
		events.Handle(event.ScheduleRunEvent{SchemaName: target.Config.SchemaName})
		if err := r.Run(ctx, target); err != nil {
			return fmt.Errorf("scheduler: running %s: %w", scheduled.SchemaName, err)
		}
	}
	return nil
}

// decodeShardFilter resolves a shard filter bundle and checks it actually
// supports sharding.
func decodeShardFilter(bundle json.RawMessage) (ShardFilter, error) {
	f, err := schema.DecodeFilter(bundle)
	if err != nil {
		return nil, err
	}
	shardFilter, ok := f.(ShardFilter)
	if !ok {
		return nil, fmt.Errorf("%s is not a shard filter: %w", f.ComponentName(), config.ErrConfig)
	}
	if shardFilter.ShardCount() <= 0 {
		return nil, fmt.Errorf("shard filter needs a positive shard count: %w", config.ErrConfig)
	}
	return shardFilter, nil
}

// FromBundle decodes a Scheduler from its JSON form.
func FromBundle(data json.RawMessage) (*Scheduler, error) {
	var s Scheduler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scheduler: decoding scheduler: %w (%w)", err, config.ErrConfig)
	}
	for _, day := range s.ExcludedDays {
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("scheduler: excluded day %d out of range: %w", day, config.ErrConfig)
		}
	}
	for _, scheduled := range s.Schemas {
		if scheduled.SchemaName == "" {
			return nil, fmt.Errorf("scheduler: scheduled schema missing schema_name: %w", config.ErrConfig)
		}
		if err := scheduled.Schedule.validate(); err != nil {
			return nil, err
		}
		if scheduled.MaxSubmissions < 0 {
			return nil, fmt.Errorf("scheduler: max_submissions must be positive: %w", config.ErrConfig)
		}
	}
	return &s, nil
}

// FromFile reads a Scheduler from a JSON file.
func FromFile(path string) (*Scheduler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scheduler: reading %s: %w (%w)", path, err, config.ErrConfig)
	}
	return FromBundle(data)
}

// Write writes the Scheduler to a JSON file, creating parent directories.
func (s *Scheduler) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("scheduler: creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scheduler: writing %s: %w", path, err)
	}
	return nil
}

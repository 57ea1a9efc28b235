package event

import "fmt"

// DebugEvent is a freeform low-level trace message from the engine.
type DebugEvent struct {
	Msg string
}

func (e DebugEvent) Name() string      { return "debug" }
func (e DebugEvent) EventLevel() Level { return LevelDebug }
func (e DebugEvent) Message() string   { return e.Msg }

// VerboseEvent is a freeform message slightly more significant than debug,
// used for per-item traces that would flood debug output of a large run.
type VerboseEvent struct {
	Msg string
}

func (e VerboseEvent) Name() string      { return "verbose" }
func (e VerboseEvent) EventLevel() Level { return LevelVerbose }
func (e VerboseEvent) Message() string   { return e.Msg }

// WarningEvent reports a recoverable problem, such as a failed management
// action that the loop continues past.
type WarningEvent struct {
	Msg string
	Err error
}

func (e WarningEvent) Name() string      { return "warning" }
func (e WarningEvent) EventLevel() Level { return LevelWarning }
func (e WarningEvent) Message() string   { return e.Msg }

func (e WarningEvent) Context() []any {
	if e.Err == nil {
		return nil
	}
	return []any{"err", e.Err}
}

// ScheduleRunEvent records that the scheduler dispatched a schema.
type ScheduleRunEvent struct {
	SchemaName string
}

func (e ScheduleRunEvent) Name() string      { return "schedule_run" }
func (e ScheduleRunEvent) EventLevel() Level { return LevelInfo }
func (e ScheduleRunEvent) Message() string {
	return fmt.Sprintf("scheduling run of %s", e.SchemaName)
}
func (e ScheduleRunEvent) Context() []any { return []any{"schema", e.SchemaName} }

// ManageActionEvent records that the management loop is taking an action
// against an outstanding change.
type ManageActionEvent struct {
	Action string
	Change string
	Step   string
}

func (e ManageActionEvent) Name() string      { return "manage_action" }
func (e ManageActionEvent) EventLevel() Level { return LevelInfo }
func (e ManageActionEvent) Message() string {
	return fmt.Sprintf("taking action %s on %s", e.Action, e.Change)
}
func (e ManageActionEvent) Context() []any {
	return []any{"action", e.Action, "change", e.Change, "step", e.Step}
}

// RemoteRunEvent records a remote dispatch of a schema run.
type RemoteRunEvent struct {
	SchemaName string
	Ref        string
}

func (e RemoteRunEvent) Name() string      { return "remote_run" }
func (e RemoteRunEvent) EventLevel() Level { return LevelInfo }
func (e RemoteRunEvent) Message() string {
	return fmt.Sprintf("remote run dispatched for %s", e.SchemaName)
}
func (e RemoteRunEvent) Context() []any { return []any{"schema", e.SchemaName, "ref", e.Ref} }

// RemoteUpdateEvent records a remote dispatch of a change update.
type RemoteUpdateEvent struct {
	Change string
	Ref    string
}

func (e RemoteUpdateEvent) Name() string      { return "remote_update" }
func (e RemoteUpdateEvent) EventLevel() Level { return LevelInfo }
func (e RemoteUpdateEvent) Message() string {
	return fmt.Sprintf("remote update dispatched for %s", e.Change)
}
func (e RemoteUpdateEvent) Context() []any { return []any{"change", e.Change, "ref", e.Ref} }

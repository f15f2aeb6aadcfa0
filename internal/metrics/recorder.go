package metrics

import "time"

// TaskOutcome enumerates the terminal states a task metric can be recorded
// under.
type TaskOutcome string

const (
	TaskOutcomeCompleted TaskOutcome = "completed"
	TaskOutcomeFailed    TaskOutcome = "failed"
)

// Recorder defines the observability hooks the daemon and supervisor call
// into. All methods must be safe to call on the zero value (NoopRecorder)
// so injection is always optional.
type Recorder interface {
	IncTaskOutcome(ecosystem string, outcome TaskOutcome)
	ObserveTaskDuration(ecosystem string, d time.Duration)
	SetQueueDepth(n int)
	IncAdapterInvocation(ecosystem, action string, ok bool)
	IncBuildRetry(stage string)
	IncBuildRetryExhausted(stage string)
	IncRestart(reason string)
	SetRestartCount(n int)
	IncAdvisorCall(ok bool)
}

// NoopRecorder is a Recorder that does nothing (the default when metrics
// are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncTaskOutcome(string, TaskOutcome)     {}
func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) SetQueueDepth(int)                      {}
func (NoopRecorder) IncAdapterInvocation(string, string, bool) {}
func (NoopRecorder) IncBuildRetry(string)                   {}
func (NoopRecorder) IncBuildRetryExhausted(string)           {}
func (NoopRecorder) IncRestart(string)                      {}
func (NoopRecorder) SetRestartCount(int)                    {}
func (NoopRecorder) IncAdvisorCall(bool)                    {}

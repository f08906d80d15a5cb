package domain

type TimerState string

const (
	TimerStateStopped   TimerState = "stopped"
	TimerStateRunning   TimerState = "running"
	TimerStateCompleted TimerState = "completed"
)

// TaskTimerState is a point-in-time view of one controller. It is owned by the
// controller that produced it and is never shared between consumers.
type TaskTimerState struct {
	TaskID         string     `json:"taskId"`
	State          TimerState `json:"state"`
	IsRunning      bool       `json:"isRunning"`
	ElapsedTime    int64      `json:"elapsedTime"`    // seconds in the current open interval
	TotalTimeSpent int64      `json:"totalTimeSpent"` // seconds across closed intervals
	IsLoading      bool       `json:"isLoading"`
}

// Result is the outcome of a timer operation. Operations report failure
// through Result rather than returning an error so callers decide how to
// surface it.
type Result struct {
	OK      bool
	Message string
	Err     error
}

// Succeeded builds a successful Result
func Succeeded(msg string) Result {
	return Result{OK: true, Message: msg}
}

// Failed builds a failed Result carrying the cause
func Failed(msg string, err error) Result {
	return Result{Message: msg, Err: err}
}

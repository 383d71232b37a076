package generator

// Status is the phase of one stage.
type Status string

const (
	NotStarted Status = "not_started"
	Pending    Status = "pending"
	Ready      Status = "ready"
	Failed     Status = "failed"
)

// Stage is the state of one step of the joke pipeline. Value may be set
// while Pending when the previous result stays on screen until the new one
// arrives.
type Stage[T any] struct {
	Status Status
	Value  T
	Err    error
}

func (s Stage[T]) IsPending() bool { return s.Status == Pending }
func (s Stage[T]) IsReady() bool   { return s.Status == Ready }

func pendingWith[T any](prev T) Stage[T] {
	return Stage[T]{Status: Pending, Value: prev}
}

func readyWith[T any](v T) Stage[T] {
	return Stage[T]{Status: Ready, Value: v}
}

func failedWith[T any](prev T, err error) Stage[T] {
	return Stage[T]{Status: Failed, Value: prev, Err: err}
}

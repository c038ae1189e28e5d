package bootstrap

import "fmt"

// InitError reports a failed module load. The next Initialize call retries.
type InitError struct {
	Module   string
	Strategy Strategy
	Location string
	Reason   string
	Err      error
}

func (e *InitError) Error() string {
	where := e.Location
	if where == "" {
		where = "module default"
	}
	return fmt.Sprintf("initialize %s module (%s, %s): %s: %v", e.Module, e.Strategy, where, e.Reason, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

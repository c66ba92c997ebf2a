package combat

// The error types below classify the ways a roll event can be dropped.
// None of them are fatal: the engine logs them and keeps serving other
// events. Only storage errors propagate as plain errors.

type ErrNoActiveSession struct {
}

func (e *ErrNoActiveSession) Error() string {
	return "no session awaiting initiative"
}

func IsNoActiveSession(err error) bool {
	_, ok := err.(*ErrNoActiveSession)
	return ok
}

type ErrNoMatch struct {
}

func (e *ErrNoMatch) Error() string {
	return "roll does not match any participant"
}

func IsNoMatch(err error) bool {
	_, ok := err.(*ErrNoMatch)
	return ok
}

type ErrAlreadyRecorded struct {
}

func (e *ErrAlreadyRecorded) Error() string {
	return "participant already has initiative"
}

func IsAlreadyRecorded(err error) bool {
	_, ok := err.(*ErrAlreadyRecorded)
	return ok
}

// IsDropped reports whether an error is one of the non-fatal drop
// conditions rather than a storage failure.
func IsDropped(err error) bool {
	return IsNoActiveSession(err) || IsNoMatch(err) || IsAlreadyRecorded(err)
}

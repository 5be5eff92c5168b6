package retry

// Action is a single attempt of a retriable operation
type Action func() error

// Retry runs action until it succeeds or a strategy vetoes another attempt,
// returning the number of attempts and the final error.
//
// Strategies run in order, so any that sleep belong at the end.
func Retry(action Action, strategies ...Strategy) (attempts uint, err error) {
	for {
		attempts++
		if err = action(); err == nil {
			return attempts, nil
		}

		if !allow(attempts, err, strategies) {
			return attempts, err
		}
	}
}

func allow(attempts uint, err error, strategies []Strategy) bool {
	for _, strategy := range strategies {
		if !strategy(attempts, err) {
			return false
		}
	}
	return true
}

package workerd

import "errors"

// PermanentError marks a job failure that retrying cannot fix, such as an
// unreadable or missing image. The job fails immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// TransientError marks a failure that may succeed on retry, such as a model
// process crash or resource exhaustion.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsPermanent reports whether the error should skip the retry path.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}

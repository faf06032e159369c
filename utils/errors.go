package utils

import "errors"

type PermError string

func (e PermError) Error() string {
	return string(e)
}

func (e PermError) IsPermanent() bool {
	return true
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string     { return e.err.Error() }
func (e *permanentError) Unwrap() error     { return e.err }
func (e *permanentError) IsPermanent() bool { return true }

// Permanent marks err as not worth retrying, errors.Is and errors.As still see through it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether anything in the chain of err is permanent
func IsPermanent(err error) bool {
	var pe interface{ IsPermanent() bool }
	return errors.As(err, &pe) && pe.IsPermanent()
}

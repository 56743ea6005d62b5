package malloc

import "github.com/cockroachdb/errors"

// ErrorOutofMemory fallback allocator cannot supply more memory.
var ErrorOutofMemory = errors.New("malloc.outofmemory")

// ErrorInvalidFree freed pointer fails sanity checks, raised as panic
// only when debug checks are enabled.
var ErrorInvalidFree = errors.New("malloc.invalidfree")

// ErrorMisconfig invalid settings supplied while creating a Manager.
var ErrorMisconfig = errors.New("malloc.misconfig")

// ErrorInvalidAlign requested alignment is not a power of two.
var ErrorInvalidAlign = errors.New("malloc.invalidalign")

// ErrorInvalidSize requested size is negative.
var ErrorInvalidSize = errors.New("malloc.invalidsize")

func misconfigf(fmsg string, args ...interface{}) error {
	return errors.Wrapf(ErrorMisconfig, fmsg, args...)
}

func invalidfreef(fmsg string, args ...interface{}) error {
	return errors.Wrapf(ErrorInvalidFree, fmsg, args...)
}

func panicerr(fmsg string, args ...interface{}) {
	panic(errors.Newf(fmsg, args...))
}

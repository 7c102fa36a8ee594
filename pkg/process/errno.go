package process

import (
	"errors"
	"fmt"

	"kcore/pkg/fs"
	"kcore/pkg/mm"
)

// Recoverable errors returned by system calls.
var (
	ErrAgain           = errors.New("resource temporarily unavailable")
	ErrNoMemory        = mm.ErrNoMemory
	ErrPermission      = errors.New("operation not permitted")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInterrupted     = errors.New("interrupted system call")
	ErrNoChildren      = errors.New("no child processes")
	ErrNoProcess       = errors.New("no such process")
	ErrBadFile         = errors.New("bad file descriptor")
	ErrTooManyFiles    = errors.New("too many open files")
	ErrFileTableFull   = fs.ErrTableFull
	ErrNoDevice        = errors.New("no such device")
	ErrStalled         = errors.New("tick limit reached")
	ErrRunning         = errors.New("kernel already running")
)

// Errno is a Linux error number.
type Errno int

const (
	EPERM  Errno = 1
	ESRCH  Errno = 3
	EINTR  Errno = 4
	EBADF  Errno = 9
	ECHILD Errno = 10
	EAGAIN Errno = 11
	ENOMEM Errno = 12
	ENODEV Errno = 19
	EINVAL Errno = 22
	ENFILE Errno = 23
	EMFILE Errno = 24
)

var errnoNames = map[Errno]string{
	EPERM: "EPERM", ESRCH: "ESRCH", EINTR: "EINTR", EBADF: "EBADF",
	ECHILD: "ECHILD", EAGAIN: "EAGAIN", ENOMEM: "ENOMEM", ENODEV: "ENODEV",
	EINVAL: "EINVAL", ENFILE: "ENFILE", EMFILE: "EMFILE",
}

func (e Errno) String() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("errno %d", int(e))
}

var errnos = []struct {
	err   error
	errno Errno
}{
	{ErrAgain, EAGAIN},
	{ErrNoMemory, ENOMEM},
	{ErrPermission, EPERM},
	{ErrInvalidArgument, EINVAL},
	{ErrInterrupted, EINTR},
	{ErrNoChildren, ECHILD},
	{ErrNoProcess, ESRCH},
	{ErrBadFile, EBADF},
	{ErrTooManyFiles, EMFILE},
	{ErrFileTableFull, ENFILE},
	{ErrNoDevice, ENODEV},
}

// ErrnoOf maps an error to its errno; unknown errors map to EINVAL. The
// first matching sentinel wins, so EAGAIN shadows a wrapped ENOMEM.
func ErrnoOf(err error) Errno {
	for _, e := range errnos {
		if errors.Is(err, e.err) {
			return e.errno
		}
	}
	return EINVAL
}

// Status translates a system call outcome into the value user code sees:
// result on success, -errno on failure.
func Status(result int, err error) int {
	if err == nil {
		return result
	}
	return -int(ErrnoOf(err))
}

// Panic is the value a kernel panic unwinds with.
type Panic struct {
	Msg string
}

// Error implements error.
func (p *Panic) Error() string {
	return "kernel panic: " + p.Msg
}

func (k *Kernel) panic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	k.log.Criticalf("Kernel panic: %s", msg)
	panic(&Panic{Msg: msg})
}

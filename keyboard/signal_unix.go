//go:build unix

package keyboard

import "golang.org/x/sys/unix"

// raiseInterrupt delivers SIGINT to the current process, as the terminal
// driver would have done outside raw mode.
func raiseInterrupt() error {
	return unix.Kill(unix.Getpid(), unix.SIGINT)
}

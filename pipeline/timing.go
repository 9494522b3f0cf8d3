package pipeline

import (
	"golang.org/x/sys/unix"
)

// userSeconds is the CPU time spent in user mode by this process so far
func userSeconds() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1e6
}

//go:build linux

package activity

import (
	"time"

	"golang.org/x/sys/unix"
)

func statTimes(path string) (atime, mtime time.Time, err error) {
	var st unix.Stat_t
	if err = unix.Stat(path, &st); err != nil {
		return
	}
	atime = time.Unix(st.Atim.Unix())
	mtime = time.Unix(st.Mtim.Unix())
	return
}

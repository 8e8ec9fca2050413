//go:build unix

package neobench

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// lockFile opens path and takes a non-blocking exclusive flock on it.
// ok is false when another open file description holds the lock.
func lockFile(path string) (*os.File, bool, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open lock file: %w", err)
	}

	for {
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}

	if errors.Is(err, unix.EWOULDBLOCK) {
		_ = file.Close()

		return nil, false, nil
	}

	if err != nil {
		_ = file.Close()

		return nil, false, fmt.Errorf("flock %s: %w", path, err)
	}

	// Owner info for humans inspecting the work dir; not read back.
	_ = file.Truncate(0)
	_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+" "+time.Now().Format(time.RFC3339)+"\n"), 0)

	return file, true, nil
}

func unlockFile(file *os.File) {
	_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
	_ = file.Close()
}

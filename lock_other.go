//go:build !unix

package neobench

import "os"

// lockFile is a no-op without flock; locks are in-process only.
func lockFile(string) (*os.File, bool, error) {
	return nil, true, nil
}

func unlockFile(file *os.File) {
	_ = file.Close()
}

// Package pidfile implements an exclusive-create PID file, unlinked on
// clean shutdown, grounded on the original implementation's posix pid_file
// (O_CREAT|O_EXCL, mode 0644, "pid\n", unlink on close).
package pidfile

import (
	"fmt"
	"os"
	"strconv"
)

// PIDFile is an open, exclusively-created PID file.
type PIDFile struct {
	path string
	f    *os.File
}

// Create exclusively creates path and writes the current process id
// followed by a newline. It fails if path already exists.
func Create(path string) (*PIDFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("pidfile: create %s: %w", path, err)
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("pidfile: write %s: %w", path, err)
	}
	return &PIDFile{path: path, f: f}, nil
}

// Remove closes and unlinks the PID file.
func (p *PIDFile) Remove() error {
	closeErr := p.f.Close()
	removeErr := os.Remove(p.path)
	if removeErr != nil {
		return fmt.Errorf("pidfile: remove %s: %w", p.path, removeErr)
	}
	return closeErr
}

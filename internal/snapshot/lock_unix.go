//go:build unix

package snapshot

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func (m *Manager) acquireLock() error {
	lockPath := filepath.Join(m.dataDir, lockName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return ErrLocked
	}

	m.lockFile = f
	return nil
}

func (m *Manager) releaseLock() {
	if m.lockFile != nil {
		unix.Flock(int(m.lockFile.Fd()), unix.LOCK_UN)
		m.lockFile.Close()
		m.lockFile = nil
	}
}

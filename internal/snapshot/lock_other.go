//go:build !unix

package snapshot

import (
	"os"
	"path/filepath"
)

// Without flock the lock file is created exclusively and removed on release.
// A crashed process leaves it behind and it must be deleted by hand.
func (m *Manager) acquireLock() error {
	lockPath := filepath.Join(m.dataDir, lockName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrLocked
		}
		return err
	}
	m.lockFile = f
	return nil
}

func (m *Manager) releaseLock() {
	if m.lockFile != nil {
		name := m.lockFile.Name()
		m.lockFile.Close()
		os.Remove(name)
		m.lockFile = nil
	}
}

// Package lock provides file-based locking to prevent concurrent condgen
// runs against the same output directory.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"condgen/pkg/colors"
)

// Lock timing constants
const (
	lockTimeout      = 5 * time.Minute // Maximum time to wait for lock
	lockPollInterval = 5 * time.Second // How often to check if lock is available
	maxIdentifierLen = 100             // Maximum length for lock identifier
)

// sanitizeIdentifier cleans the identifier for safe use in a filename
func sanitizeIdentifier(id string) string {
	if id == "" {
		return "unknown"
	}
	// Remove path separators and control characters
	result := strings.Map(func(r rune) rune {
		if r < 32 || r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, id)
	// Limit length
	if len(result) > maxIdentifierLen {
		result = result[:maxIdentifierLen]
	}
	return result
}

// FileLock represents a file-based lock
type FileLock struct {
	file *os.File
	path string
}

// getLockDir returns the secure lock directory path (~/.condgen/locks/)
func getLockDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".condgen", "locks"), nil
}

// Acquire acquires the lock for an output directory, waiting if necessary.
// identifier names the target being locked (typically the output directory).
// Returns (nil, nil) when useLock is false.
func Acquire(identifier string, useLock bool) (*FileLock, error) {
	if !useLock {
		return nil, nil
	}

	lockDir, err := getLockDir()
	if err != nil {
		return nil, err
	}

	// Create lock directory with secure permissions (owner only)
	if err := os.MkdirAll(lockDir, 0700); err != nil {
		return nil, fmt.Errorf("could not create lock directory %s: %w", lockDir, err)
	}

	// Sanitize identifier for safe use
	identifier = sanitizeIdentifier(identifier)
	lockPath := filepath.Join(lockDir, identifier+".lock")
	lockInfoPath := lockPath + ".info"

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("could not open lock file %s: %w", lockPath, err)
	}

	// Try non-blocking lock first
	err = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		// Lock is held, wait for it
		holder := "another run"
		if data, err := os.ReadFile(lockInfoPath); err == nil {
			holder = strings.TrimSpace(string(data))
		}

		startWait := time.Now()
		fmt.Printf("%sWaiting for %s%s%s%s to finish...%s\n", colors.Dim, colors.Cyan, holder, colors.Reset, colors.Dim, colors.Reset)

		for {
			// Check for timeout
			if time.Since(startWait) > lockTimeout {
				lockFile.Close()
				return nil, fmt.Errorf("timed out waiting for lock after %v", lockTimeout)
			}
			time.Sleep(lockPollInterval)
			err = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
			if err == nil {
				break
			}
			elapsed := int(time.Since(startWait).Seconds())
			if data, err := os.ReadFile(lockInfoPath); err == nil {
				holder = strings.TrimSpace(string(data))
			}
			fmt.Printf("%s  Still waiting for %s%s%s%s... %ds%s\n", colors.Dim, colors.Cyan, holder, colors.Reset, colors.Dim, elapsed, colors.Reset)
		}
		elapsed := int(time.Since(startWait).Seconds())
		fmt.Printf("\r%sLock acquired%s %s(waited %ds for %s)%s     \n", colors.Green, colors.Reset, colors.Dim, elapsed, holder, colors.Reset)
	}

	// Write our info so others know who has the lock
	holderInfo := fmt.Sprintf("%s (pid %d)", identifier, os.Getpid())
	if err := os.WriteFile(lockInfoPath, []byte(holderInfo), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "%sWarning: could not write lock info: %v%s\n", colors.Dim, err, colors.Reset)
	}

	return &FileLock{file: lockFile, path: lockPath}, nil
}

// Release releases the file lock
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return fmt.Errorf("failed to unlock: %w", unlockErr)
	}
	return closeErr
}

// GetIdentifier returns the lock identifier for an output directory
func GetIdentifier(outputDir string) string {
	name := filepath.Base(outputDir)
	if name == "" || name == "." || name == string(filepath.Separator) {
		if cwd, err := os.Getwd(); err == nil {
			name = filepath.Base(cwd)
		} else {
			name = "unknown"
		}
	}
	return name
}

// Package lockfile implements the passwd-style advisory file lock used
// by the account tools: a claim file named <path>.<pid> holding the
// caller's pid is hardlinked to <path>.lock, and the hardlink either
// succeeds atomically or the file is already locked. On top of the lock
// it keeps a content snapshot per path so that an external modification
// is detected before anything is written.
package lockfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrLocked is returned when another process holds the lock file.
	ErrLocked = errors.New("file is locked by another process")
	// ErrDirty is returned when the file no longer matches the last
	// snapshot taken by this process.
	ErrDirty = errors.New("file was modified by another process")
)

// TrackedPath couples a table path with the content this process last
// knew to be on disk. Acquire checks the file against that snapshot
// before handing out a writable handle.
type TrackedPath struct {
	path   string
	last   string // whitespace-trimmed
	logger *zap.Logger
}

// Track locks path, snapshots its contents and releases the lock again.
func Track(path string, logger *zap.Logger) (*TrackedPath, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lf, err := lock(path, logger)
	if err != nil {
		return nil, err
	}
	content, err := lf.readAll()
	if err != nil {
		_ = lf.release()
		return nil, err
	}
	if err := lf.release(); err != nil {
		return nil, err
	}
	return &TrackedPath{path: path, last: strings.TrimSpace(content), logger: logger}, nil
}

// Path returns the tracked file path.
func (t *TrackedPath) Path() string { return t.path }

// Acquire takes the lock and verifies the file still matches the
// snapshot. On a mismatch the lock is released again and ErrDirty is
// returned before anything has been written.
func (t *TrackedPath) Acquire() (*LockedFile, error) {
	lf, err := lock(t.path, t.logger)
	if err != nil {
		return nil, err
	}
	fresh, err := lf.readAll()
	if err != nil {
		_ = lf.release()
		return nil, fmt.Errorf("read %s before modification: %w", t.path, err)
	}
	if strings.TrimSpace(fresh) != t.last {
		_ = lf.release()
		return nil, fmt.Errorf("%s changed on disk since it was last read, aborting to avoid corruption: %w", t.path, ErrDirty)
	}
	lf.tracked = t
	return lf, nil
}

// LockedFile is a writable handle to a locked table file. It is the
// only way the file may be mutated, and it must be Released on every
// exit path.
type LockedFile struct {
	tracked  *TrackedPath
	path     string
	lockPath string
	f        *os.File
	logger   *zap.Logger
}

func lock(path string, logger *zap.Logger) (*LockedFile, error) {
	pid := os.Getpid()
	claimPath := fmt.Sprintf("%s.%d", path, pid)
	lockPath := path + ".lock"
	logger.Debug("locking file", zap.String("path", path), zap.Int("pid", pid))

	if err := os.WriteFile(claimPath, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return nil, fmt.Errorf("write lock claim %s: %w", claimPath, err)
	}
	// The claim file is only a vehicle for the hardlink and goes away
	// no matter how the attempt ends.
	defer os.Remove(claimPath)

	if err := os.Link(claimPath, lockPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, holderError(lockPath)
		}
		return nil, fmt.Errorf("link %s to %s: %w", claimPath, lockPath, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &LockedFile{path: path, lockPath: lockPath, f: f, logger: logger}, nil
}

// holderError inspects an existing lock file. Probing whether the
// holding process is still alive, and reclaiming the lock if it is
// not, is deliberately not implemented; acquisition fails instead of
// guessing.
func holderError(lockPath string) error {
	raw, err := os.ReadFile(lockPath)
	if err != nil {
		return fmt.Errorf("%s exists but could not be read: %w", lockPath, ErrLocked)
	}
	content := strings.Trim(strings.TrimSpace(string(raw)), "\x00")
	pid, err := strconv.Atoi(content)
	if err != nil {
		return fmt.Errorf("%s holds an invalid pid %q: %w", lockPath, content, ErrLocked)
	}
	return fmt.Errorf("%s is held by pid %d, stale-lock reclamation is not implemented: %w", lockPath, pid, ErrLocked)
}

// Read returns the whole file content and leaves the offset at the
// start.
func (l *LockedFile) Read() (string, error) {
	return l.readAll()
}

func (l *LockedFile) readAll() (string, error) {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	b, err := io.ReadAll(l.f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", l.path, err)
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return string(b), nil
}

// ReplaceContents truncates the file and rewrites it in one pass,
// always with a trailing newline, then refreshes the snapshot so that
// later acquisitions see what was just written.
func (l *LockedFile) ReplaceContents(content string) error {
	if err := l.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate %s: %w", l.path, err)
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := l.f.WriteString(strings.TrimRight(content, "\n") + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", l.path, err)
	}
	if l.tracked != nil {
		l.tracked.last = strings.TrimSpace(content)
	}
	return nil
}

// Append writes one line at the end of the file. When a previous writer
// left the file without a trailing newline one is inserted first, so
// the appended record cannot merge with the last one.
func (l *LockedFile) Append(line string) error {
	end, err := l.f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if end > 0 {
		if _, err := l.f.Seek(-1, io.SeekEnd); err != nil {
			return err
		}
		var last [1]byte
		if _, err := io.ReadFull(l.f, last[:]); err != nil {
			return fmt.Errorf("read last byte of %s: %w", l.path, err)
		}
		if last[0] != '\n' {
			if _, err := l.f.WriteString("\n"); err != nil {
				return fmt.Errorf("append to %s: %w", l.path, err)
			}
		}
	}
	if _, err := l.f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append to %s: %w", l.path, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", l.path, err)
	}
	if l.tracked != nil {
		fresh, err := l.readAll()
		if err != nil {
			return err
		}
		l.tracked.last = strings.TrimSpace(fresh)
	}
	return nil
}

// Release removes the lock file. A lock that cannot be removed would
// deadlock every future accessor, so that failure is a panic rather
// than an error.
func (l *LockedFile) Release() {
	if err := l.release(); err != nil {
		panic(err)
	}
}

func (l *LockedFile) release() error {
	_ = l.f.Close()
	l.logger.Debug("removing lock", zap.String("lock", l.lockPath))
	if err := os.Remove(l.lockPath); err != nil {
		return fmt.Errorf("remove lock %s: %w", l.lockPath, err)
	}
	return nil
}

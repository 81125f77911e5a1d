package userdb

import (
	"go.uber.org/zap"

	"github.com/hnrobert/userdb/internal/lockfile"
)

// Standard system locations of the three tables.
const (
	EtcPasswd = "/etc/passwd"
	EtcShadow = "/etc/shadow"
	EtcGroup  = "/etc/group"
)

// Files references the three table paths and owns the change-tracking
// snapshot for each of them. A Files value is meant for single
// in-process ownership: callers must not run mutations on the same
// aggregate from multiple goroutines without external serialization.
type Files struct {
	passwd *lockfile.TrackedPath
	shadow *lockfile.TrackedPath
	group  *lockfile.TrackedPath
	logger *zap.Logger
}

// NewFiles locks each table once to take its initial snapshot.
func NewFiles(passwdPath, shadowPath, groupPath string, logger *zap.Logger) (*Files, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	passwd, err := lockfile.Track(passwdPath, logger)
	if err != nil {
		return nil, err
	}
	shadow, err := lockfile.Track(shadowPath, logger)
	if err != nil {
		return nil, err
	}
	group, err := lockfile.Track(groupPath, logger)
	if err != nil {
		return nil, err
	}
	return &Files{passwd: passwd, shadow: shadow, group: group, logger: logger}, nil
}

// DefaultFiles uses the standard /etc locations.
func DefaultFiles(logger *zap.Logger) (*Files, error) {
	return NewFiles(EtcPasswd, EtcShadow, EtcGroup, logger)
}

// lockAll acquires all three table locks, or none: a failure releases
// whatever was already held.
func (f *Files) lockAll() (passwd, shadow, group *lockfile.LockedFile, err error) {
	passwd, err = f.passwd.Acquire()
	if err != nil {
		return nil, nil, nil, err
	}
	shadow, err = f.shadow.Acquire()
	if err != nil {
		passwd.Release()
		return nil, nil, nil, err
	}
	group, err = f.group.Acquire()
	if err != nil {
		shadow.Release()
		passwd.Release()
		return nil, nil, nil, err
	}
	return passwd, shadow, group, nil
}

package userdb

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hnrobert/userdb/internal/lockfile"
)

// DeleteUserArgs names the user to delete and whether the home
// directory goes with it.
type DeleteUserArgs struct {
	Username   string
	RemoveHome bool
}

// CreateUserArgs configures a create-user call. Every field except the
// username keeps its default.
type CreateUserArgs struct {
	Username string
	// PasswordHash is an already-hashed shadow string; empty keeps the
	// locked default.
	PasswordHash string
}

// DeleteUser removes a user from all three tables and from the
// database. The user's primary group is deleted with them when they
// were its only member; a group another user still needs is never
// deleted. Without backing files only the in-memory state changes.
//
// There is no cross-file rollback: when a later write fails, earlier
// writes stay on disk and the returned error is the signal to run
// manual recovery.
func (db *DB) DeleteUser(args DeleteUserArgs) (*Numbered[User], error) {
	entry, ok := db.users[args.Username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", args.Username, ErrNotFound)
	}

	if db.files == nil {
		if args.RemoveHome {
			return nil, fmt.Errorf("cannot remove the home directory of %q: %w", args.Username, ErrFilesRequired)
		}
		db.logger.Warn("no backing files, removing the user from memory only",
			zap.String("user", args.Username))
		delete(db.users, args.Username)
		return entry, nil
	}

	lp, ls, lg, err := db.files.lockAll()
	if err != nil {
		return nil, err
	}
	defer lg.Release()
	defer ls.Release()
	defer lp.Release()

	if err := deleteFromPasswd(&entry.Value, lp); err != nil {
		return nil, err
	}
	if err := deleteFromShadow(&entry.Value, ls); err != nil {
		return nil, err
	}
	if args.RemoveHome {
		if err := deleteHome(&entry.Value); err != nil {
			return nil, err
		}
	}

	changed := false
	for _, m := range entry.Value.Groups() {
		g := m.Group
		if !db.hasGroup(g) {
			// Already dropped while handling an earlier edge.
			continue
		}
		switch m.Kind {
		case Primary:
			if len(g.Value.membersWithout(args.Username)) == 0 {
				db.logger.Info("deleting group, the removed user was its only member",
					zap.String("group", g.Value.Name), zap.Uint32("gid", g.Value.GID))
				db.removeGroup(g.Value.GID)
			} else {
				g.Value.RemoveMember(args.Username)
				db.logger.Warn("primary group was not empty and is kept, only the membership was removed",
					zap.Uint32("gid", g.Value.GID))
			}
		case Member:
			g.Value.RemoveMember(args.Username)
		}
		changed = true
	}
	if changed {
		if err := db.writeGroups(lg); err != nil {
			return nil, err
		}
	}

	delete(db.users, args.Username)
	return entry, nil
}

// NewUser creates a default-valued user bound to the requested
// username, appends its passwd and shadow lines to the locked files
// and inserts it into the database. Without backing files only the
// in-memory map changes.
func (db *DB) NewUser(args CreateUserArgs) (*Numbered[User], error) {
	if _, exists := db.users[args.Username]; exists {
		return nil, fmt.Errorf("the username %q already exists", args.Username)
	}
	u := defaultUser()
	u.SetName(args.Username)
	if args.PasswordHash != "" {
		u.SetPasswordHash(args.PasswordHash)
	}

	if db.files != nil {
		lp, ls, lg, err := db.files.lockAll()
		if err != nil {
			return nil, err
		}
		defer lg.Release()
		defer ls.Release()
		defer lp.Release()

		if err := lp.Append(u.String()); err != nil {
			return nil, fmt.Errorf("append to the passwd table: %w", err)
		}
		if s := u.Shadow(); s != nil {
			db.logger.Info("adding shadow entry", zap.String("user", args.Username))
			if err := ls.Append(s.String()); err != nil {
				return nil, fmt.Errorf("append to the shadow table, double-check it for corruption: %w", err)
			}
		} else {
			db.logger.Warn("omitting shadow entry", zap.String("user", args.Username))
		}
	} else {
		db.logger.Warn("no backing files, the new user cannot be stored durably",
			zap.String("user", args.Username))
	}

	entry := &Numbered[User]{Pos: newPos, Value: *u}
	if _, clash := db.users[args.Username]; clash {
		// The existence check passed while the files were locked.
		panic("user appeared in the map during creation")
	}
	db.users[args.Username] = entry
	return entry, nil
}

func deleteFromPasswd(u *User, lp *lockfile.LockedFile) error {
	content, err := lp.Read()
	if err != nil {
		return err
	}
	modified, err := deleteLine(content, u.fileLine())
	if err != nil {
		return fmt.Errorf("remove %q from the passwd table: %w", u.Name, err)
	}
	if err := lp.ReplaceContents(modified); err != nil {
		return fmt.Errorf("write the passwd table: %w", err)
	}
	return nil
}

func deleteFromShadow(u *User, ls *lockfile.LockedFile) error {
	s := u.Shadow()
	if s == nil {
		return nil
	}
	content, err := ls.Read()
	if err != nil {
		return err
	}
	modified, err := deleteLine(content, s.fileLine())
	if err != nil {
		return fmt.Errorf("remove %q from the shadow table: %w", u.Name, err)
	}
	if err := ls.ReplaceContents(modified); err != nil {
		return fmt.Errorf("write the shadow table, double-check it for corruption: %w", err)
	}
	return nil
}

func deleteHome(u *User) error {
	if u.Home == "" || u.Home == "/" {
		return fmt.Errorf("user %q has no removable home directory", u.Name)
	}
	if err := os.RemoveAll(u.Home); err != nil {
		return fmt.Errorf("remove home directory %s: %w", u.Home, err)
	}
	return nil
}

// writeGroups serializes the whole in-memory group list into the locked
// group file. Every written line becomes the group's new source line,
// so later removals match what is now on disk.
func (db *DB) writeGroups(lg *lockfile.LockedFile) error {
	lines := make([]string, 0, len(db.groups))
	for _, g := range db.groups {
		g.Value.Source = g.Value.String()
		lines = append(lines, g.Value.Source)
	}
	if err := lg.ReplaceContents(strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("write the group table, double-check it for corruption: %w", err)
	}
	return nil
}

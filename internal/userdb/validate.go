package userdb

import "regexp"

// Usernames and groupnames follow the Ubuntu rules: lowercase letters,
// digits, underscore and dash, starting with a letter or underscore,
// at most 32 characters.
var nameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

func isNameValid(name string) bool {
	return nameRe.MatchString(name)
}

// IsUIDFree reports whether no user currently has the given uid. It is
// a freedom check only, uids carry no syntax.
func (db *DB) IsUIDFree(uid uint32) bool {
	for _, u := range db.users {
		if u.Value.UID == uid {
			return false
		}
	}
	return true
}

// IsUsernameValidAndFree reports whether the name is syntactically
// valid and not taken by any user.
func (db *DB) IsUsernameValidAndFree(name string) bool {
	return isNameValid(name) && db.UserByName(name) == nil
}

// IsGIDFree reports whether no group currently has the given gid.
func (db *DB) IsGIDFree(gid uint32) bool {
	for _, g := range db.groups {
		if g.Value.GID == gid {
			return false
		}
	}
	return true
}

// IsGroupnameValidAndFree reports whether the name is syntactically
// valid and not taken by any group.
func (db *DB) IsGroupnameValidAndFree(name string) bool {
	return isNameValid(name) && db.GroupByName(name) == nil
}

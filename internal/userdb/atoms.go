package userdb

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// AtomKind enumerates every single-line transform on a table's text
// content. The set is closed; Apply is the single dispatcher.
type AtomKind int

const (
	AddUserLine AtomKind = iota
	AddShadowLine
	AddGroupLine
	DeleteUserLine
	DeleteShadowLine
	DeleteGroupLine
)

// Atom is one single-line add or delete transform on one table's
// content. Delete atoms fail unless exactly one line was removed.
type Atom struct {
	Kind  AtomKind
	User  *User  // user and shadow atoms
	Group *Group // group atoms
}

// Apply runs the atom against one table's content and returns the new
// content.
func (a Atom) Apply(content string) (string, error) {
	switch a.Kind {
	case AddUserLine:
		return addLine(content, a.User.String()), nil
	case AddShadowLine:
		s := a.User.Shadow()
		if s == nil {
			return "", errors.New("the user has no shadow record")
		}
		return addLine(content, s.String()), nil
	case AddGroupLine:
		return addLine(content, a.Group.String()), nil
	case DeleteUserLine:
		out, err := deleteLine(content, a.User.fileLine())
		if err != nil {
			return "", fmt.Errorf("failed to delete the user: %w", err)
		}
		return out, nil
	case DeleteShadowLine:
		s := a.User.Shadow()
		if s == nil {
			return "", errors.New("the user has no shadow record")
		}
		out, err := deleteLine(content, s.fileLine())
		if err != nil {
			return "", fmt.Errorf("failed to delete the user's shadow: %w", err)
		}
		return out, nil
	case DeleteGroupLine:
		out, err := deleteLine(content, a.Group.fileLine())
		if err != nil {
			return "", fmt.Errorf("failed to delete the group: %w", err)
		}
		return out, nil
	}
	panic(fmt.Sprintf("unknown atom kind %d", a.Kind))
}

// apply routes the atom to the table it belongs to within a bundle.
func (a Atom) apply(fc FileContents) (FileContents, error) {
	var err error
	switch a.Kind {
	case AddUserLine, DeleteUserLine:
		fc.Passwd, err = a.Apply(fc.Passwd)
	case AddShadowLine, DeleteShadowLine:
		fc.Shadow, err = a.Apply(fc.Shadow)
	default:
		fc.Group, err = a.Apply(fc.Group)
	}
	return fc, err
}

// FileContents is the in-memory bundle of all three table contents an
// action operates on.
type FileContents struct {
	Passwd string
	Shadow string
	Group  string
}

// Action composes atoms into one logical user or group level
// operation. It is applied to the bundle as a whole: the updated
// bundle is returned only if every atom succeeded, so no partial
// action effect can be persisted.
type Action struct {
	Name  string
	Atoms []Atom
}

// Apply runs every atom in order over a copy of the bundle.
func (act Action) Apply(fc FileContents) (FileContents, error) {
	out := fc
	for _, a := range act.Atoms {
		var err error
		out, err = a.apply(out)
		if err != nil {
			return FileContents{}, fmt.Errorf("%s: %w", act.Name, err)
		}
	}
	return out, nil
}

// Validate checks the action against the live database before it is
// applied: names must be valid and free for additions, and deletions
// must target existing records.
func (act Action) Validate(db *DB) error {
	for _, a := range act.Atoms {
		switch a.Kind {
		case AddUserLine:
			if !db.IsUsernameValidAndFree(a.User.Name) {
				return fmt.Errorf("username %q is not valid and free", a.User.Name)
			}
		case AddGroupLine:
			if !db.IsGroupnameValidAndFree(a.Group.Name) {
				return fmt.Errorf("groupname %q is not valid and free", a.Group.Name)
			}
			if !db.IsGIDFree(a.Group.GID) {
				return fmt.Errorf("gid %d is already in use", a.Group.GID)
			}
		case DeleteUserLine:
			if db.UserByName(a.User.Name) == nil {
				return fmt.Errorf("user %q: %w", a.User.Name, ErrNotFound)
			}
		case DeleteGroupLine:
			if db.GroupByName(a.Group.Name) == nil {
				return fmt.Errorf("group %q: %w", a.Group.Name, ErrNotFound)
			}
		}
	}
	return nil
}

// NewAddUserAction adds a user's passwd and shadow lines together with
// its primary group's line.
func NewAddUserAction(u *User, g *Group) Action {
	return Action{
		Name: "add user",
		Atoms: []Atom{
			{Kind: AddUserLine, User: u},
			{Kind: AddShadowLine, User: u},
			{Kind: AddGroupLine, Group: g},
		},
	}
}

// NewAddGroupAction adds a single group line.
func NewAddGroupAction(g *Group) Action {
	return Action{Name: "add group", Atoms: []Atom{{Kind: AddGroupLine, Group: g}}}
}

// NewDeleteGroupAction removes a single group line.
func NewDeleteGroupAction(g *Group) Action {
	return Action{Name: "delete group", Atoms: []Atom{{Kind: DeleteGroupLine, Group: g}}}
}

// NewGroup validates and creates a group, writing its line to the
// locked group file before the in-memory list changes.
func (db *DB) NewGroup(name string, gid uint32) (*Numbered[Group], error) {
	g := &Group{Name: name, Password: "x", GID: gid}
	g.Source = g.String()
	act := NewAddGroupAction(g)
	if err := act.Validate(db); err != nil {
		return nil, err
	}
	entry := &Numbered[Group]{Pos: newPos, Value: *g}

	if db.files == nil {
		db.logger.Warn("no backing files, the new group cannot be stored durably",
			zap.String("group", name))
		db.groups = append(db.groups, entry)
		return entry, nil
	}

	lg, err := db.files.group.Acquire()
	if err != nil {
		return nil, err
	}
	defer lg.Release()

	content, err := lg.Read()
	if err != nil {
		return nil, err
	}
	out, err := act.Apply(FileContents{Group: content})
	if err != nil {
		return nil, err
	}
	if err := lg.ReplaceContents(out.Group); err != nil {
		return nil, fmt.Errorf("write the group table, double-check it for corruption: %w", err)
	}
	db.groups = append(db.groups, entry)
	return entry, nil
}

// DeleteGroup validates and removes a group, deleting its line from
// the locked group file before the in-memory list changes. The removal
// matches the group's known file line exactly and fails with
// ErrPartialWrite instead of guessing when it does not match.
func (db *DB) DeleteGroup(name string) (*Numbered[Group], error) {
	entry := db.GroupByName(name)
	if entry == nil {
		return nil, fmt.Errorf("group %q: %w", name, ErrNotFound)
	}
	act := NewDeleteGroupAction(&entry.Value)
	if err := act.Validate(db); err != nil {
		return nil, err
	}

	if db.files == nil {
		db.logger.Warn("no backing files, removing the group from memory only",
			zap.String("group", name))
		db.removeGroup(entry.Value.GID)
		return entry, nil
	}

	lg, err := db.files.group.Acquire()
	if err != nil {
		return nil, err
	}
	defer lg.Release()

	content, err := lg.Read()
	if err != nil {
		return nil, err
	}
	out, err := act.Apply(FileContents{Group: content})
	if err != nil {
		return nil, err
	}
	if err := lg.ReplaceContents(out.Group); err != nil {
		return nil, fmt.Errorf("write the group table, double-check it for corruption: %w", err)
	}
	db.removeGroup(entry.Value.GID)
	return entry, nil
}

// addLine appends one record line, guarding against content that does
// not end in a newline.
func addLine(content, line string) string {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + line + "\n"
}

// deleteLine filters target out of content by literal line match. It
// fails unless exactly one line was removed: zero matches mean the
// record is not where it should be, more than one means duplicates,
// and both leave memory and disk in disagreement.
func deleteLine(content, target string) (string, error) {
	lines := splitContent(content)
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != target {
			kept = append(kept, l)
		}
	}
	if removed := len(lines) - len(kept); removed != 1 {
		return "", fmt.Errorf("removed %d lines matching %q: %w", removed, target, ErrPartialWrite)
	}
	return strings.Join(kept, "\n"), nil
}

func splitContent(content string) []string {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

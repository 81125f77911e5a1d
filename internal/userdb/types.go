// Package userdb reads and mutates the three local identity tables
// (passwd, shadow, group) as one cross-referenced database. Loading
// parses every line into a record that keeps its verbatim source text
// and line position, links every user to its primary and secondary
// groups and to its shadow record, and mutations rewrite the locked
// files before the in-memory state is touched.
package userdb

import (
	"math"
	"time"

	"github.com/hnrobert/userdb/internal/gecos"
)

// Position tracks where a record lives in its table file.
type Position struct {
	kind positionKind
	line int
}

type positionKind int

const (
	posAt positionKind = iota
	posNotInFile
	posNewToFile
	posNotAssignedYet
)

// At is the position of a record found on a known line.
func At(line int) Position { return Position{kind: posAt, line: line} }

// NotInFile marks a record that deliberately has no backing file.
func NotInFile() Position { return Position{kind: posNotInFile} }

// NewToFile marks a record that has not been written to any line yet.
func NewToFile() Position { return Position{kind: posNewToFile} }

// NotAssignedYet marks a record whose position has not been decided.
func NotAssignedYet() Position { return Position{kind: posNotAssignedYet} }

// Line returns the line index when the record is at a known line.
func (p Position) Line() (int, bool) {
	return p.line, p.kind == posAt
}

// Compare is a partial order. It is defined between two known lines and
// between a new record and a known line (new records sort after
// existing ones); every comparison involving NotInFile or
// NotAssignedYet is undefined and reported as not ok.
func (p Position) Compare(o Position) (cmp int, ok bool) {
	switch {
	case p.kind == posAt && o.kind == posAt:
		switch {
		case p.line < o.line:
			return -1, true
		case p.line > o.line:
			return 1, true
		}
		return 0, true
	case p.kind == posNewToFile && o.kind == posAt:
		return 1, true
	case p.kind == posAt && o.kind == posNewToFile:
		return -1, true
	}
	return 0, false
}

func (p Position) String() string {
	switch p.kind {
	case posAt:
		return "at line " + itoa(p.line)
	case posNotInFile:
		return "not in file"
	case posNewToFile:
		return "new to file"
	}
	return "not assigned yet"
}

// Numbered wraps a record with the line index it was parsed from, for
// order preserving round trips and line based deletion. Ordering is by
// position alone.
type Numbered[T any] struct {
	Pos   int
	Value T
}

// Less orders two numbered records by their original line index.
func (n *Numbered[T]) Less(o *Numbered[T]) bool { return n.Pos < o.Pos }

// newPos is the position index given to records that are not on any
// line yet; it sorts after every real line.
const newPos = math.MaxInt

// MembershipKind distinguishes a user's primary group (the group whose
// gid equals the user's own) from an explicit member listing.
type MembershipKind int

const (
	Primary MembershipKind = iota
	Member
)

func (k MembershipKind) String() string {
	if k == Primary {
		return "Primary"
	}
	return "Member"
}

// Membership is one edge from a user to a group. The group cell is
// shared with the database's group list, so membership changes are
// visible to every holder.
type Membership struct {
	Kind  MembershipKind
	Group *Numbered[Group]
}

// PasswordKind says where a user's password material lives.
type PasswordKind int

const (
	// PasswordEncrypted keeps the hash in the passwd line itself.
	PasswordEncrypted PasswordKind = iota
	// PasswordShadow points at a record in the shadow table.
	PasswordShadow
	// PasswordDisabled means the account cannot log in with a password.
	PasswordDisabled
)

// Password is the password field of a passwd record.
type Password struct {
	Kind   PasswordKind
	Crypt  string            // PasswordEncrypted only
	Shadow *Numbered[Shadow] // PasswordShadow only
}

// User is one record of the passwd table plus its cross references.
type User struct {
	// Source is the verbatim line the record was parsed from; removal
	// from the file is by exact text match on it.
	Source   string
	Pos      Position
	Name     string
	Password Password
	UID      uint32
	GID      uint32
	Gecos    gecos.Gecos
	Home     string
	Shell    string

	groups []Membership
}

// Shadow returns the user's shadow record, nil when the password is
// kept in the passwd line or disabled.
func (u *User) Shadow() *Shadow {
	if u.Password.Kind != PasswordShadow || u.Password.Shadow == nil {
		return nil
	}
	return &u.Password.Shadow.Value
}

// Groups lists the user's memberships in the order they were linked.
func (u *User) Groups() []Membership { return u.groups }

func (u *User) addGroup(kind MembershipKind, g *Numbered[Group]) {
	u.groups = append(u.groups, Membership{Kind: kind, Group: g})
}

// SetName renames the user and keeps the shadow record's username in
// sync.
func (u *User) SetName(name string) {
	u.Name = name
	if s := u.Shadow(); s != nil {
		s.Name = name
	}
}

// DisablePassword locks the account out of password login.
func (u *User) DisablePassword() {
	u.Password = Password{Kind: PasswordDisabled}
}

// SetPasswordHash stores an already-hashed password in the user's
// shadow record, or inline when no shadow record exists.
func (u *User) SetPasswordHash(hash string) {
	if s := u.Shadow(); s != nil {
		s.Password = hash
		return
	}
	u.Password = Password{Kind: PasswordEncrypted, Crypt: hash}
}

// Shadow is one record of the shadow table. Date fields are calendar
// days, duration fields day counts; a nil field renders as the empty
// string so that parsing and formatting stay inverse operations.
type Shadow struct {
	Source           string
	Name             string
	Password         string
	LastChange       *time.Time
	EarliestChange   *time.Time
	LatestChange     *time.Time
	WarnPeriod       *int64
	Deactivated      *int64
	DeactivatedSince *int64
	Extensions       *uint64
}

// Group is one record of the group table. The cell is shared by the
// database's group list and by every user that references it.
type Group struct {
	Source   string
	Name     string
	Password string
	GID      uint32
	Members  []string
}

// RemoveMember drops every occurrence of name from the member list.
func (g *Group) RemoveMember(name string) {
	g.Members = g.membersWithout(name)
}

// AppendMember adds name to the member list.
func (g *Group) AppendMember(name string) {
	g.Members = append(g.Members, name)
}

// HasMember reports whether name is in the member list.
func (g *Group) HasMember(name string) bool {
	for _, m := range g.Members {
		if m == name {
			return true
		}
	}
	return false
}

// fileLine is the text a removal matches against: the verbatim source
// line when the record came from a file, the formatted line otherwise.
func (u *User) fileLine() string {
	if u.Source != "" {
		return u.Source
	}
	return u.String()
}

func (s *Shadow) fileLine() string {
	if s.Source != "" {
		return s.Source
	}
	return s.String()
}

func (g *Group) fileLine() string {
	if g.Source != "" {
		return g.Source
	}
	return g.String()
}

func (g *Group) membersWithout(name string) []string {
	var out []string
	for _, m := range g.Members {
		if m != name {
			out = append(out, m)
		}
	}
	return out
}

// defaultUser is the template a create-user call starts from: locked
// default shadow entry, uid/gid 1001, no home, nologin shell.
func defaultUser() *User {
	const shadowLine = "defaultusername:!!:0:0:99999:7:::"
	sh, err := ParseShadow(shadowLine)
	if err != nil {
		panic("default shadow line does not parse: " + err.Error())
	}
	return &User{
		Pos:      NewToFile(),
		Name:     "defaultusername",
		Password: Password{Kind: PasswordShadow, Shadow: &Numbered[Shadow]{Pos: newPos, Value: sh}},
		UID:      1001,
		GID:      1001,
		Gecos:    gecos.Parse(""),
		Home:     "/",
		Shell:    "/bin/nologin",
	}
}

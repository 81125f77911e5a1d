package userdb

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// DB is the cross-referenced in-memory database over the three tables.
// When files is nil the database is in-memory only and mutations are
// not durable.
type DB struct {
	files  *Files
	users  map[string]*Numbered[User]
	groups []*Numbered[Group]
	logger *zap.Logger
}

// ImportStrings builds a database from raw table contents, without any
// backing files.
func ImportStrings(passwdContent, shadowContent, groupContent string, logger *zap.Logger) (*DB, error) {
	return build(passwdContent, shadowContent, groupContent, nil, logger)
}

// LoadFiles locks and reads the three tables referenced by files and
// builds the database from them. The locks are released before the
// call returns; mutations re-acquire them.
func LoadFiles(files *Files, logger *zap.Logger) (*DB, error) {
	lp, ls, lg, err := files.lockAll()
	if err != nil {
		return nil, err
	}
	defer lg.Release()
	defer ls.Release()
	defer lp.Release()

	passwdContent, err := lp.Read()
	if err != nil {
		return nil, err
	}
	shadowContent, err := ls.Read()
	if err != nil {
		return nil, err
	}
	groupContent, err := lg.Read()
	if err != nil {
		return nil, err
	}
	return build(passwdContent, shadowContent, groupContent, files, logger)
}

func build(passwdContent, shadowContent, groupContent string, files *Files, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	userList, err := parseLines(passwdContent, ParseUser)
	if err != nil {
		return nil, fmt.Errorf("passwd table: %w", err)
	}
	shadows, err := parseLines(shadowContent, ParseShadow)
	if err != nil {
		return nil, fmt.Errorf("shadow table: %w", err)
	}
	groups, err := parseLines(groupContent, ParseGroup)
	if err != nil {
		return nil, fmt.Errorf("group table: %w", err)
	}

	db := &DB{
		files:  files,
		users:  make(map[string]*Numbered[User], len(userList)),
		groups: groups,
		logger: logger,
	}
	for _, u := range userList {
		u.Value.Pos = At(u.Pos)
		db.users[u.Value.Name] = u
	}

	// The shadow table must reference only existing users.
	for _, s := range shadows {
		u, ok := db.users[s.Value.Name]
		if !ok {
			return nil, fmt.Errorf("shadow entry for %q has no passwd entry: %w", s.Value.Name, ErrMalformedRecord)
		}
		u.Value.Password = Password{Kind: PasswordShadow, Shadow: s}
	}

	db.link()
	return db, nil
}

// link builds the user-to-group graph: a Member edge for every explicit
// member listing, then a Primary edge when exactly one group shares the
// user's gid. Anything but exactly one match is a data-integrity
// anomaly; it is logged and the load continues with an incomplete
// Primary edge.
func (db *DB) link() {
	for _, g := range db.groups {
		for _, name := range g.Value.Members {
			if u, ok := db.users[name]; ok {
				u.Value.addGroup(Member, g)
			}
		}
	}

	for _, name := range db.sortedUserNames() {
		u := db.users[name]
		var matches []*Numbered[Group]
		for _, g := range db.groups {
			if g.Value.GID == u.Value.GID {
				matches = append(matches, g)
			}
		}
		if len(matches) != 1 {
			db.logger.Error("expected exactly one group with the user's gid",
				zap.String("user", u.Value.Name),
				zap.Uint32("gid", u.Value.GID),
				zap.Int("matches", len(matches)))
			continue
		}
		g := matches[0]
		if !g.Value.HasMember(u.Value.Name) {
			g.Value.AppendMember(u.Value.Name)
		}
		u.Value.addGroup(Primary, g)
	}
}

func (db *DB) sortedUserNames() []string {
	names := make([]string, 0, len(db.users))
	for name := range db.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllUsers lists every user, ordered by uid.
func (db *DB) AllUsers() []*User {
	out := make([]*User, 0, len(db.users))
	for _, name := range db.sortedUserNames() {
		out = append(out, &db.users[name].Value)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// AllGroups lists every group in file order.
func (db *DB) AllGroups() []*Numbered[Group] {
	out := make([]*Numbered[Group], len(db.groups))
	copy(out, db.groups)
	return out
}

// UserByName looks a user up by username, nil when absent.
func (db *DB) UserByName(name string) *User {
	if u, ok := db.users[name]; ok {
		return &u.Value
	}
	return nil
}

// UserByID looks a user up by uid, nil when absent.
func (db *DB) UserByID(uid uint32) *User {
	for _, u := range db.users {
		if u.Value.UID == uid {
			return &u.Value
		}
	}
	return nil
}

// GroupByName looks a group up by name, nil when absent.
func (db *DB) GroupByName(name string) *Numbered[Group] {
	for _, g := range db.groups {
		if g.Value.Name == name {
			return g
		}
	}
	return nil
}

// GroupByID looks a group up by gid, nil when absent.
func (db *DB) GroupByID(gid uint32) *Numbered[Group] {
	for _, g := range db.groups {
		if g.Value.GID == gid {
			return g
		}
	}
	return nil
}

func (db *DB) hasGroup(g *Numbered[Group]) bool {
	for _, have := range db.groups {
		if have == g {
			return true
		}
	}
	return false
}

func (db *DB) removeGroup(gid uint32) {
	kept := db.groups[:0]
	for _, g := range db.groups {
		if g.Value.GID != gid {
			kept = append(kept, g)
		}
	}
	db.groups = kept
}

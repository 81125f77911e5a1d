package userdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hnrobert/userdb/internal/days"
	"github.com/hnrobert/userdb/internal/gecos"
)

func parseColonLine(line string) []string {
	// Keep trailing empty fields.
	return strings.Split(line, ":")
}

func parseID(field, ctx string) (uint32, error) {
	n, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q in %s: %w", field, ctx, err)
	}
	return uint32(n), nil
}

// ParseUser parses one line of the passwd table. Exactly seven colon
// separated fields are required.
func ParseUser(line string) (User, error) {
	parts := parseColonLine(line)
	if len(parts) != 7 {
		return User{}, fmt.Errorf("passwd line has %d fields, want 7: %w", len(parts), ErrMalformedRecord)
	}
	if !isNameValid(parts[0]) {
		return User{}, fmt.Errorf("invalid username %q: %w", parts[0], ErrMalformedRecord)
	}
	uid, err := parseID(parts[2], "passwd.uid")
	if err != nil {
		return User{}, err
	}
	gid, err := parseID(parts[3], "passwd.gid")
	if err != nil {
		return User{}, err
	}
	return User{
		Source:   line,
		Pos:      NotAssignedYet(),
		Name:     parts[0],
		Password: Password{Kind: PasswordEncrypted, Crypt: parts[1]},
		UID:      uid,
		GID:      gid,
		Gecos:    gecos.Parse(parts[4]),
		Home:     parts[5],
		Shell:    parts[6],
	}, nil
}

// ParseShadow parses one line of the shadow table. Exactly nine colon
// separated fields are required; empty date and duration fields mean
// the value is absent.
func ParseShadow(line string) (Shadow, error) {
	parts := parseColonLine(line)
	if len(parts) != 9 {
		return Shadow{}, fmt.Errorf("shadow line has %d fields, want 9: %w", len(parts), ErrMalformedRecord)
	}
	if !isNameValid(parts[0]) {
		return Shadow{}, fmt.Errorf("invalid username %q: %w", parts[0], ErrMalformedRecord)
	}
	s := Shadow{
		Source:   line,
		Name:     parts[0],
		Password: parts[1],
	}
	var err error
	if s.LastChange, err = days.ParseDate(parts[2]); err != nil {
		return Shadow{}, fmt.Errorf("shadow.last_change: %w", err)
	}
	if s.EarliestChange, err = days.ParseDate(parts[3]); err != nil {
		return Shadow{}, fmt.Errorf("shadow.min: %w", err)
	}
	if s.LatestChange, err = days.ParseDate(parts[4]); err != nil {
		return Shadow{}, fmt.Errorf("shadow.max: %w", err)
	}
	if s.WarnPeriod, err = days.ParseDuration(parts[5]); err != nil {
		return Shadow{}, fmt.Errorf("shadow.warn: %w", err)
	}
	if s.Deactivated, err = days.ParseDuration(parts[6]); err != nil {
		return Shadow{}, fmt.Errorf("shadow.inactive: %w", err)
	}
	if s.DeactivatedSince, err = days.ParseDuration(parts[7]); err != nil {
		return Shadow{}, fmt.Errorf("shadow.expire: %w", err)
	}
	if parts[8] != "" {
		n, err := strconv.ParseUint(parts[8], 10, 64)
		if err != nil {
			return Shadow{}, fmt.Errorf("shadow.flag: invalid value %q: %w", parts[8], err)
		}
		s.Extensions = &n
	}
	return s, nil
}

// ParseGroup parses one line of the group table: exactly four colon
// separated fields, the last a comma separated member list.
func ParseGroup(line string) (Group, error) {
	parts := parseColonLine(line)
	if len(parts) != 4 {
		return Group{}, fmt.Errorf("group line has %d fields, want 4: %w", len(parts), ErrMalformedRecord)
	}
	if !isNameValid(parts[0]) {
		return Group{}, fmt.Errorf("invalid groupname %q: %w", parts[0], ErrMalformedRecord)
	}
	gid, err := parseID(parts[2], "group.gid")
	if err != nil {
		return Group{}, err
	}
	g := Group{
		Source:   line,
		Name:     parts[0],
		Password: parts[1],
		GID:      gid,
	}
	if parts[3] != "" {
		g.Members = strings.Split(parts[3], ",")
	}
	return g, nil
}

// parseLines splits content into lines, parses each one and tags it
// with its index. The first malformed line fails the whole load; there
// is no lenient mode.
func parseLines[T any](content string, parse func(string) (T, error)) ([]*Numbered[T], error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	out := make([]*Numbered[T], 0, len(lines))
	for i, line := range lines {
		v, err := parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, &Numbered[T]{Pos: i, Value: v})
	}
	return out, nil
}

// Package gecos parses the comment field of a passwd record. The field
// is either a plain comment or a comma separated detail list (full
// name, room, work phone, home phone, extras).
package gecos

import "strings"

// Detail is the structured form of the comment field.
type Detail struct {
	FullName  string
	Room      string
	PhoneWork string
	PhoneHome string
	Other     []string
}

// Gecos is a passwd comment field. When Detail is nil the field is a
// plain comment.
type Gecos struct {
	Detail  *Detail
	Comment string
}

// Parse is total over well formed field strings: anything with fewer
// than four sub-fields is kept as a plain comment.
func Parse(field string) Gecos {
	parts := strings.Split(field, ",")
	if len(parts) < 4 {
		return Gecos{Comment: field}
	}
	d := &Detail{
		FullName:  parts[0],
		Room:      parts[1],
		PhoneWork: parts[2],
		PhoneHome: parts[3],
	}
	if len(parts) > 4 {
		d.Other = parts[4:]
	}
	return Gecos{Detail: d}
}

func (g Gecos) String() string {
	if g.Detail == nil {
		return g.Comment
	}
	d := g.Detail
	out := strings.Join([]string{d.FullName, d.Room, d.PhoneWork, d.PhoneHome}, ",")
	if d.Other != nil {
		out += "," + strings.Join(d.Other, ",")
	}
	return out
}

// FullName returns the full name sub-field when the detail form is in
// use.
func (g Gecos) FullName() string {
	if g.Detail == nil {
		return ""
	}
	return g.Detail.FullName
}

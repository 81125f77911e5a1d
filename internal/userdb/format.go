package userdb

import (
	"strconv"
	"strings"

	"github.com/hnrobert/userdb/internal/days"
)

// Small helper to avoid strconv in hot formatting.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [32]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + (n % 10))
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func utoa(n uint32) string { return itoa(int(n)) }

func (p Password) String() string {
	switch p.Kind {
	case PasswordShadow:
		return "x"
	case PasswordDisabled:
		return "!"
	}
	return p.Crypt
}

// String renders the record back into its passwd line. Formatting a
// just-parsed record reproduces the source line exactly.
func (u *User) String() string {
	var b strings.Builder
	b.WriteString(u.Name)
	b.WriteByte(':')
	b.WriteString(u.Password.String())
	b.WriteByte(':')
	b.WriteString(utoa(u.UID))
	b.WriteByte(':')
	b.WriteString(utoa(u.GID))
	b.WriteByte(':')
	b.WriteString(u.Gecos.String())
	b.WriteByte(':')
	b.WriteString(u.Home)
	b.WriteByte(':')
	b.WriteString(u.Shell)
	return b.String()
}

// String renders the record back into its shadow line; absent fields
// render as empty strings.
func (s *Shadow) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte(':')
	b.WriteString(s.Password)
	b.WriteByte(':')
	b.WriteString(days.FormatDate(s.LastChange))
	b.WriteByte(':')
	b.WriteString(days.FormatDate(s.EarliestChange))
	b.WriteByte(':')
	b.WriteString(days.FormatDate(s.LatestChange))
	b.WriteByte(':')
	b.WriteString(days.FormatDuration(s.WarnPeriod))
	b.WriteByte(':')
	b.WriteString(days.FormatDuration(s.Deactivated))
	b.WriteByte(':')
	b.WriteString(days.FormatDuration(s.DeactivatedSince))
	b.WriteByte(':')
	if s.Extensions != nil {
		b.WriteString(strconv.FormatUint(*s.Extensions, 10))
	}
	return b.String()
}

// String renders the record back into its group line.
func (g *Group) String() string {
	var b strings.Builder
	b.WriteString(g.Name)
	b.WriteByte(':')
	b.WriteString(g.Password)
	b.WriteByte(':')
	b.WriteString(utoa(g.GID))
	b.WriteByte(':')
	b.WriteString(strings.Join(g.Members, ","))
	return b.String()
}

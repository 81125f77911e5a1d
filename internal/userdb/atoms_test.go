package userdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDeleteLine(t *testing.T) {
	t.Run("removes exactly one line", func(t *testing.T) {
		out, err := deleteLine("a:1\nb:2\nc:3\n", "b:2")
		require.NoError(t, err)
		assert.Equal(t, "a:1\nc:3", out)
	})

	t.Run("zero matches fail", func(t *testing.T) {
		_, err := deleteLine("a:1\nb:2\n", "c:3")
		require.ErrorIs(t, err, ErrPartialWrite)
	})

	t.Run("duplicate matches fail", func(t *testing.T) {
		_, err := deleteLine("a:1\na:1\n", "a:1")
		require.ErrorIs(t, err, ErrPartialWrite)
	})
}

func TestAddLine(t *testing.T) {
	assert.Equal(t, "a:1\n", addLine("", "a:1"))
	assert.Equal(t, "a:1\nb:2\n", addLine("a:1\n", "b:2"))
	// A missing trailing newline must not merge records.
	assert.Equal(t, "a:1\nb:2\n", addLine("a:1", "b:2"))
}

func TestAtomApply(t *testing.T) {
	g, err := ParseGroup("teste:x:1002:test,teste")
	require.NoError(t, err)

	t.Run("delete is not idempotent", func(t *testing.T) {
		atom := Atom{Kind: DeleteGroupLine, Group: &g}
		out, err := atom.Apply("teste:x:1002:test,teste\n")
		require.NoError(t, err)
		assert.Equal(t, "", out)

		_, err = atom.Apply(out)
		require.ErrorIs(t, err, ErrPartialWrite)
	})

	t.Run("add then delete round trips", func(t *testing.T) {
		add := Atom{Kind: AddGroupLine, Group: &g}
		out, err := add.Apply("root:x:0:\n")
		require.NoError(t, err)
		assert.Equal(t, "root:x:0:\nteste:x:1002:test,teste\n", out)

		del := Atom{Kind: DeleteGroupLine, Group: &g}
		out, err = del.Apply(out)
		require.NoError(t, err)
		assert.Equal(t, "root:x:0:", out)
	})

	t.Run("shadow atom without a shadow record fails", func(t *testing.T) {
		u, err := ParseUser("plain:secret:1005:1005::/home/plain:/bin/false")
		require.NoError(t, err)
		_, err = Atom{Kind: AddShadowLine, User: &u}.Apply("")
		require.Error(t, err)
	})
}

func TestActionApply(t *testing.T) {
	u := defaultUser()
	u.SetName("test2")
	g := Group{Name: "test2", Password: "x", GID: 1010}

	t.Run("every atom lands in its table", func(t *testing.T) {
		act := NewAddUserAction(u, &g)
		out, err := act.Apply(FileContents{Passwd: testPasswd, Shadow: testShadow, Group: testGroup})
		require.NoError(t, err)
		assert.Contains(t, out.Passwd, "test2:x:1001:1001::/:/bin/nologin\n")
		assert.Contains(t, out.Shadow, "test2:!!:0:0:99999:7:::\n")
		assert.Contains(t, out.Group, "test2:x:1010:\n")
	})

	t.Run("one failing atom discards the whole bundle", func(t *testing.T) {
		act := Action{
			Name: "add then break",
			Atoms: []Atom{
				{Kind: AddGroupLine, Group: &g},
				{Kind: DeleteUserLine, User: u},
			},
		}
		out, err := act.Apply(FileContents{Passwd: testPasswd, Group: testGroup})
		require.ErrorIs(t, err, ErrPartialWrite)
		assert.Contains(t, err.Error(), "add then break")
		assert.Equal(t, FileContents{}, out)
	})
}

func TestActionValidate(t *testing.T) {
	db := testDB(t)

	t.Run("additions need valid and free names", func(t *testing.T) {
		u := defaultUser()
		u.SetName("test")
		require.Error(t, NewAddUserAction(u, &Group{Name: "fresh", GID: 1010}).Validate(db))

		require.Error(t, NewAddGroupAction(&Group{Name: "teste", GID: 1010}).Validate(db))
		require.Error(t, NewAddGroupAction(&Group{Name: "fresh", GID: 1002}).Validate(db))
		require.NoError(t, NewAddGroupAction(&Group{Name: "fresh", GID: 1010}).Validate(db))
	})

	t.Run("deletions need existing records", func(t *testing.T) {
		err := NewDeleteGroupAction(&Group{Name: "nosuchgroup"}).Validate(db)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestNewGroup(t *testing.T) {
	files, dir := fixtureFiles(t)
	db, err := LoadFiles(files, zap.NewNop())
	require.NoError(t, err)

	t.Run("writes the line and registers the group", func(t *testing.T) {
		g, err := db.NewGroup("fresh", 1010)
		require.NoError(t, err)
		assert.Equal(t, "fresh", g.Value.Name)
		assert.NotNil(t, db.GroupByID(1010))
		assert.Contains(t, readTable(t, dir, "group"), "fresh:x:1010:\n")
	})

	t.Run("taken gid is rejected before anything is written", func(t *testing.T) {
		before := readTable(t, dir, "group")
		_, err := db.NewGroup("another", 1010)
		require.Error(t, err)
		assert.Equal(t, before, readTable(t, dir, "group"))
	})
}

func TestDeleteGroup(t *testing.T) {
	files, dir := fixtureFiles(t)
	db, err := LoadFiles(files, zap.NewNop())
	require.NoError(t, err)

	t.Run("removes the line and the registration", func(t *testing.T) {
		g, err := db.DeleteGroup("teste")
		require.NoError(t, err)
		assert.Equal(t, uint32(1002), g.Value.GID)
		assert.Nil(t, db.GroupByName("teste"))
		assert.NotContains(t, readTable(t, dir, "group"), "teste:")
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := db.DeleteGroup("nosuchgroup")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGroupOpsDummyMode(t *testing.T) {
	db := testDB(t)

	g, err := db.NewGroup("fresh", 1010)
	require.NoError(t, err)
	assert.NotNil(t, db.GroupByID(1010))
	assert.Equal(t, "fresh", g.Value.Name)

	_, err = db.DeleteGroup("fresh")
	require.NoError(t, err)
	assert.Nil(t, db.GroupByID(1010))
}

func TestSplitContent(t *testing.T) {
	// A trailing newline and its absence split the same.
	assert.Equal(t, []string{"a", "b"}, splitContent("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, splitContent("a\nb"))
	assert.Nil(t, splitContent(""))
	assert.Nil(t, splitContent("\n"))
}

package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudnest/cloudnest-client/pkg/models"
)

func folder(id, name string) models.FolderEntry {
	return models.FolderEntry{ID: id, Name: name}
}

func TestStartsAtRoot(t *testing.T) {
	n := New(nil)
	assert.Equal(t, "", n.CurrentFolderID())
	assert.Empty(t, n.Path())
}

func TestOpenDescends(t *testing.T) {
	n := New(nil)
	n.Open(folder("f1", "Documents"))
	n.Open(folder("f2", "Taxes"))

	assert.Equal(t, "f2", n.CurrentFolderID())
	path := n.Path()
	require.Len(t, path, 2)
	assert.Equal(t, "Documents", path[0].Name)
	assert.Equal(t, "Taxes", path[1].Name)
}

func TestCurrentIsAlwaysLastCrumb(t *testing.T) {
	n := New(nil)
	check := func() {
		path := n.Path()
		if len(path) == 0 {
			assert.Equal(t, "", n.CurrentFolderID())
		} else {
			assert.Equal(t, path[len(path)-1].ID, n.CurrentFolderID())
		}
	}
	check()
	n.Open(folder("a", "A"))
	check()
	n.Open(folder("b", "B"))
	check()
	n.Up()
	check()
	n.GoTo(0)
	check()
}

func TestGoToZeroReturnsToRoot(t *testing.T) {
	n := New(nil)
	n.Open(folder("a", "A"))
	n.Open(folder("b", "B"))

	n.GoTo(0)
	assert.Equal(t, "", n.CurrentFolderID())
	assert.Empty(t, n.Path())
}

func TestGoToTruncates(t *testing.T) {
	n := New(nil)
	n.Open(folder("a", "A"))
	n.Open(folder("b", "B"))
	n.Open(folder("c", "C"))

	n.GoTo(1)
	assert.Equal(t, "a", n.CurrentFolderID())
	assert.Equal(t, 1, n.Depth())
}

func TestGoToOutOfRangeIgnored(t *testing.T) {
	n := New(nil)
	n.Open(folder("a", "A"))

	n.GoTo(5)
	assert.Equal(t, "a", n.CurrentFolderID())
	n.GoTo(-1)
	assert.Equal(t, "a", n.CurrentFolderID())
}

func TestUpAtRootIsNoop(t *testing.T) {
	n := New(nil)
	n.Up()
	assert.Equal(t, "", n.CurrentFolderID())
}

func TestOnChangeFiresWithNewFolder(t *testing.T) {
	var seen []string
	n := New(func(id string) { seen = append(seen, id) })

	n.Open(folder("a", "A"))
	n.Open(folder("b", "B"))
	n.Up()
	n.GoTo(0)

	assert.Equal(t, []string{"a", "b", "a", ""}, seen)
}

func TestResetDoesNotFireOnChange(t *testing.T) {
	fired := 0
	n := New(func(string) { fired++ })
	n.Open(folder("a", "A"))
	require.Equal(t, 1, fired)

	n.Reset()
	assert.Equal(t, 1, fired)
	assert.Equal(t, "", n.CurrentFolderID())
}

package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoot(t *testing.T) {
	root := New("req-1")
	assert.Equal(t, 0, root.Depth)
	assert.Empty(t, root.Parent)
	assert.Empty(t, root.Source)
	assert.Equal(t, "req-1", root.Pointer)
	assert.NotEmpty(t, root.Identity)
}

func TestNewChildPointerDefaultsToIdentity(t *testing.T) {
	c := NewChild("payload.bin", "base64")
	assert.Equal(t, c.Identity, c.Pointer)
	assert.Equal(t, "base64", c.Source)
}

func TestLinkSetsDepthAndParent(t *testing.T) {
	root := New("req-1")
	child := NewChild("a", "base64")
	child.Link(root)
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, root.Identity, child.Parent)

	grandchild := NewChild("b", "base64")
	grandchild.Link(child)
	assert.Equal(t, 2, grandchild.Depth)
	assert.Equal(t, child.Identity, grandchild.Parent)
}

func TestAddFlavorsOverwritesDuplicateSource(t *testing.T) {
	f := New("req-1")
	f.AddFlavors(Flavors{ContentType: {"text/plain"}})
	f.AddFlavors(Flavors{ContentType: {"application/zip"}, Rule: {"suspicious"}})

	assert.Equal(t, []string{"application/zip"}, f.Flavors[ContentType])
	assert.Equal(t, []string{"suspicious"}, f.Flavors[Rule])
}

func TestFlavorSetDeduplicates(t *testing.T) {
	f := New("req-1")
	f.AddFlavors(Flavors{
		External:    {"zip"},
		ContentType: {"application/zip"},
		Rule:        {"zip"},
	})
	set := f.FlavorSet()
	assert.Len(t, set, 2)
	assert.Contains(t, set, "zip")
	assert.Contains(t, set, "application/zip")
}

func TestTreeForDepths(t *testing.T) {
	root := New("req-1")
	tr := root.TreeFor("req-1")
	assert.Equal(t, "req-1", tr.Node)
	assert.Equal(t, "req-1", tr.Root)
	assert.Empty(t, tr.Parent)

	child := NewChild("a", "base64")
	child.Link(root)
	ctr := child.TreeFor("req-1")
	assert.Equal(t, child.Identity, ctr.Node)
	assert.Equal(t, "req-1", ctr.Parent)

	grandchild := NewChild("b", "base64")
	grandchild.Link(child)
	gtr := grandchild.TreeFor("req-1")
	assert.Equal(t, grandchild.Identity, gtr.Node)
	assert.Equal(t, child.Identity, gtr.Parent)
	require.Equal(t, "req-1", gtr.Root)
}

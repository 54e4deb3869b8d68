package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyConstruction(t *testing.T) {
	root := NameKey("Blog", "tech", nil)
	require.NoError(t, root.Validate())
	require.False(t, root.Incomplete())

	post := IDKey("Post", 42, root)
	require.NoError(t, post.Validate())
	require.False(t, post.Incomplete())

	draft := IncompleteKey("Post", root)
	require.NoError(t, draft.Validate())
	require.True(t, draft.Incomplete())
}

func TestKeyValidate(t *testing.T) {
	require.ErrorIs(t, (*Key)(nil).Validate(), ErrInvalidKey)
	require.ErrorIs(t, IDKey("", 1, nil).Validate(), ErrInvalidKey)
	require.ErrorIs(t, IDKey("Post", -1, nil).Validate(), ErrInvalidKey)

	both := &Key{Kind: "Post", ID: 1, Name: "x"}
	require.ErrorIs(t, both.Validate(), ErrInvalidKey)

	// Only the last path element may be incomplete.
	child := IDKey("Comment", 7, IncompleteKey("Post", nil))
	require.ErrorIs(t, child.Validate(), ErrInvalidKey)

	mixed := IDKey("Comment", 7, IDKey("Post", 1, nil))
	mixed.Namespace = "other"
	require.ErrorIs(t, mixed.Validate(), ErrInvalidKey)
}

func TestKeyWithID(t *testing.T) {
	draft := IncompleteKey("Post", nil)
	assigned, err := draft.WithID(6749)
	require.NoError(t, err)
	require.False(t, assigned.Incomplete())
	require.EqualValues(t, 6749, assigned.ID)

	// The original key is untouched.
	require.True(t, draft.Incomplete())

	_, err = assigned.WithID(1)
	require.ErrorIs(t, err, ErrKeyComplete)

	_, err = draft.WithID(0)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyEqual(t *testing.T) {
	a := IDKey("Post", 42, NameKey("Blog", "tech", nil))
	b := IDKey("Post", 42, NameKey("Blog", "tech", nil))
	require.True(t, a.Equal(b))

	require.False(t, a.Equal(IDKey("Post", 42, nil)))
	require.False(t, a.Equal(IDKey("Post", 43, NameKey("Blog", "tech", nil))))
	require.False(t, a.Equal(NameKey("Post", "42", NameKey("Blog", "tech", nil))))
	require.False(t, a.Equal(a.WithNamespace("other")))
}

func TestKeyAncestorOf(t *testing.T) {
	blog := NameKey("Blog", "tech", nil)
	post := IDKey("Post", 42, blog)
	comment := IDKey("Comment", 7, post)

	require.True(t, blog.AncestorOf(post))
	require.True(t, blog.AncestorOf(comment))
	require.True(t, post.AncestorOf(comment))

	// Strict prefix: a key is not its own ancestor, and siblings sharing a
	// prefix do not match.
	require.False(t, post.AncestorOf(post))
	require.False(t, post.AncestorOf(blog))
	sibling := IDKey("Post", 43, blog)
	require.False(t, sibling.AncestorOf(comment))
}

func TestKeyEncodeOrder(t *testing.T) {
	blog := NameKey("Blog", "tech", nil)
	ordered := []*Key{
		blog,
		IDKey("Post", 2, blog),
		IDKey("Post", 10, blog), // numeric IDs order numerically, not textually
		IDKey("Comment", 1, IDKey("Post", 10, blog)),
		NameKey("Post", "alpha", blog), // names order after numeric IDs
	}
	for i := 1; i < len(ordered); i++ {
		require.Less(t, ordered[i-1].Encode(), ordered[i].Encode(),
			"%s should sort before %s", ordered[i-1], ordered[i])
	}

	// Stable and unique.
	require.Equal(t, blog.Encode(), NameKey("Blog", "tech", nil).Encode())
	require.NotEqual(t, blog.Encode(), blog.WithNamespace("other").Encode())
}

func TestKeyString(t *testing.T) {
	k := IDKey("Comment", 7, NameKey("Post", "hello", nil))
	require.Equal(t, "/Post,hello/Comment,7", k.String())
	require.Equal(t, "/Post,", IncompleteKey("Post", nil).String())
}

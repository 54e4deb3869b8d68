package query

import (
	"fmt"
	"testing"

	"github.com/chertdb/chert/entity"
	"github.com/chertdb/chert/wire"
	"github.com/stretchr/testify/require"
)

var book = entity.NameKey("Book", "GoT", nil)

func encode(t *testing.T, key *entity.Key, props map[string]any, exclude ...string) *wire.Entity {
	t.Helper()
	we, err := wire.Encode(entity.New(key, props), exclude)
	require.NoError(t, err)
	return we
}

// characters is the standard fixture: eight characters under one book, six
// of which have at least 20 appearances.
func characters(t *testing.T) []*wire.Entity {
	t.Helper()
	data := []struct {
		name        string
		appearances int64
		alive       bool
	}{
		{"Rickard", 0, false},
		{"Eddard", 9, false},
		{"Catelyn", 26, false},
		{"Arya", 33, true},
		{"Sansa", 31, true},
		{"Robb", 22, false},
		{"Bran", 25, true},
		{"Jon", 32, true},
	}
	var out []*wire.Entity
	for _, d := range data {
		out = append(out, encode(t, entity.NameKey("Character", d.name, book), map[string]any{
			"name":        d.name,
			"appearances": d.appearances,
			"alive":       d.alive,
		}))
	}
	return out
}

func names(res *Result) []string {
	var out []string
	for _, e := range res.Entities {
		out = append(out, e.Key.Name)
	}
	return out
}

func TestExecuteKindScan(t *testing.T) {
	dataset := characters(t)
	dataset = append(dataset, encode(t, entity.NameKey("Book", "GoT", nil), map[string]any{"title": "A Game of Thrones"}))

	// No filters, offset or limit: every entity of the kind, in key order.
	res, err := Execute(NewQuery("Character"), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Arya", "Bran", "Catelyn", "Eddard", "Jon", "Rickard", "Robb", "Sansa"}, names(res))
	require.False(t, res.More)

	res, err = Execute(NewQuery("Nonexistent"), dataset)
	require.NoError(t, err)
	require.Empty(t, res.Entities)
}

func TestExecuteAncestor(t *testing.T) {
	other := entity.NameKey("Book", "ACoK", nil)
	dataset := characters(t)
	dataset = append(dataset,
		encode(t, entity.NameKey("Character", "Davos", other), map[string]any{"appearances": int64(25)}),
		// Same kind, no ancestor at all.
		encode(t, entity.NameKey("Character", "Loose", nil), map[string]any{"appearances": int64(99)}),
	)

	res, err := Execute(NewQuery("Character").Ancestor(book).Filter("appearances >=", 20), dataset)
	require.NoError(t, err)
	require.Len(t, res.Entities, 6)
	for _, e := range res.Entities {
		require.True(t, book.AncestorOf(e.Key))
	}

	// The ancestor itself is not among its descendants.
	res, err = Execute(NewQuery("Book").Ancestor(book), dataset)
	require.NoError(t, err)
	require.Empty(t, res.Entities)
}

func TestExecuteFilters(t *testing.T) {
	dataset := characters(t)

	res, err := Execute(NewQuery("Character").Filter("name", "Jon"), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Jon"}, names(res))

	res, err = Execute(NewQuery("Character").Filter("appearances >", 25).Filter("alive", true), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Arya", "Jon", "Sansa"}, names(res))

	res, err = Execute(NewQuery("Character").Filter("appearances <=", 9), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Eddard", "Rickard"}, names(res))

	// Filter operands may be ints; they compare as integers.
	res, err = Execute(NewQuery("Character").Filter("appearances <", 9.5), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Eddard", "Rickard"}, names(res))
}

func TestExecuteKeyFilter(t *testing.T) {
	dataset := characters(t)
	jon := entity.NameKey("Character", "Jon", book)

	res, err := Execute(NewQuery("Character").Filter("__key__", jon), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Jon"}, names(res))

	res, err = Execute(NewQuery("Character").Filter("__key__ >", entity.NameKey("Character", "Eddard", book)), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Jon", "Rickard", "Robb", "Sansa"}, names(res))
}

func TestExecuteArrayFilter(t *testing.T) {
	dataset := []*wire.Entity{
		encode(t, entity.IDKey("Post", 1, nil), map[string]any{"tags": []any{"go", "db"}}),
		encode(t, entity.IDKey("Post", 2, nil), map[string]any{"tags": []any{"rust"}}),
		encode(t, entity.IDKey("Post", 3, nil), map[string]any{"tags": []any{"go"}}, "tags[]"),
	}

	// An array matches if any indexed element matches; excluded elements
	// are invisible to filters.
	res, err := Execute(NewQuery("Post").Filter("tags", "go"), dataset)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	require.EqualValues(t, 1, res.Entities[0].Key.ID)
}

func TestExecuteUnindexedInvisible(t *testing.T) {
	dataset := []*wire.Entity{
		encode(t, entity.IDKey("Post", 1, nil), map[string]any{"title": "secret"}, "title"),
		encode(t, entity.IDKey("Post", 2, nil), map[string]any{"title": "public"}),
	}

	res, err := Execute(NewQuery("Post").Filter("title", "secret"), dataset)
	require.NoError(t, err)
	require.Empty(t, res.Entities)

	res, err = Execute(NewQuery("Post").Order("title"), dataset)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	require.EqualValues(t, 2, res.Entities[0].Key.ID)
}

func TestExecuteOrder(t *testing.T) {
	dataset := characters(t)

	res, err := Execute(NewQuery("Character").Order("-appearances").Limit(3), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Arya", "Jon", "Sansa"}, names(res))
	require.True(t, res.More)

	// Equal sort values fall back to key order deterministically.
	res, err = Execute(NewQuery("Character").Order("alive"), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Catelyn", "Eddard", "Rickard", "Robb", "Arya", "Bran", "Jon", "Sansa"}, names(res))
}

func TestExecuteDistinctOn(t *testing.T) {
	dataset := characters(t)

	res, err := Execute(NewQuery("Character").Order("alive").Order("appearances").DistinctOn("alive"), dataset)
	require.NoError(t, err)
	// First of each run: the least-appearing dead and living characters.
	require.Equal(t, []string{"Rickard", "Bran"}, names(res))
}

func TestExecuteOffsetLimit(t *testing.T) {
	dataset := characters(t)

	res, err := Execute(NewQuery("Character").Order("appearances").Offset(2).Limit(3), dataset)
	require.NoError(t, err)
	require.Equal(t, []string{"Robb", "Bran", "Catelyn"}, names(res))
	require.True(t, res.More)

	res, err = Execute(NewQuery("Character").Offset(100), dataset)
	require.NoError(t, err)
	require.Empty(t, res.Entities)
	require.False(t, res.More)

	res, err = Execute(NewQuery("Character").Limit(0), dataset)
	require.NoError(t, err)
	require.Empty(t, res.Entities)
	require.True(t, res.More)
}

func TestExecuteProjection(t *testing.T) {
	dataset := characters(t)

	res, err := Execute(NewQuery("Character").Project("name").Limit(1), dataset)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	require.Contains(t, res.Entities[0].Properties, "name")
	require.NotContains(t, res.Entities[0].Properties, "appearances")

	res, err = Execute(NewQuery("Character").KeysOnly().Limit(1), dataset)
	require.NoError(t, err)
	require.Empty(t, res.Entities[0].Properties)
	require.NotNil(t, res.Entities[0].Key)
}

func TestExecutePaginationGapless(t *testing.T) {
	for _, q := range []*Query{
		NewQuery("Character"),
		NewQuery("Character").Order("-appearances"),
		NewQuery("Character").Order("alive"), // plenty of sort-value ties
	} {
		t.Run(fmt.Sprintf("%v", q.orders), func(t *testing.T) {
			dataset := characters(t)
			full, err := Execute(q, dataset)
			require.NoError(t, err)
			require.Len(t, full.Entities, 8)

			var paged []string
			cursor := Cursor("")
			for {
				page, err := Execute(q.Limit(3).Start(cursor), dataset)
				require.NoError(t, err)
				paged = append(paged, names(page)...)
				if !page.More {
					break
				}
				cursor = page.EndCursor
			}
			require.Equal(t, names(full), paged)
		})
	}
}

func TestExecuteEndCursor(t *testing.T) {
	dataset := characters(t)

	first, err := Execute(NewQuery("Character").Limit(4), dataset)
	require.NoError(t, err)

	// An end cursor bounds the query inclusively at the same position.
	bounded, err := Execute(NewQuery("Character").End(first.EndCursor), dataset)
	require.NoError(t, err)
	require.Equal(t, names(first), names(bounded))

	_, err = Execute(NewQuery("Character").Start(Cursor("garbage###")), dataset)
	require.Error(t, err)
}

func TestExecuteBuilderError(t *testing.T) {
	_, err := Execute(NewQuery("Character").Filter("x !!", 1), characters(t))
	require.Error(t, err)

	_, err = Execute(NewQuery(""), nil)
	require.Error(t, err)
}

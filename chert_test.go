package chert

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/chertdb/chert/entity"
	"github.com/chertdb/chert/query"
	"github.com/chertdb/chert/test"
	"github.com/ridge/parallel"
	"github.com/stretchr/testify/require"
)

func TestSaveGetRoundTrip(t *testing.T) {
	ctx, db := testEnv(t)

	e := entity.New(entity.IncompleteKey("Post", nil), map[string]any{"title": "T"})
	key, err := db.Put(ctx, e)
	require.NoError(t, err)
	require.False(t, key.Incomplete())
	require.True(t, key.Equal(e.Key()))

	stored, ok, err := db.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, key.Equal(stored.Key()))
	require.Equal(t, e.Properties, stored.Properties)

	// Inserting again under the now-complete key fails, and the stored
	// entity is unchanged.
	_, err = db.Insert(ctx, entity.New(key, map[string]any{"title": "other"}))
	require.ErrorIs(t, err, ErrAlreadyExists)
	stored, _, err = db.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "T", stored.Properties["title"])
}

func TestGetAbsent(t *testing.T) {
	ctx, db := testEnv(t)
	e, ok, err := db.Get(ctx, entity.IDKey("Post", 404, nil))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, e)
}

func TestGetMulti(t *testing.T) {
	ctx, db := testEnv(t)
	_, err := db.Put(ctx, post(1, "a"))
	require.NoError(t, err)
	_, err = db.Put(ctx, post(3, "c"))
	require.NoError(t, err)

	res, err := db.GetMulti(ctx, []*entity.Key{
		entity.IDKey("Post", 1, nil),
		entity.IDKey("Post", 2, nil),
		entity.IDKey("Post", 3, nil),
	})
	require.NoError(t, err)
	require.Len(t, res, 3)
	require.Equal(t, "a", res[0].Properties["title"])
	require.Nil(t, res[1])
	require.Equal(t, "c", res[2].Properties["title"])
}

func TestUpdateRequiresExisting(t *testing.T) {
	ctx, db := testEnv(t)
	_, err := db.Update(ctx, post(1, "v2"))
	require.ErrorIs(t, err, ErrNoSuchEntity)

	_, err = db.Put(ctx, post(1, "v1"))
	require.NoError(t, err)
	_, err = db.Update(ctx, post(1, "v2"))
	require.NoError(t, err)
	e, _, err := db.Get(ctx, entity.IDKey("Post", 1, nil))
	require.NoError(t, err)
	require.Equal(t, "v2", e.Properties["title"])
}

func TestPutMultiAtomic(t *testing.T) {
	ctx, db := testEnv(t)

	// The second entity carries an oversized indexed string, so the whole
	// batch is rejected and the first entity is not stored either.
	big := strings.Repeat("x", 2000)
	_, err := db.PutMulti(ctx, []*entity.Entity{
		post(1, "fine"),
		entity.New(entity.IDKey("Post", 2, nil), map[string]any{"body": big}),
	})
	require.ErrorIs(t, err, ErrValueTooLarge)
	_, ok, err := db.Get(ctx, entity.IDKey("Post", 1, nil))
	require.NoError(t, err)
	require.False(t, ok)

	// Excluding the oversized property from indexes lifts the limit.
	keys, err := db.PutMulti(ctx, []*entity.Entity{
		post(1, "fine"),
		entity.New(entity.IDKey("Post", 2, nil), map[string]any{"body": big}),
	}, "body")
	require.NoError(t, err)
	require.Len(t, keys, 2)

	e, ok, err := db.Get(ctx, entity.IDKey("Post", 2, nil))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, big, e.Properties["body"])
}

func TestDelete(t *testing.T) {
	ctx, db := testEnv(t)
	key := entity.IDKey("Post", 1, nil)
	_, err := db.Put(ctx, post(1, "T"))
	require.NoError(t, err)

	require.NoError(t, db.Delete(ctx, key))
	_, ok, err := db.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting an absent entity succeeds.
	require.NoError(t, db.Delete(ctx, key))
}

func TestRunQueryPagination(t *testing.T) {
	ctx, db := testEnv(t)
	book := entity.NameKey("Book", "got", nil)
	for i := 1; i <= 5; i++ {
		e := entity.New(entity.IDKey("Character", int64(i), book), map[string]any{
			"appearances": int64(i * 10),
		})
		_, err := db.Put(ctx, e)
		require.NoError(t, err)
	}

	q := query.NewQuery("Character").Ancestor(book).Order("appearances").Limit(2)
	var got []int64
	for {
		res, err := db.Run(ctx, q)
		require.NoError(t, err)
		for _, e := range res.Entities {
			got = append(got, e.Properties["appearances"].(int64))
		}
		if !res.More {
			break
		}
		q = q.Start(res.EndCursor)
	}
	require.Equal(t, []int64{10, 20, 30, 40, 50}, got)
}

func TestAllocateIDs(t *testing.T) {
	ctx, db := testEnv(t)

	keys, err := db.AllocateIDs(ctx, entity.IncompleteKey("Post", nil), 3)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	seen := map[int64]bool{}
	for _, key := range keys {
		require.False(t, key.Incomplete())
		require.Equal(t, "Post", key.Kind)
		require.False(t, seen[key.ID])
		seen[key.ID] = true
	}

	// Reserved IDs are never assigned to later saves.
	e := entity.New(entity.IncompleteKey("Post", nil), map[string]any{"title": "T"})
	key, err := db.Put(ctx, e)
	require.NoError(t, err)
	require.False(t, seen[key.ID])

	_, err = db.AllocateIDs(ctx, entity.IDKey("Post", 7, nil), 1)
	require.ErrorIs(t, err, entity.ErrKeyComplete)
}

func TestConcurrentPuts(t *testing.T) {
	ctx, db := testEnv(t)
	group := test.Group(t)

	const writers = 8
	for i := 0; i < writers; i++ {
		i := i
		group.Spawn(fmt.Sprintf("writer%d", i), parallel.Continue, func(ctx context.Context) error {
			for j := 0; j < 10; j++ {
				key := entity.IDKey("Item", int64(i*100+j), nil)
				if _, err := db.Put(ctx, entity.New(key, map[string]any{"writer": int64(i)})); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())

	res, err := db.Run(ctx, query.NewQuery("Item").KeysOnly())
	require.NoError(t, err)
	require.Len(t, res.Entities, writers*10)
}

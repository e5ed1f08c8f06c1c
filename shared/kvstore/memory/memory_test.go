package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore"
)

func TestMergeIsAdditive(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Merge(ctx, "k", kvstore.Record{"3": []byte("c"), "4": []byte("d")}))
	require.NoError(t, s.Merge(ctx, "k", kvstore.Record{"1": []byte("a"), "2": []byte("b")}))

	rec, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, rec, 4)
	assert.Equal(t, []byte("c"), rec["3"])
}

func TestReplaceDropsOldFields(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Merge(ctx, "k", kvstore.Record{"a": []byte("1"), "b": []byte("2")}))
	require.NoError(t, s.Replace(ctx, "k", kvstore.Record{"c": []byte("3")}))

	rec, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, kvstore.Record{"c": []byte("3")}, rec)
}

func TestReadMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Read(ctx, "nope")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)

	require.NoError(t, s.Merge(ctx, "k", kvstore.Record{"a": []byte("1")}))
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err = s.Read(ctx, "k")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Merge(ctx, "k", kvstore.Record{"a": []byte("1")}))

	rec, err := s.Read(ctx, "k")
	require.NoError(t, err)
	rec["a"][0] = 'x'
	rec["b"] = []byte("2")

	again, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, kvstore.Record{"a": []byte("1")}, again)
}

func TestConcurrentMergesKeepEveryField(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			field := string(rune('A' + i%26)) + string(rune('a'+i/26))
			_ = s.Merge(ctx, "k", kvstore.Record{field: []byte{byte(i)}})
		}(i)
	}
	wg.Wait()

	rec, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, rec, 50)
}

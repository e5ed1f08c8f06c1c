package s3store

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/mocks"
)

type object struct {
	body []byte
	etag string
}

// fakeS3 honours IfMatch and IfNoneMatch like the real service.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
	// beforePut runs once before the next PutObject, simulating a racing writer.
	beforePut func()
	puts      int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]object)}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(obj.body)),
		ETag: aws.String(obj.etag),
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if hook := f.takeHook(); hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++

	key := aws.ToString(in.Key)
	current, exists := f.objects[key]

	if in.IfNoneMatch != nil && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "exists"}
	}
	if in.IfMatch != nil && (!exists || current.etag != aws.ToString(in.IfMatch)) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "etag mismatch"}
	}

	body, _ := io.ReadAll(in.Body)
	sum := md5.Sum(body)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	f.objects[key] = object{body: body, etag: etag}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) takeHook() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	hook := f.beforePut
	f.beforePut = nil
	return hook
}

func newTestStore(api API) *Store {
	return New(api, "bucket", "mediabot/test/cache", mocks.NewPermissiveLogger(), mocks.NewPermissiveMetrics())
}

func TestMergeIsAdditive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newFakeS3())

	require.NoError(t, s.Merge(ctx, "pl", kvstore.Record{"3": []byte("c"), "4": []byte("d")}))
	require.NoError(t, s.Merge(ctx, "pl", kvstore.Record{"1": []byte("a"), "2": []byte("b")}))

	rec, err := s.Read(ctx, "pl")
	require.NoError(t, err)
	assert.Len(t, rec, 4)
	assert.Equal(t, []byte("a"), rec["1"])
	assert.Equal(t, []byte("d"), rec["4"])
}

func TestMergeRetriesOnConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	s := newTestStore(api)
	other := newTestStore(api)

	require.NoError(t, s.Merge(ctx, "pl", kvstore.Record{"1": []byte("a")}))

	api.beforePut = func() {
		require.NoError(t, other.Merge(ctx, "pl", kvstore.Record{"2": []byte("b")}))
	}
	require.NoError(t, s.Merge(ctx, "pl", kvstore.Record{"3": []byte("c")}))

	rec, err := s.Read(ctx, "pl")
	require.NoError(t, err)
	assert.Len(t, rec, 3, "racing writer's field must survive")
}

func TestReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newFakeS3())

	require.NoError(t, s.Merge(ctx, "k", kvstore.Record{"a": []byte("1"), "b": []byte("2")}))
	require.NoError(t, s.Replace(ctx, "k", kvstore.Record{"item": []byte("x")}))

	rec, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, kvstore.Record{"item": []byte("x")}, rec)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Read(ctx, "k")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

func TestObjectKeyIsStable(t *testing.T) {
	s := newTestStore(newFakeS3())

	k1 := s.objectKey("https://www.youtube.com/watch?v=abc|720p")
	k2 := s.objectKey("https://www.youtube.com/watch?v=abc|720p")

	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "mediabot/test/cache/")
	assert.NotContains(t, k1, "youtube")
}

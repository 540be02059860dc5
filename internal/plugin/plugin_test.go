package plugin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipd/internal/crypto"
)

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func testEvent(user int32, device string, seq uint64, created int64) Event {
	return Event{
		Version:    EventVersion,
		FrameNum:   1,
		User:       user,
		SeqID:      seq,
		Created:    created,
		Expiration: created + 120_000,
		Status:     StatusNormal,
		DeviceID:   device,
		AccountID:  "acct",
	}
}

func backends(t *testing.T) map[string]Plugin {
	t.Helper()
	dir, err := NewDir(t.TempDir())
	require.NoError(t, err)
	bolt, err := NewBolt(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	return map[string]Plugin{
		"memory": NewMemory(),
		"dir":    dir,
		"bolt":   bolt,
		"s3":     NewS3(newFakeS3(), "bucket", "clipd"),
	}
}

func TestBackends_Conformance(t *testing.T) {
	ctx := context.Background()
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e1 := testEvent(100, "dev-a", 1, 1000)
			e2 := testEvent(100, "dev-b", 7, 2000)
			e3 := testEvent(100, "dev-a", 2, 3000)
			other := testEvent(101, "dev-a", 3, 4000)

			require.NoError(t, p.SetPasteData(ctx, e1, []byte("one")))
			require.NoError(t, p.SetPasteData(ctx, e2, []byte("two")))
			require.NoError(t, p.SetPasteData(ctx, e3, []byte("three")))
			require.NoError(t, p.SetPasteData(ctx, other, []byte("other")))

			top, err := p.GetTopEvents(ctx, 2, 100)
			require.NoError(t, err)
			assert.Equal(t, []Event{e3, e2}, top)

			top, err = p.GetTopEvents(ctx, 10, 100)
			require.NoError(t, err)
			assert.Equal(t, []Event{e3, e2, e1}, top)

			payload, err := p.GetPasteData(ctx, e2)
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), payload)

			_, err = p.GetPasteData(ctx, testEvent(100, "dev-z", 9, 9))
			assert.ErrorIs(t, err, ErrNoPayload)

			require.NoError(t, p.Clear(ctx, 100))
			top, err = p.GetTopEvents(ctx, 10, 100)
			require.NoError(t, err)
			assert.Empty(t, top)

			top, err = p.GetTopEvents(ctx, 10, 101)
			require.NoError(t, err)
			assert.Equal(t, []Event{other}, top)

			require.NoError(t, p.Close())
		})
	}
}

func TestBackends_PruneOldEvents(t *testing.T) {
	ctx := context.Background()
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var events []Event
			for i := 0; i < boardDepth+3; i++ {
				e := testEvent(100, "dev-a", uint64(i+1), int64(1000*(i+1)))
				require.NoError(t, p.SetPasteData(ctx, e, []byte{byte(i)}))
				events = append(events, e)
			}
			other := testEvent(101, "dev-a", 99, 500)
			require.NoError(t, p.SetPasteData(ctx, other, []byte("other")))

			top, err := p.GetTopEvents(ctx, 100, 100)
			require.NoError(t, err)
			require.Len(t, top, boardDepth)
			assert.Equal(t, events[len(events)-1], top[0])
			assert.Equal(t, events[3], top[boardDepth-1])

			for _, old := range events[:3] {
				_, err := p.GetPasteData(ctx, old)
				assert.ErrorIs(t, err, ErrNoPayload, "payload of a pruned event is gone")
			}
			payload, err := p.GetPasteData(ctx, events[3])
			require.NoError(t, err)
			assert.Equal(t, []byte{3}, payload)

			top, err = p.GetTopEvents(ctx, 100, 101)
			require.NoError(t, err)
			assert.Equal(t, []Event{other}, top, "other users are untouched")
		})
	}
}

func TestStaleKeys(t *testing.T) {
	assert.Nil(t, staleKeys([]string{"b", "a"}))

	var keys []string
	for i := 0; i < boardDepth+2; i++ {
		keys = append(keys, fmt.Sprintf("%020d-dev", boardDepth+2-i))
	}
	assert.Equal(t, []string{fmt.Sprintf("%020d-dev", 1), fmt.Sprintf("%020d-dev", 2)}, staleKeys(keys))
}

func TestBolt_NegativeAndMaxUsers(t *testing.T) {
	ctx := context.Background()
	b, err := NewBolt(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer b.Close()

	neg := testEvent(-1, "d", 1, 10)
	low := testEvent(0, "d", 2, 20)
	require.NoError(t, b.SetPasteData(ctx, neg, nil))
	require.NoError(t, b.SetPasteData(ctx, low, nil))

	top, err := b.GetTopEvents(ctx, 5, -1)
	require.NoError(t, err)
	assert.Equal(t, []Event{neg}, top)
	top, err = b.GetTopEvents(ctx, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []Event{low}, top)
}

func TestEvent_CodecAndRules(t *testing.T) {
	e := testEvent(5, "dev/with slash", 42, time.Now().UnixMilli())
	b, err := EncodeEvent(e)
	require.NoError(t, err)
	got, err := DecodeEvent(b)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	assert.NotContains(t, e.Key(), "/")
	assert.True(t, e.Usable(time.UnixMilli(e.Created)))
	assert.False(t, e.Usable(time.UnixMilli(e.Expiration)))

	e.Status = StatusInvalid
	assert.False(t, e.Usable(time.UnixMilli(e.Created)))
	assert.True(t, e.SameOrigin(got))
}

func TestFrames(t *testing.T) {
	assert.Equal(t, uint8(1), Frames(0))
	assert.Equal(t, uint8(1), Frames(FrameSize))
	assert.Equal(t, uint8(2), Frames(FrameSize+1))
	assert.Equal(t, uint8(255), Frames(FrameSize*300))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Load([]Component{
		{Name: "shared", Factory: "memory", Param: "board-1"},
		{Name: "missing", Factory: "carrier-pigeon"},
		{Name: "broken", Factory: "dir", Param: "relative/path"},
	})

	a := r.Create("shared")
	b := r.Create("shared")
	require.IsType(t, &Memory{}, a)
	assert.Same(t, a, b, "components naming the same board share it")

	assert.True(t, IsNoop(r.Create("missing")))
	assert.True(t, IsNoop(r.Create("broken")))
	assert.True(t, IsNoop(r.Create("")))
	assert.IsType(t, &Memory{}, r.Create("memory"), "bare factory names resolve")

	r.Destroy("shared", a)
	r.Destroy("missing", Noop{})
	assert.Contains(t, r.Factories(), "bolt")
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var p Plugin = Noop{}
	require.NoError(t, p.SetPasteData(ctx, Event{}, []byte("x")))
	_, err := p.GetPasteData(ctx, Event{})
	assert.ErrorIs(t, err, ErrNoPayload)
	top, err := p.GetTopEvents(ctx, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestSealed(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	p, err := Sealed(inner, "secret")
	require.NoError(t, err)

	e := testEvent(1, "d", 1, 1)
	require.NoError(t, p.SetPasteData(ctx, e, []byte("plain payload")))

	raw, err := inner.GetPasteData(ctx, e)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plain payload")

	got, err := p.GetPasteData(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain payload"), got)

	wrong, err := Sealed(inner, "not the secret")
	require.NoError(t, err)
	_, err = wrong.GetPasteData(ctx, e)
	assert.ErrorIs(t, err, crypto.ErrOpen)

	same, err := Sealed(inner, "")
	require.NoError(t, err)
	assert.Same(t, inner, same)
}

func TestParseS3Location(t *testing.T) {
	tests := []struct {
		in                     string
		bucket, prefix, region string
		wantErr                bool
	}{
		{in: "s3://b/p/q?region=eu-west-1", bucket: "b", prefix: "p/q", region: "eu-west-1"},
		{in: "b", bucket: "b"},
		{in: "b/p/", bucket: "b", prefix: "p"},
		{in: "s3:///p", wantErr: true},
		{in: "gs://b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, prefix, region, err := parseS3Location(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.prefix, prefix)
			assert.Equal(t, tt.region, region)
		})
	}
}

package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of *s3.Client the plugin uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3 keeps events in a bucket under the same layout as Dir:
//
//	<prefix>/<user>/<key>.event
//	<prefix>/<user>/<key>.clip
type S3 struct {
	client s3API
	bucket string
	prefix string
}

// NewS3 returns a plugin over an existing client.
func NewS3(client s3API, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3FromLocation parses "s3://bucket/prefix?region=..." (the scheme is
// optional) and builds a client from the default AWS credential chain.
func NewS3FromLocation(location string) (*S3, error) {
	bucket, prefix, region, err := parseS3Location(location)
	if err != nil {
		return nil, err
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 plugin: load AWS config: %w", err)
	}
	return NewS3(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func parseS3Location(location string) (bucket, prefix, region string, err error) {
	if !strings.Contains(location, "://") {
		location = "s3://" + location
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", "", "", fmt.Errorf("s3 plugin: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", "", fmt.Errorf("s3 plugin: invalid location %q: bucket name required", location)
	}
	return u.Host, strings.Trim(u.Path, "/"), u.Query().Get("region"), nil
}

func (p *S3) userPrefix(user int32) string {
	u := strconv.Itoa(int(user)) + "/"
	if p.prefix == "" {
		return u
	}
	return p.prefix + "/" + u
}

func (p *S3) objectKey(e Event, ext string) string {
	return p.userPrefix(e.User) + e.Key() + ext
}

func (p *S3) put(ctx context.Context, key string, data []byte) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (p *S3) get(ctx context.Context, key string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, ErrNoPayload
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (p *S3) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pages := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (p *S3) SetPasteData(ctx context.Context, e Event, payload []byte) error {
	eb, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	if err := p.put(ctx, p.objectKey(e, payloadExt), payload); err != nil {
		return err
	}
	if err := p.put(ctx, p.objectKey(e, eventExt), eb); err != nil {
		return err
	}
	if err := p.prune(ctx, e.User); err != nil {
		slog.Debug("s3 plugin: prune failed", "user", e.User, "err", err)
	}
	return nil
}

// prune drops the user's events beyond the newest boardDepth.
func (p *S3) prune(ctx context.Context, user int32) error {
	prefix := p.userPrefix(user)
	keys, err := p.list(ctx, prefix)
	if err != nil {
		return err
	}
	var events []string
	for _, k := range keys {
		if name, ok := strings.CutSuffix(strings.TrimPrefix(k, prefix), eventExt); ok {
			events = append(events, name)
		}
	}
	var stale []string
	for _, k := range staleKeys(events) {
		stale = append(stale, prefix+k+eventExt, prefix+k+payloadExt)
	}
	return p.delete(ctx, stale)
}

func (p *S3) GetPasteData(ctx context.Context, e Event) ([]byte, error) {
	return p.get(ctx, p.objectKey(e, payloadExt))
}

func (p *S3) GetTopEvents(ctx context.Context, n int, user int32) ([]Event, error) {
	keys, err := p.list(ctx, p.userPrefix(user))
	if err != nil {
		return nil, err
	}
	var eventKeys []string
	for _, k := range keys {
		if strings.HasSuffix(k, eventExt) {
			eventKeys = append(eventKeys, k)
		}
	}
	// Event keys embed the zero-padded creation time.
	sort.Sort(sort.Reverse(sort.StringSlice(eventKeys)))

	var events []Event
	for _, k := range eventKeys {
		if len(events) == n {
			break
		}
		b, err := p.get(ctx, k)
		if err != nil {
			slog.Debug("s3 plugin: skipping unreadable event", "key", k, "err", err)
			continue
		}
		e, err := DecodeEvent(b)
		if err != nil {
			slog.Debug("s3 plugin: skipping corrupt event", "key", k, "err", err)
			continue
		}
		events = append(events, e)
	}
	return topN(events, n), nil
}

// s3DeleteBatch is the DeleteObjects request limit.
const s3DeleteBatch = 1000

func (p *S3) Clear(ctx context.Context, user int32) error {
	keys, err := p.list(ctx, p.userPrefix(user))
	if err != nil {
		return err
	}
	return p.delete(ctx, keys)
}

func (p *S3) delete(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += s3DeleteBatch {
		end := min(start+s3DeleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := p.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(p.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3 delete: %w", err)
		}
	}
	return nil
}

func (p *S3) Close() error { return nil }

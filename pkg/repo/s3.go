package repo

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5/memfs"
)

// ============================================================================
// S3 Items
// ============================================================================

// The tree contract has no cancellation concept, so the remote variants
// enforce their own bounded waits: every S3 call runs under one of these
// timeouts and surfaces failure through the usual capture path.
const (
	s3RequestTimeout  = 30 * time.Second
	s3DownloadTimeout = 5 * time.Minute
)

// maxStageBytes caps how large an object may be before expanding it stops
// staging the content for decoding.
const maxStageBytes = int64(512) << 20

// ParseS3URL splits an "s3://bucket/key" style URL. The key may be empty
// or a prefix ending in "/".
func ParseS3URL(raw string) (bucket, key string, err error) {
	lowered := strings.ToLower(raw)
	if !strings.HasPrefix(lowered, "s3://") {
		return "", "", fmt.Errorf("not an s3 url: %q", raw)
	}
	rest := raw[len("s3://"):]
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 url %q has no bucket", raw)
	}
	return bucket, key, nil
}

// NewS3Item constructs the item for an s3:// URL: a prefix item for
// bucket roots and keys ending in "/", an object item otherwise. The
// registry decides whether expanded objects can be decoded; nil disables
// staging.
func NewS3Item(client *s3.Client, registry *FormatRegistry, name, rawURL string) (Item, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return NewS3PrefixItem(client, registry, name, bucket, key), nil
	}
	return NewS3ObjectItem(client, registry, name, bucket, key, 0), nil
}

// S3PrefixItem browses one level of an S3 bucket under a key prefix.
// Expanding lists the prefix with a "/" delimiter: common prefixes become
// nested prefix items, objects become object items.
type S3PrefixItem struct {
	node
	client   *s3.Client
	registry *FormatRegistry
	bucket   string
	prefix   string
}

func NewS3PrefixItem(client *s3.Client, registry *FormatRegistry, name, bucket, prefix string) *S3PrefixItem {
	return &S3PrefixItem{
		node:     newNode(name, "s3://"+bucket+"/"+prefix, true),
		client:   client,
		registry: registry,
		bucket:   bucket,
		prefix:   prefix,
	}
}

func (it *S3PrefixItem) Kind() Kind { return KindBucket }

// openResources verifies the bucket is reachable with the configured
// credentials. The listing itself happens at fetch time.
func (it *S3PrefixItem) openResources() error {
	ctx, cancel := context.WithTimeout(context.Background(), s3RequestTimeout)
	defer cancel()

	_, err := it.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(it.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s: %w", it.bucket, err)
	}
	return nil
}

func (it *S3PrefixItem) fetchResources() ([]Item, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s3RequestTimeout)
	defer cancel()

	var prefixes []string
	type object struct {
		key  string
		size int64
	}
	var objects []object

	paginator := s3.NewListObjectsV2Paginator(it.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(it.bucket),
		Prefix:    aws.String(it.prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", it.bucket, it.prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				prefixes = append(prefixes, *cp.Prefix)
			}
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || *obj.Key == it.prefix {
				continue
			}
			o := object{key: *obj.Key}
			if obj.Size != nil {
				o.size = *obj.Size
			}
			objects = append(objects, o)
		}
	}

	sort.Strings(prefixes)
	sort.Slice(objects, func(i, j int) bool { return objects[i].key < objects[j].key })

	children := make([]Item, 0, len(prefixes)+len(objects))
	for _, p := range prefixes {
		name := path.Base(strings.TrimSuffix(p, "/"))
		children = append(children, NewS3PrefixItem(it.client, it.registry, name, it.bucket, p))
	}
	for _, o := range objects {
		name := path.Base(o.key)
		children = append(children, NewS3ObjectItem(it.client, it.registry, name, it.bucket, o.key, o.size))
	}
	return children, nil
}

// S3ObjectItem represents one remote object. Opening heads the object and
// captures its metadata; expanding stages the content into an in-memory
// filesystem and, when a registered format recognizes the key, decodes it
// into a child item.
type S3ObjectItem struct {
	node
	client   *s3.Client
	registry *FormatRegistry
	bucket   string
	key      string

	size         int64
	etag         string
	storageClass string
	lastModified time.Time
}

func NewS3ObjectItem(client *s3.Client, registry *FormatRegistry, name, bucket, key string, size int64) *S3ObjectItem {
	return &S3ObjectItem{
		node:     newNode(name, "s3://"+bucket+"/"+key, true),
		client:   client,
		registry: registry,
		bucket:   bucket,
		key:      key,
		size:     size,
	}
}

func (it *S3ObjectItem) Kind() Kind { return KindObject }

func (it *S3ObjectItem) Size() int64 { return it.size }

func (it *S3ObjectItem) ETag() string { return it.etag }

func (it *S3ObjectItem) StorageClass() string { return it.storageClass }

func (it *S3ObjectItem) LastModified() time.Time { return it.lastModified }

func (it *S3ObjectItem) openResources() error {
	ctx, cancel := context.WithTimeout(context.Background(), s3RequestTimeout)
	defer cancel()

	out, err := it.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(it.bucket),
		Key:    aws.String(it.key),
	})
	if err != nil {
		return fmt.Errorf("object s3://%s/%s: %w", it.bucket, it.key, err)
	}
	if out.ContentLength != nil {
		it.size = *out.ContentLength
	}
	if out.ETag != nil {
		it.etag = *out.ETag
	}
	it.storageClass = string(out.StorageClass)
	if out.LastModified != nil {
		it.lastModified = *out.LastModified
	}
	return nil
}

func (it *S3ObjectItem) fetchResources() ([]Item, error) {
	if it.registry == nil {
		return nil, nil
	}
	format, ok := it.registry.Match(it.key)
	if !ok {
		return nil, nil
	}
	if it.size > maxStageBytes {
		log.Warn("s3://%s/%s is %d bytes, too large to stage", it.bucket, it.key, it.size)
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s3DownloadTimeout)
	defer cancel()

	out, err := it.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(it.bucket),
		Key:    aws.String(it.key),
	})
	if err != nil {
		return nil, fmt.Errorf("downloading s3://%s/%s: %w", it.bucket, it.key, err)
	}
	defer out.Body.Close()

	staged := memfs.New()
	base := path.Base(it.key)
	f, err := staged.Create(base)
	if err != nil {
		return nil, fmt.Errorf("staging %s: %w", base, err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return nil, fmt.Errorf("staging s3://%s/%s: %w", it.bucket, it.key, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("staging %s: %w", base, err)
	}

	log.Debug("staged s3://%s/%s as %s", it.bucket, it.key, format.Name)
	return []Item{format.New(staged, format.Name, base)}, nil
}

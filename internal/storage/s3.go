package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	cfg "github.com/fitcheckhq/fitcheck/internal/config"
	"github.com/fitcheckhq/fitcheck/internal/datauri"
	"github.com/fitcheckhq/fitcheck/internal/model"
)

// metadata key carrying the original upload filename
const metaFileName = "filename"

// S3Store implements the remote asset store on S3-compatible storage.
// Works with AWS S3, MinIO, DigitalOcean Spaces, Cloudflare R2, etc.
// Objects live under users/<userID>/<category>/<uuid><ext>.
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	presignExpiry time.Duration
}

// S3Config holds configuration for the S3 store.
type S3Config struct {
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	Endpoint      string // Optional: for S3-compatible services
	PresignExpiry time.Duration
}

// New creates the S3 store from app config.
func New(c *cfg.Config) (*S3Store, error) {
	slog.Info("initializing S3 asset store",
		"bucket", c.S3Bucket,
		"region", c.S3Region,
		"endpoint", c.S3Endpoint,
	)
	return NewS3Store(S3Config{
		Region:        c.S3Region,
		Bucket:        c.S3Bucket,
		AccessKey:     c.S3AccessKey,
		SecretKey:     c.S3SecretKey,
		Endpoint:      c.S3Endpoint,
		PresignExpiry: c.S3PresignExpiry,
	})
}

// NewS3Store creates a new S3 store instance.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO and some S3-compatible services
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	store := &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		presignExpiry: cfg.PresignExpiry,
	}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return store, nil
}

// ensureBucket checks if the bucket exists, creates it if not.
func (s *S3Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %q does not exist and could not be created: %w", s.bucket, err)
	}

	slog.Info("created S3 bucket", "bucket", s.bucket)
	return nil
}

// ForUser returns a Store scoped to one user's folder structure.
func (s *S3Store) ForUser(userID string) Store {
	return &userStore{s3: s, userID: userID}
}

// userStore partitions one user's objects by category prefix.
type userStore struct {
	s3     *S3Store
	userID string
}

func (u *userStore) prefix(category model.Category) string {
	return fmt.Sprintf("users/%s/%s/", u.userID, category)
}

func (u *userStore) List(ctx context.Context, category model.Category) ([]Object, error) {
	s := u.s3
	prefix := u.prefix(category)

	type listed struct {
		key      string
		modified time.Time
	}
	var keys []listed

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, listed{
				key:      aws.ToString(obj.Key),
				modified: aws.ToTime(obj.LastModified),
			})
		}
	}

	// Insertion order is append-order of confirmed uploads, oldest first.
	sort.Slice(keys, func(i, j int) bool { return keys[i].modified.Before(keys[j].modified) })

	objects := make([]Object, 0, len(keys))
	for _, k := range keys {
		name, err := u.objectName(ctx, k.key)
		if err != nil {
			slog.Warn("failed to read object metadata", "key", k.key, "error", err)
			name = path.Base(k.key)
		}
		link, err := s.presignedURL(ctx, k.key)
		if err != nil {
			return nil, fmt.Errorf("failed to presign %s: %w", k.key, err)
		}
		objects = append(objects, Object{Handle: k.key, Name: name, Link: link})
	}

	return objects, nil
}

func (u *userStore) objectName(ctx context.Context, key string) (string, error) {
	head, err := u.s3.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.s3.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	if name, ok := head.Metadata[metaFileName]; ok && name != "" {
		return name, nil
	}
	return path.Base(key), nil
}

func (u *userStore) Upload(ctx context.Context, category model.Category, name, dataURI string) (Object, error) {
	s := u.s3

	mimeType, data, err := datauri.Parse(dataURI)
	if err != nil {
		return Object{}, fmt.Errorf("invalid upload payload: %w", err)
	}

	key := u.prefix(category) + uuid.New().String() + extensionFor(mimeType, name)

	putCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = s.client.PutObject(putCtx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
		Metadata:    map[string]string{metaFileName: name},
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload to S3: %w", err)
	}

	link, err := s.presignedURL(ctx, key)
	if err != nil {
		return Object{}, fmt.Errorf("failed to presign %s: %w", key, err)
	}

	return Object{Handle: key, Name: name, Link: link}, nil
}

func (u *userStore) Delete(ctx context.Context, handle string) error {
	s := u.s3

	delCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Objects outside the user's folder are never deletable through this
	// store instance.
	if !strings.HasPrefix(handle, "users/"+u.userID+"/") {
		return ErrObjectNotFound
	}

	_, err := s.client.DeleteObject(delCtx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(handle),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// presignedURL generates a presigned GET URL with the configured expiry.
func (s *S3Store) presignedURL(ctx context.Context, key string) (string, error) {
	presignCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	presignedReq, err := s.presignClient.PresignGetObject(presignCtx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.presignExpiry
	})
	if err != nil {
		return "", err
	}

	return presignedReq.URL, nil
}

func extensionFor(mimeType, name string) string {
	if ext := path.Ext(name); ext != "" {
		return ext
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// Package location resolves snapshot location URIs to blob stores.
//
// Supported forms:
//
//	/var/lib/rollup/wiki          local directory
//	file:///var/lib/rollup/wiki   local directory
//	mem://name                    process-wide in-memory store
//	s3://bucket/prefix            Amazon S3, with DynamoDB commits when Config.CommitTable is set
//	minio://host:port/bucket/prefix
package location

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/rollup/blobstore"
	minioblob "github.com/hupe1980/rollup/blobstore/minio"
	s3blob "github.com/hupe1980/rollup/blobstore/s3"
	ifs "github.com/hupe1980/rollup/internal/fs"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrUnsupportedScheme is returned for URI schemes without a store.
var ErrUnsupportedScheme = errors.New("unsupported location scheme")

// OpenError reports a location that could not be opened.
type OpenError struct {
	URI string
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open location %q: %v", e.URI, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Config carries the credentials and clients needed by remote schemes.
// The zero value works for local and in-memory locations and loads the
// default AWS configuration for s3 locations.
type Config struct {
	// FileSystem is used for local writes. Defaults to the os filesystem.
	FileSystem ifs.FileSystem

	// AWS overrides the default AWS configuration chain.
	AWS *aws.Config
	// Region overrides the AWS region.
	Region string
	// S3Client and DDBClient replace clients built from AWS.
	S3Client  s3blob.Client
	DDBClient s3blob.DDBClient
	// CommitTable enables DynamoDB commits of the CURRENT pointer.
	CommitTable string
	// Upload tunes S3 multipart uploads.
	Upload *s3blob.UploadConfig

	// MinIO credentials and transport.
	MinioAccessKey string
	MinioSecretKey string
	MinioSecure    bool
}

// Open returns the blob store for uri.
func Open(ctx context.Context, uri string, cfg Config) (blobstore.BlobStore, error) {
	store, err := open(ctx, uri, cfg)
	if err != nil {
		return nil, &OpenError{URI: uri, Err: err}
	}
	return store, nil
}

func open(ctx context.Context, uri string, cfg Config) (blobstore.BlobStore, error) {
	if uri == "" {
		return nil, errors.New("empty location")
	}
	if !strings.Contains(uri, "://") {
		return local(filepath.Clean(uri), cfg), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "file":
		return local(filepath.FromSlash(u.Path), cfg), nil
	case "mem":
		return memory(u.Host + u.Path), nil
	case "s3":
		return openS3(ctx, u, cfg)
	case "minio":
		return openMinio(u, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func local(dir string, cfg Config) blobstore.BlobStore {
	if cfg.FileSystem != nil {
		return blobstore.NewLocalStore(dir, blobstore.WithFileSystem(cfg.FileSystem))
	}
	return blobstore.NewLocalStore(dir)
}

var (
	memMu     sync.Mutex
	memStores = map[string]*blobstore.MemoryStore{}
)

// memory returns the same store for the same name within a process.
func memory(name string) blobstore.BlobStore {
	memMu.Lock()
	defer memMu.Unlock()
	s, ok := memStores[name]
	if !ok {
		s = blobstore.NewMemoryStore()
		memStores[name] = s
	}
	return s
}

func openS3(ctx context.Context, u *url.URL, cfg Config) (blobstore.BlobStore, error) {
	if u.Host == "" {
		return nil, errors.New("s3 location without bucket")
	}
	bucket, prefix := u.Host, strings.Trim(u.Path, "/")

	var awsCfg aws.Config
	if cfg.S3Client == nil || (cfg.CommitTable != "" && cfg.DDBClient == nil) {
		if cfg.AWS != nil {
			awsCfg = cfg.AWS.Copy()
		} else {
			var opts []func(*awsconfig.LoadOptions) error
			if cfg.Region != "" {
				opts = append(opts, awsconfig.WithRegion(cfg.Region))
			}
			loaded, err := awsconfig.LoadDefaultConfig(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			awsCfg = loaded
		}
		if cfg.Region != "" {
			awsCfg.Region = cfg.Region
		}
	}

	client := cfg.S3Client
	if client == nil {
		client = awss3.NewFromConfig(awsCfg)
	}
	var storeOpts []s3blob.Option
	if cfg.Upload != nil {
		storeOpts = append(storeOpts, s3blob.WithUploadConfig(*cfg.Upload))
	}
	store := s3blob.NewStore(client, bucket, prefix, storeOpts...)
	if cfg.CommitTable == "" {
		return store, nil
	}

	ddb := cfg.DDBClient
	if ddb == nil {
		ddb = dynamodb.NewFromConfig(awsCfg)
	}
	return s3blob.NewDDBCommitStore(store, ddb, cfg.CommitTable, "s3://"+bucket+"/"+prefix), nil
}

func openMinio(u *url.URL, cfg Config) (blobstore.BlobStore, error) {
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if u.Host == "" || bucket == "" {
		return nil, errors.New("minio location needs host and bucket")
	}
	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, err
	}
	return minioblob.NewStore(client, bucket, prefix), nil
}

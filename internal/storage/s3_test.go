package storage

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

func TestNewS3Service_RequiresBucket(t *testing.T) {
	_, err := NewS3Service(context.Background(), S3Config{})
	assert.ErrorContains(t, err, "bucket is required")
}

func TestNewS3Service_MinIOEndpoint(t *testing.T) {
	svc, err := NewS3Service(context.Background(), S3Config{
		Bucket:    "exports",
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	opts := svc.(*s3Service).client.Options()
	assert.True(t, opts.UsePathStyle)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://localhost:9000", *opts.BaseEndpoint)
}

func TestValidateContentType(t *testing.T) {
	assert.NoError(t, validateContentType("application/json"))
	assert.ErrorContains(t, validateContentType("application/yaml"), "invalid content type")
	assert.ErrorContains(t, validateContentType("image/png"), "invalid content type")
}

// setupMinIO starts a MinIO container, creates a bucket and returns a client to inspect it
func setupMinIO(t *testing.T) (S3Config, *miniogo.Client) {
	t.Helper()
	ctx := context.Background()

	container, err := tcminio.Run(ctx,
		"minio/minio:RELEASE.2024-10-29T16-01-48Z",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := miniogo.New(endpoint, &miniogo.Options{
		Creds: miniocreds.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	bucket := "gsmscope-test-" + uuid.New().String()[:8]
	require.NoError(t, client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}))

	return S3Config{
		Bucket:    bucket,
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}, client
}

func TestS3Service_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg, client := setupMinIO(t)
	ctx := context.Background()

	svc, err := NewS3Service(ctx, cfg)
	require.NoError(t, err)

	key := "exports/" + uuid.New().String() + ".json"
	body := []byte(`{"operators":{}}`)

	require.NoError(t, svc.UploadFile(ctx, key, body, "application/json"))

	obj, err := client.GetObject(ctx, cfg.Bucket, key, miniogo.GetObjectOptions{})
	require.NoError(t, err)
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, body, data)

	info, err := client.StatObject(ctx, cfg.Bucket, key, miniogo.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "application/json", info.ContentType)

	require.NoError(t, svc.DeleteFile(ctx, key))
	_, err = client.StatObject(ctx, cfg.Bucket, key, miniogo.StatObjectOptions{})
	assert.Error(t, err)

	assert.Error(t, svc.UploadFile(ctx, key, body, "text/html"))
}

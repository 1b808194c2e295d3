//go:build integration

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultMinioTestImage = "docker.io/minio/minio:RELEASE.2025-09-07T16-13-09Z"

func newMinIOImageStorageForTest(t *testing.T) (*MinIOImageStorage, *minio.Client, string) {
	t.Helper()

	ctx := context.Background()
	image := os.Getenv("MINIO_TEST_IMAGE")
	if strings.TrimSpace(image) == "" {
		image = defaultMinioTestImage
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: image,
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data", "--address", ":9000"},
			WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(45 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio test container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve minio host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		t.Fatalf("resolve minio port: %v", err)
	}
	endpoint := net.JoinHostPort(host, port.Port())
	bucket := fmt.Sprintf("product-images-it-%d", time.Now().UnixNano())

	storage, err := NewMinIOImageStorage(MinIOConfig{Endpoint: endpoint, AccessKey: "minioadmin", SecretKey: "minioadmin", Bucket: bucket})
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	client, err := minio.New(endpoint, &minio.Options{Creds: credentials.NewStaticV4("minioadmin", "minioadmin", "")})
	if err != nil {
		t.Fatalf("create verification client: %v", err)
	}
	waitForMinIOReady(t, client)
	return storage, client, bucket
}

func waitForMinIOReady(t *testing.T, client *minio.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		_, err := client.ListBuckets(ctx)
		if err == nil {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("minio readiness check timed out: %v", err)
		case <-ticker.C:
		}
	}
}

func TestMinIOImageStorageRoundTrip(t *testing.T) {
	storage, client, bucket := newMinIOImageStorageForTest(t)
	ctx := context.Background()
	svc := NewProductService(&stubProductRepo{}, storage, ProductImageOptions{MaxBytes: 1 << 20}, nil)

	product, err := svc.Create(ctx, CreateProductInput{Name: "Poster", Price: "$5", ImageUpload: &ImageUpload{Data: pngFixture(t)}})
	if err != nil {
		t.Fatalf("create with upload: %v", err)
	}
	key := product.ImageRef()
	info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		t.Fatalf("stat uploaded object: %v", err)
	}
	if info.ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", info.ContentType)
	}

	url, err := svc.ProductImageURL(ctx, product.ID)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("fetch presigned url: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(body) == 0 {
		t.Fatalf("unexpected presigned fetch: status=%d len=%d", resp.StatusCode, len(body))
	}

	if err := storage.Check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := svc.DeleteByID(ctx, product.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err == nil {
		t.Fatal("expected object removed after product delete")
	}
}

func TestMinIOImageStorageRejectsTraversalKeys(t *testing.T) {
	storage, err := NewMinIOImageStorage(MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "x"})
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	if err := storage.Upload(context.Background(), "../etc/passwd", []byte("x"), "image/png"); err != ErrInvalidObjectKey {
		t.Fatalf("expected invalid key, got %v", err)
	}
}

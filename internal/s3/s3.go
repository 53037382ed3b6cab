package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Client struct {
	client         *minio.Client
	fragmentBucket string
	frameBucket    string
}

func NewMinioClient(endpoint, accessKey, secretKey, fragmentBucket, frameBucket string) (*Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{
		client:         client,
		fragmentBucket: fragmentBucket,
		frameBucket:    frameBucket,
	}, nil
}

// fragmentKey путь фрагмента: <stream>/<fragmentNumber>.mkv
func fragmentKey(streamName, fragmentNumber string) string {
	return fmt.Sprintf("%s/%s.mkv", streamName, fragmentNumber)
}

// FragmentExists проверяет, доступен ли фрагмент (медиа может отставать от уведомления)
func (c *Client) FragmentExists(ctx context.Context, streamName, fragmentNumber string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.fragmentBucket, fragmentKey(streamName, fragmentNumber), minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// GetFragment скачивает медиа фрагмента
func (c *Client) GetFragment(ctx context.Context, streamName, fragmentNumber string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.fragmentBucket, fragmentKey(streamName, fragmentNumber), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get fragment: %w", err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("failed to read fragment: %w", err)
	}

	return buf.Bytes(), nil
}

// LatestFragment возвращает номер последнего фрагмента стрима
// (номера фрагментов — упорядоченные токены, берём максимальный ключ)
func (c *Client) LatestFragment(ctx context.Context, streamName string) (string, error) {
	objectCh := c.client.ListObjects(ctx, c.fragmentBucket, minio.ListObjectsOptions{
		Prefix:    streamName + "/",
		Recursive: true,
	})

	var latest string
	for object := range objectCh {
		if object.Err != nil {
			return "", fmt.Errorf("error listing fragments: %w", object.Err)
		}

		if strings.HasSuffix(object.Key, "/") {
			continue
		}

		if object.Key > latest {
			latest = object.Key
		}
	}

	if latest == "" {
		return "", nil
	}

	name := strings.TrimPrefix(latest, streamName+"/")
	return strings.TrimSuffix(name, ".mkv"), nil
}

// FrameKey формирует путь кадра: frames/YYYY/MM/DD/HH/<ts>_<frameID>.jpg
func FrameKey(ts int64, frameID string) string {
	t := time.Unix(ts, 0).UTC()
	return fmt.Sprintf("frames/%s/%d_%s.jpg", t.Format("2006/01/02/15"), ts, frameID)
}

// UploadFrame сохраняет JPEG кадра для операторского интерфейса
func (c *Client) UploadFrame(ctx context.Context, key string, data []byte) error {
	_, err := c.client.PutObject(
		ctx,
		c.frameBucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "image/jpeg",
		},
	)
	if err != nil {
		return fmt.Errorf("failed to upload frame to S3: %w", err)
	}

	return nil
}

// GetFrame скачивает сохранённый кадр
func (c *Client) GetFrame(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.frameBucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get frame: %w", err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	return buf.Bytes(), nil
}

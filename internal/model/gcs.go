package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"k8s.io/klog/v2"
)

// gcsReader closes the storage client together with the object reader.
type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func openGCSObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	log := klog.FromContext(ctx)
	gcsURL := "gs://" + bucket + "/" + object

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}

	log.Info("downloading model from GCS", "source", gcsURL)

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("opening object from GCS %q: %w", gcsURL, os.ErrNotExist)
		}
		return nil, fmt.Errorf("opening object from GCS %q: %w", gcsURL, err)
	}

	return &gcsReader{Reader: r, client: client}, nil
}

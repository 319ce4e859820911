// Package storage implements the blob-store adapter on MongoDB GridFS.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"whatsapp-gateway/internal/core/ports"
)

// Ensure GridFSStore implements BlobStore
var _ ports.BlobStore = (*GridFSStore)(nil)

// GridFSStore persists media bytes in GridFS and hands out URLs under
// /files/{name} on this instance's public base URL. File names are unique
// by construction (random, collision-resistant), so lookup is by name.
type GridFSStore struct {
	bucket        *gridfs.Bucket
	publicBaseURL string
}

// NewGridFSStore creates a new GridFS-backed blob store
func NewGridFSStore(bucket *gridfs.Bucket, publicBaseURL string) *GridFSStore {
	return &GridFSStore{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Put stores the content under fileName and returns the retrievable URL.
func (s *GridFSStore) Put(ctx context.Context, fileName, mimeType string, content []byte) (string, error) {
	metadata := bson.M{
		"mime_type":   mimeType,
		"uploaded_at": time.Now(),
	}

	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := s.bucket.OpenUploadStream(fileName, opts)
	if err != nil {
		return "", fmt.Errorf("open upload stream: %w", err)
	}

	if _, err := io.Copy(stream, bytes.NewReader(content)); err != nil {
		stream.Close()
		return "", fmt.Errorf("write blob %s: %w", fileName, err)
	}

	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("close upload stream: %w", err)
	}

	url := s.FileURL(fileName)

	slog.Debug("Blob stored",
		"file_name", fileName,
		"mime_type", mimeType,
		"size", len(content),
	)

	return url, nil
}

// Open streams a stored blob by file name, returning the reader, its MIME
// type and length. The caller closes the reader.
func (s *GridFSStore) Open(ctx context.Context, fileName string) (io.ReadCloser, string, int64, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(fileName)
	if err != nil {
		return nil, "", 0, fmt.Errorf("open blob %s: %w", fileName, err)
	}

	file := stream.GetFile()

	mimeType := "application/octet-stream"
	if file.Metadata != nil {
		var metadata bson.M
		if err := bson.Unmarshal(file.Metadata, &metadata); err == nil {
			if mt, ok := metadata["mime_type"].(string); ok && mt != "" {
				mimeType = mt
			}
		}
	}

	return stream, mimeType, file.Length, nil
}

// FileURL returns the public URL a stored file name resolves to.
func (s *GridFSStore) FileURL(fileName string) string {
	return fmt.Sprintf("%s/files/%s", s.publicBaseURL, fileName)
}

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"safegate/interfaces"
	"safegate/models"
	"safegate/utils"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

const (
	MaxPhotoDimension = 1280
	MaxPhotoSize      = 10 << 20
	photoQuality      = 85
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectStore persists an uploaded object and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

type GCSObjectStore struct {
	bucket     *storage.BucketHandle
	bucketName string
}

func NewGCSObjectStore(client *storage.Client, bucketName string) *GCSObjectStore {
	return &GCSObjectStore{
		bucket:     client.Bucket(bucketName),
		bucketName: bucketName,
	}
}

func (s *GCSObjectStore) Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	writer := s.bucket.Object(objectPath).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "private, max-age=3600"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return "", fmt.Errorf("gcs write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("gcs close: %w", err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, objectPath), nil
}

// LocalObjectStore writes under a directory served at baseURL. Used when no
// bucket is configured.
type LocalObjectStore struct {
	root    string
	baseURL string
}

func NewLocalObjectStore(root, baseURL string) *LocalObjectStore {
	return &LocalObjectStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *LocalObjectStore) Put(_ context.Context, objectPath, _ string, data []byte) (string, error) {
	target := filepath.Join(s.root, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", err
	}
	return s.baseURL + "/" + objectPath, nil
}

// MediaService handles emergency photo attachments.
type MediaService struct {
	store    ObjectStore
	attacher interfaces.PhotoAttacher
	now      func() time.Time
}

func NewMediaService(store ObjectStore, attacher interfaces.PhotoAttacher) *MediaService {
	return &MediaService{store: store, attacher: attacher, now: time.Now}
}

func (ms *MediaService) ValidatePhoto(header *multipart.FileHeader) error {
	if header.Size > MaxPhotoSize {
		return utils.NewBadRequestError("photo exceeds the 10MB limit")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "image/jpeg" && contentType != "image/png" {
		return utils.NewBadRequestError("photo must be a JPEG or PNG image")
	}
	return nil
}

// PhotoObjectPath is where a report's photo is stored.
func PhotoObjectPath(reportID, filename string, at time.Time) string {
	name := unsafeFilenameChars.ReplaceAllString(filepath.Base(filename), "_")
	name = strings.TrimSuffix(name, path.Ext(name)) + ".jpg"
	return fmt.Sprintf("emergencies/%s/%d_%s", reportID, at.Unix(), name)
}

// ScaleToFit shrinks img so its long edge is at most maxDimension.
func ScaleToFit(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxDimension && height <= maxDimension {
		return img
	}

	newWidth, newHeight := maxDimension, maxDimension
	if width > height {
		newHeight = height * maxDimension / width
	} else {
		newWidth = width * maxDimension / height
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

// UploadEmergencyPhoto normalizes the image to a bounded JPEG, stores it
// and attaches it to the report.
func (ms *MediaService) UploadEmergencyPhoto(ctx context.Context, reportID, filename string, r io.Reader) (*models.EmergencyPhoto, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxPhotoSize+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxPhotoSize {
		return nil, utils.NewBadRequestError("photo exceeds the 10MB limit")
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, utils.NewBadRequestError("photo must be a JPEG or PNG image")
	}

	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, ScaleToFit(img, MaxPhotoDimension), &jpeg.Options{Quality: photoQuality}); err != nil {
		return nil, utils.NewInternalError("failed to encode photo", err)
	}

	now := ms.now()
	objectPath := PhotoObjectPath(reportID, filename, now)
	url, err := ms.store.Put(ctx, objectPath, "image/jpeg", encoded.Bytes())
	if err != nil {
		return nil, utils.NewRemoteError("uploadPhoto", err)
	}

	photo := models.EmergencyPhoto{URL: url, Path: objectPath, UploadedAt: now}
	if ms.attacher != nil {
		if err := ms.attacher.AttachPhoto(ctx, reportID, photo); err != nil {
			var serviceErr utils.ServiceError
			if errors.As(err, &serviceErr) {
				return nil, err
			}
			return nil, utils.NewRemoteError("attachPhoto", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"reportId": reportID,
		"format":   format,
		"bytes":    encoded.Len(),
	}).Info("Emergency photo uploaded")
	return &photo, nil
}

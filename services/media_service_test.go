package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingObjectStore struct{}

func (failingObjectStore) Put(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestScaleToFit(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 640, 480))
	assert.Same(t, small, ScaleToFit(small, MaxPhotoDimension))

	wide := ScaleToFit(image.NewRGBA(image.Rect(0, 0, 4000, 2000)), 1280)
	assert.Equal(t, 1280, wide.Bounds().Dx())
	assert.Equal(t, 640, wide.Bounds().Dy())

	tall := ScaleToFit(image.NewRGBA(image.Rect(0, 0, 1000, 5000)), 1280)
	assert.Equal(t, 256, tall.Bounds().Dx())
	assert.Equal(t, 1280, tall.Bounds().Dy())
}

func TestPhotoObjectPath(t *testing.T) {
	at := time.Unix(1767225600, 0)
	assert.Equal(t, "emergencies/EMG-1/1767225600_scene.jpg", PhotoObjectPath("EMG-1", "scene.png", at))
	assert.Equal(t, "emergencies/EMG-1/1767225600_my_photo_1_.jpg", PhotoObjectPath("EMG-1", "../my photo (1).heic", at))
}

func TestValidatePhoto(t *testing.T) {
	ms := NewMediaService(nil, nil)
	header := func(size int64, contentType string) *multipart.FileHeader {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", contentType)
		return &multipart.FileHeader{Filename: "a.jpg", Size: size, Header: h}
	}

	assert.NoError(t, ms.ValidatePhoto(header(1024, "image/jpeg")))
	assert.NoError(t, ms.ValidatePhoto(header(1024, "image/png")))
	assert.Error(t, ms.ValidatePhoto(header(1024, "application/pdf")))
	assert.Error(t, ms.ValidatePhoto(header(MaxPhotoSize+1, "image/jpeg")))
}

func TestUploadEmergencyPhoto_LocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	remote := NewMemoryReportService()
	_, err := remote.CreateReport(ctx, testReport("EMG-1", time.Now()))
	require.NoError(t, err)

	ms := NewMediaService(NewLocalObjectStore(dir, "/uploads/"), remote)
	photo, err := ms.UploadEmergencyPhoto(ctx, "EMG-1", "scene.png", bytes.NewReader(encodePNG(t, 2000, 1000)))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(photo.URL, "/uploads/emergencies/EMG-1/"))
	assert.True(t, strings.HasSuffix(photo.Path, "_scene.jpg"))

	written, err := os.Open(filepath.Join(dir, filepath.FromSlash(photo.Path)))
	require.NoError(t, err)
	defer written.Close()
	cfg, format, err := image.DecodeConfig(written)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, MaxPhotoDimension, cfg.Width)

	report, _ := remote.Get("EMG-1")
	require.Len(t, report.Photos, 1)
	assert.Equal(t, photo.URL, report.Photos[0].URL)
}

func TestUploadEmergencyPhoto_Errors(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryReportService()

	ms := NewMediaService(NewLocalObjectStore(t.TempDir(), "/uploads"), remote)
	_, err := ms.UploadEmergencyPhoto(ctx, "EMG-1", "notes.txt", strings.NewReader("not an image"))
	assert.Error(t, err)

	_, err = ms.UploadEmergencyPhoto(ctx, "EMG-404", "scene.png", bytes.NewReader(encodePNG(t, 10, 10)))
	assert.Error(t, err, "unknown report")

	ms = NewMediaService(failingObjectStore{}, remote)
	_, err = ms.UploadEmergencyPhoto(ctx, "EMG-1", "scene.png", bytes.NewReader(encodePNG(t, 10, 10)))
	assert.ErrorContains(t, err, "bucket unavailable")
}

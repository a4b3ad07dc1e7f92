// Package qrcode renders booking check-in tokens as scannable PNG images.
package qrcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	goqrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// PublicPath is the URL prefix under which rendered images are served.
const PublicPath = "/static/qrcodes"

const imageSize = 512

// Artifact describes one rendered QR image.
type Artifact struct {
	Path string
	URL  string
}

// Renderer turns a (booking id, token) pair into an image the guest can present.
type Renderer interface {
	Render(ctx context.Context, bookingID uuid.UUID, token string) (Artifact, error)
	Discard(ctx context.Context, artifact Artifact) error
}

// Payload is the JSON encoded into each QR image.
type Payload struct {
	BookingID string `json:"booking_id"`
	Token     string `json:"token"`
}

// FileRenderer writes PNG files into a directory served as static content.
type FileRenderer struct {
	dir     string
	baseURL string
	logger  *zap.Logger
}

// NewFileRenderer creates the output directory if needed. baseURL may be empty, in
// which case artifact URLs are host-relative.
func NewFileRenderer(dir, baseURL string, logger *zap.Logger) (*FileRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create qrcode dir %s: %w", dir, err)
	}
	return &FileRenderer{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// FileName returns the image file name for a booking token.
func FileName(bookingID uuid.UUID, token string) string {
	return fmt.Sprintf("booking_%s_%s.png", bookingID, token)
}

// Render encodes the payload at the highest recovery level and writes it to disk.
func (r *FileRenderer) Render(ctx context.Context, bookingID uuid.UUID, token string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	payload, err := json.Marshal(Payload{BookingID: bookingID.String(), Token: token})
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to encode qrcode payload: %w", err)
	}

	name := FileName(bookingID, token)
	path := filepath.Join(r.dir, name)
	if err := goqrcode.WriteFile(string(payload), goqrcode.Highest, imageSize, path); err != nil {
		return Artifact{}, fmt.Errorf("failed to write qrcode image: %w", err)
	}

	return Artifact{
		Path: path,
		URL:  r.baseURL + PublicPath + "/" + name,
	}, nil
}

// Discard removes a previously rendered image. Missing files are ignored.
func (r *FileRenderer) Discard(_ context.Context, artifact Artifact) error {
	if artifact.Path == "" {
		return nil
	}
	if err := os.Remove(artifact.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("failed to discard qrcode image", zap.String("path", artifact.Path), zap.Error(err))
		return fmt.Errorf("failed to discard qrcode image: %w", err)
	}
	return nil
}

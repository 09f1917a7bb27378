// Package download saves generated images to disk.
package download

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	_ "golang.org/x/image/webp"

	"github.com/blacktop/fluxstudio/internal/api"
)

// Formats images can be saved as.
var Formats = []string{"png", "jpeg", "gif"}

const DefaultQuality = 95

// Source is where image bytes come from.
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	Download(ctx context.Context, dr api.DownloadRequest) ([]byte, error)
}

// Image identifies one image of the grid.
type Image struct {
	Ref       string
	SessionID string // empty for images that were not generated by the service
	Index     int
	Filtered  bool
	Prompt    string
}

type Saver struct {
	src     Source
	folder  string
	format  string
	quality int
	logger  *log.Logger
	now     func() time.Time
}

// NewSaver returns a Saver writing format images into folder (the working
// directory when empty).
func NewSaver(src Source, folder, format string, quality int, logger *log.Logger) (*Saver, error) {
	format = normalize(format)
	if !slices.Contains(Formats, format) {
		return nil, fmt.Errorf("invalid format %q (must be one of: %s)", format, strings.Join(Formats, ", "))
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Saver{
		src:     src,
		folder:  folder,
		format:  format,
		quality: quality,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Save writes img to disk and returns the path it was written to. Session
// images are converted by the service; anything else is fetched and
// converted locally.
func (s *Saver) Save(ctx context.Context, img Image) (string, error) {
	data, err := s.load(ctx, img)
	if err != nil {
		return "", err
	}

	filename := Filename(img.Prompt, img.Index, s.format, s.now())
	if s.folder != "" {
		if err := os.MkdirAll(s.folder, 0o755); err != nil {
			return "", fmt.Errorf("error creating output folder: %w", err)
		}
		filename = filepath.Join(s.folder, filename)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("error saving image: %w", err)
	}
	s.logger.Info("Image saved", "path", filename)
	return filename, nil
}

func (s *Saver) load(ctx context.Context, img Image) ([]byte, error) {
	if img.SessionID != "" {
		data, err := s.src.Download(ctx, api.DownloadRequest{
			SessionID: img.SessionID,
			ImageID:   img.Index,
			Filtered:  img.Filtered,
			Format:    s.format,
			Quality:   s.quality,
		})
		if err == nil {
			return data, nil
		}
		s.logger.Warn("Service download failed, fetching image directly", "err", err)
	}
	raw, err := s.src.Fetch(ctx, img.Ref)
	if err != nil {
		return nil, fmt.Errorf("error fetching image: %w", err)
	}
	return Convert(raw, s.format, s.quality)
}

// Convert re-encodes an image (png, jpeg, gif or webp) as format.
func Convert(data []byte, format string, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}
	buf := new(bytes.Buffer)
	switch normalize(format) {
	case "png":
		err = png.Encode(buf, img)
	case "jpeg":
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: quality})
	case "gif":
		err = gif.Encode(buf, img, nil)
	default:
		return nil, fmt.Errorf("invalid format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("error encoding %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Filename builds a file name from the prompt, the image index and the
// current time.
func Filename(prompt string, index int, format string, now time.Time) string {
	// Sanitize the prompt for use in a filename
	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(prompt))
	if r := []rune(sanitized); len(r) > 50 {
		sanitized = string(r[:50])
	}
	if sanitized == "" {
		sanitized = "image"
	}
	return fmt.Sprintf("%s_%d_%d.%s", sanitized, index, now.Unix(), extension(format))
}

func normalize(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "jpg" {
		return "jpeg"
	}
	return format
}

func extension(format string) string {
	if f := normalize(format); f != "jpeg" {
		return f
	}
	return "jpg"
}

// Package validate checks upload candidates and account input before they
// go anywhere near the network.
package validate

import (
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"regexp"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"grovia-client/pkg/format"
)

// MaxImageSize is the upload size cap.
const MaxImageSize = 5 * 1024 * 1024

// Default minimum pixel dimensions, matching the model's input resolution.
const (
	DefaultMinWidth  = 224
	DefaultMinHeight = 224
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// ErrUnsupportedFormat is returned for files outside the JPEG/PNG/WebP
// allow-list.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrFileTooLarge is returned when the file exceeds MaxImageSize.
var ErrFileTooLarge = errors.New("image file too large")

// ErrImageTooSmall is returned when the image is below the minimum pixel
// dimensions.
var ErrImageTooSmall = errors.New("image resolution too small")

// ImageFile checks that the file at path exists, is an allowed image type
// (sniffed from content, not the extension), and fits the size cap.
func ImageFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("no file selected: %w", err)
	}

	if info.Size() > MaxImageSize {
		return fmt.Errorf("%w: %s exceeds the %s limit",
			ErrFileTooLarge, format.FileSize(info.Size()), format.FileSize(MaxImageSize))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return fmt.Errorf("could not read file: %w", err)
	}

	contentType := http.DetectContentType(header[:n])
	if !allowedImageTypes[contentType] {
		return fmt.Errorf("%w: %s; use JPG, JPEG, PNG, or WebP", ErrUnsupportedFormat, contentType)
	}

	return nil
}

// ImageDimensions checks the image at path against minimum pixel dimensions.
// Zero minimums fall back to the model's default input resolution.
func ImageDimensions(path string, minWidth, minHeight int) error {
	if minWidth <= 0 {
		minWidth = DefaultMinWidth
	}
	if minHeight <= 0 {
		minHeight = DefaultMinHeight
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("could not load image, the file may be corrupt: %w", err)
	}

	if cfg.Width < minWidth || cfg.Height < minHeight {
		return fmt.Errorf("%w: got %dx%d, need at least %dx%d",
			ErrImageTooSmall, cfg.Width, cfg.Height, minWidth, minHeight)
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Email reports whether the address looks deliverable.
func Email(email string) bool {
	return emailPattern.MatchString(email)
}

var (
	hasLetter = regexp.MustCompile(`[a-zA-Z]`)
	hasDigit  = regexp.MustCompile(`[0-9]`)
)

// Password enforces the account password policy: at least 8 characters with
// both letters and digits.
func Password(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if !hasLetter.MatchString(password) || !hasDigit.MatchString(password) {
		return errors.New("password must contain both letters and digits")
	}
	return nil
}

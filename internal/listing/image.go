package listing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// PlaceholderImageURL is used when no image was selected or conversion failed.
const PlaceholderImageURL = "https://picsum.photos/800/600"

// DefaultMaxImageSize is the default upper bound for a selected image (10MB).
const DefaultMaxImageSize = 10 * 1024 * 1024

var (
	ErrEmptyImage    = errors.New("image is empty")
	ErrImageTooLarge = errors.New("image exceeds maximum size")
)

// ReadImage reads an uploaded image, enforcing maxSize.
func ReadImage(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}

	// Read one byte past the limit so an oversize file can be told apart
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrImageTooLarge, maxSize)
	}
	return data, nil
}

// ToDataURI converts the file into a self-contained data URI.
func ToDataURI(file *ImageFile) (string, error) {
	if file == nil || len(file.Data) == 0 {
		return "", ErrEmptyImage
	}

	return "data:" + MediaType(file) + ";base64," + base64.StdEncoding.EncodeToString(file.Data), nil
}

// MediaType returns the declared content type without parameters, sniffing
// the bytes when the browser did not send a useful one.
func MediaType(file *ImageFile) string {
	if file.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(file.ContentType); err == nil && mt != "application/octet-stream" {
			return strings.ToLower(mt)
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(file.Data))
	return mt
}

// ResolveImage returns the image reference for a new listing: the placeholder
// when there is no file, otherwise the file as a data URI. Conversion errors
// are logged and fall back to the placeholder.
func ResolveImage(ctx context.Context, file *ImageFile) string {
	if file == nil {
		return PlaceholderImageURL
	}

	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Str("file", file.Name).Msg("image conversion aborted, using placeholder")
		return PlaceholderImageURL
	}

	uri, err := ToDataURI(file)
	if err != nil {
		log.Error().Err(err).Str("file", file.Name).Msg("image processing error")
		return PlaceholderImageURL
	}

	log.Debug().Str("file", file.Name).Int("bytes", len(file.Data)).Msg("image converted to data uri")
	return uri
}

// Package imaging loads image attachments into the opaque encoded form
// carried by image markers: a base64 body plus a media type.
package imaging

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/afero"
)

// DefaultMaxBytes caps attachment size before encoding.
const DefaultMaxBytes = 5 * 1024 * 1024

// Attachment is an encoded image ready to embed in a marker or send as
// an inline content block.
type Attachment struct {
	MediaType string
	Data      string
}

// Loader reads attachments from a filesystem.
type Loader struct {
	fs       afero.Fs
	maxBytes int64
}

// NewLoader creates a loader over fs. A maxBytes of 0 uses the default
// cap.
func NewLoader(fs afero.Fs, maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{fs: fs, maxBytes: maxBytes}
}

// Load reads and encodes the image at path. Non-image files and files
// over the size cap are rejected.
func (l *Loader) Load(path string) (*Attachment, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("attachment %s is %d bytes, limit is %d", path, info.Size(), l.maxBytes)
	}

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}

	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("attachment %s is %s, not an image", path, mediaType)
	}

	return &Attachment{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

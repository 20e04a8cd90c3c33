package bridge

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var ErrInvalidImage = errors.New("invalid image payload")

var dataURIHeader = regexp.MustCompile(`^data:[^;]*;base64,`)

// StripDataURI removes a leading "data:<mime>;base64," header
func StripDataURI(s string) string {
	return dataURIHeader.ReplaceAllString(s, "")
}

// WithDataURI prefixes bare base64 with a data-URI header
func WithDataURI(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// DecodeImage strips any data-URI header, decodes the base64 body and checks
// that the bytes are an image. It returns the bare base64, the decoded bytes
// and the detected MIME type.
func DecodeImage(s string) (string, []byte, string, error) {
	bare := strings.TrimSpace(StripDataURI(s))
	if bare == "" {
		return "", nil, "", fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	raw, err := base64.StdEncoding.DecodeString(bare)
	if err != nil {
		return "", nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	mtype := mimetype.Detect(raw)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", nil, "", fmt.Errorf("%w: got %s", ErrInvalidImage, mtype.String())
	}
	return bare, raw, mtype.String(), nil
}

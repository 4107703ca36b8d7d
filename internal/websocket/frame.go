package websocket

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedFrame = errors.New("malformed frame data URL")
	ErrFrameTooLarge  = errors.New("frame exceeds size limit")
)

// DecodeFrame decodes a base64 image data URL such as the one produced by
// canvas.toDataURL("image/jpeg"). maxBytes <= 0 disables the size check.
func DecodeFrame(dataURL string, maxBytes int64) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, "", ErrMalformedFrame
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrMalformedFrame
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 || !strings.HasPrefix(contentType, "image/") {
		return nil, "", ErrMalformedFrame
	}

	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(encoded))) > maxBytes+2 {
		return nil, "", ErrFrameTooLarge
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(payload) == 0 {
		return nil, "", ErrMalformedFrame
	}
	if maxBytes > 0 && int64(len(payload)) > maxBytes {
		return nil, "", ErrFrameTooLarge
	}
	return payload, contentType, nil
}

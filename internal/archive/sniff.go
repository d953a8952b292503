package archive

import (
	"bytes"
	"fmt"
	"image"

	// Registered so DecodeConfig can identify the formats sources
	// actually serve. Extensions in source URLs cannot be trusted; some
	// strips serve images with none at all.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var extForFormat = map[string]string{
	"png":  "png",
	"jpeg": "jpg",
	"gif":  "gif",
	"webp": "webp",
}

// SniffExt determines the file extension for image bytes from their
// content.
func SniffExt(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("cannot determine image type: %w", err)
	}
	if ext, ok := extForFormat[format]; ok {
		return ext, nil
	}
	return format, nil
}

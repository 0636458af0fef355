package ops

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

// encoded pet images arrive as data URIs: a MIME type marker followed by
// base64 bytes.
var dataURIPattern = regexp.MustCompile(`^data:([a-zA-Z0-9]+/[a-zA-Z0-9-.+]+)(;[^,]*)?,(.*)$`)

var extensionByMIME = map[string]string{
	"image/jpeg":    "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// blobKeyFunc synthesizes a storage key from the image base name and the
// extension derived from its MIME type. Swappable so tests stay
// deterministic and so a hash-based strategy can replace the random one
// without touching call sites.
type blobKeyFunc func(baseName, ext string) string

// randomImageKey appends a pseudo-random integer in [1,1000]. No collision
// check is performed; a rare silent overwrite is accepted in exchange for
// skipping a uniqueness query.
func randomImageKey(baseName, ext string) string {
	return fmt.Sprintf("petImages/%s%d.%s", baseName, 1+rand.IntN(1000), ext)
}

// ingestImage decodes an embedded-encoded image, persists the bytes under a
// generated key, and mints a long-lived signed retrieval URL. Both addPet
// and updatePet go through here.
func (s *Service) ingestImage(ctx context.Context, encoded, baseName string) (string, error) {
	mimeType, data, err := decodeImagePayload(encoded)
	if err != nil {
		return "", err
	}

	ext := mimeType[strings.Index(mimeType, "/")+1:]
	if known, ok := extensionByMIME[mimeType]; ok {
		ext = known
	}
	key := s.keyFor(baseName, ext)

	if err := s.blobs.Save(ctx, key, data, mimeType); err != nil {
		return "", fmt.Errorf("save image %s: %w", key, err)
	}

	url, err := s.blobs.SignedURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("sign image url %s: %w", key, err)
	}
	return url, nil
}

func decodeImagePayload(encoded string) (mimeType string, data []byte, err error) {
	match := dataURIPattern.FindStringSubmatch(encoded)
	if match == nil {
		return "", nil, failInvalidArgument("malformed image payload")
	}
	mimeType = match[1]
	if !strings.Contains(match[2], "base64") {
		return "", nil, failInvalidArgument("malformed image payload")
	}
	data, decodeErr := base64.StdEncoding.DecodeString(match[3])
	if decodeErr != nil {
		return "", nil, failInvalidArgument("malformed image payload")
	}
	return mimeType, data, nil
}

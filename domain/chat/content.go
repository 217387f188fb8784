package chat

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// detectLimit caps how many decoded bytes are sniffed; mimetype only needs
// the header of the blob.
const detectLimit = 3072

// DetectContent classifies an opaque content blob. Voice and image payloads
// arrive as data URIs from the browser recorder; everything else is treated
// as plain text. The declared media type of a data URI is ignored in favor
// of sniffing the decoded bytes, since clients routinely mislabel blobs.
func DetectContent(content string) (ContentKind, string) {
	if !strings.HasPrefix(content, "data:") {
		return KindText, "text/plain"
	}

	payload := content
	if idx := strings.Index(content, ","); idx >= 0 {
		payload = content[idx+1:]
	}
	// Keep the truncation aligned on a base64 quantum so decoding still works.
	if max := detectLimit * 4 / 3; len(payload) > max {
		payload = payload[:max-max%4]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil || len(raw) == 0 {
		return KindAttachment, "application/octet-stream"
	}
	return KindAttachment, mimetype.Detect(raw).String()
}

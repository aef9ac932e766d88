// Package media converts uploaded files into transport-ready message payloads,
// including the ffmpeg transcoding step that normalizes audio for WhatsApp.
package media

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Category is the media category a payload is built for.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
)

// ErrInvalidMimeType means no mimetype could be resolved for an asset.
var ErrInvalidMimeType = errors.New("media: invalid mimetype")

// The stdlib builtin table is tiny and the system mime.types file is not
// guaranteed to exist, so the extensions uploads actually arrive with are
// registered explicitly.
func init() {
	for ext, mimetype := range map[string]string{
		".mp4":  "video/mp4",
		".mov":  "video/quicktime",
		".mkv":  "video/x-matroska",
		".webm": "video/webm",
		".3gp":  "video/3gpp",
		".mp3":  "audio/mpeg",
		".wav":  "audio/wav",
		".ogg":  "audio/ogg",
		".oga":  "audio/ogg",
		".opus": "audio/opus",
		".m4a":  "audio/mp4",
		".aac":  "audio/aac",
		".amr":  "audio/amr",
		".txt":  "text/plain",
		".csv":  "text/csv",
		".zip":  "application/zip",
		".doc":  "application/msword",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".xls":  "application/vnd.ms-excel",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	} {
		mime.AddExtensionType(ext, mimetype)
	}
}

// Asset is an uploaded or flow-provided file handed to the dispatch pipeline.
// It is transient: audio assets are replaced in place by their transcoded
// derivative during dispatch.
type Asset struct {
	OriginalName string
	Path         string
	Mimetype     string
	Caption      string
}

// Classify resolves path (by extension, falling back to the declared
// mimetype) into a media category and the resolved mimetype. Pure and
// side-effect-free. Returns ErrInvalidMimeType when neither the extension
// nor the declared mimetype yields a type.
func Classify(path, declared string) (Category, string, error) {
	mimetype := mime.TypeByExtension(filepath.Ext(path))
	if mimetype == "" {
		mimetype = declared
	}
	if mimetype == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidMimeType, path)
	}

	// Strip parameters such as "; charset=utf-8".
	if i := strings.IndexByte(mimetype, ';'); i >= 0 {
		mimetype = strings.TrimSpace(mimetype[:i])
	}

	primary, _, _ := strings.Cut(mimetype, "/")
	switch primary {
	case "image":
		return CategoryImage, mimetype, nil
	case "video":
		return CategoryVideo, mimetype, nil
	case "audio":
		return CategoryAudio, mimetype, nil
	case "application", "text":
		return CategoryDocument, mimetype, nil
	default:
		// Unrecognized primary types ride the document path, which keeps
		// the filename and mimetype intact for the recipient.
		return CategoryDocument, mimetype, nil
	}
}

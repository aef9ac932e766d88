package media

import "strings"

// voiceNoteMarker appears in filenames of audio recorded in the web client;
// those go out as push-to-talk voice notes rather than audio attachments.
const voiceNoteMarker = "audio-record-site"

// MP3Mimetype is the mimetype every transcoded audio payload carries.
const MP3Mimetype = "audio/mpeg"

// Payload is the transport-ready message envelope, a tagged variant with one
// concrete type per category. Constructed fresh per send, never persisted.
type Payload interface {
	// Kind names the variant ("image", "video", "audio", "document",
	// "text", "buttons").
	Kind() string
}

// ImagePayload carries image bytes with an optional caption.
type ImagePayload struct {
	Data    []byte
	Caption string
}

// VideoPayload carries video bytes; the filename is retained for
// client-side display.
type VideoPayload struct {
	Data     []byte
	Caption  string
	FileName string
}

// AudioPayload carries transcoded audio. PTT marks a recorded voice note.
type AudioPayload struct {
	Data     []byte
	Mimetype string
	Caption  string
	PTT      bool
}

// DocumentPayload carries a document or other application/text file.
type DocumentPayload struct {
	Data     []byte
	Caption  string
	FileName string
	Mimetype string
}

// TextPayload carries a plain text message.
type TextPayload struct {
	Text string
}

// ButtonsPayload carries a templated quick-action message.
type ButtonsPayload struct {
	Text       string
	Buttons    []Button
	HeaderType int
}

// Button kinds.
const (
	ButtonURL        = "url"
	ButtonCall       = "call"
	ButtonQuickReply = "quick_reply"
)

// Button is one action inside a ButtonsPayload.
type Button struct {
	Index       int
	Kind        string
	DisplayText string
	URL         string
	PhoneNumber string
	ID          string
}

func (ImagePayload) Kind() string    { return "image" }
func (VideoPayload) Kind() string    { return "video" }
func (AudioPayload) Kind() string    { return "audio" }
func (DocumentPayload) Kind() string { return "document" }
func (TextPayload) Kind() string     { return "text" }
func (ButtonsPayload) Kind() string  { return "buttons" }

// IsVoiceNote reports whether an asset's original filename marks it as a
// voice note recorded in the web client.
func IsVoiceNote(originalName string) bool {
	return strings.Contains(originalName, voiceNoteMarker)
}

// BuildPayload constructs the payload variant for a classified asset. Pure
// construction: data holds the already-read file bytes, mimetype is the
// resolved (post-transcode, for audio) mimetype, caption the formatted
// caption text. Unrecognized categories fall back to image.
func BuildPayload(category Category, asset Asset, data []byte, mimetype, caption string) Payload {
	switch category {
	case CategoryVideo:
		return VideoPayload{
			Data:     data,
			Caption:  caption,
			FileName: asset.OriginalName,
		}
	case CategoryAudio:
		return AudioPayload{
			Data:     data,
			Mimetype: MP3Mimetype,
			Caption:  caption,
			PTT:      IsVoiceNote(asset.OriginalName),
		}
	case CategoryDocument:
		return DocumentPayload{
			Data:     data,
			Caption:  caption,
			FileName: asset.OriginalName,
			Mimetype: mimetype,
		}
	default:
		return ImagePayload{
			Data:    data,
			Caption: caption,
		}
	}
}

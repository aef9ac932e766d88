package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wadesk/wadesk/internal/db"
	"github.com/wadesk/wadesk/internal/media"
	"github.com/wadesk/wadesk/internal/models"
	"github.com/wadesk/wadesk/internal/transport"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

// writeStubEncoder writes a shell script standing in for ffmpeg: the output
// path is the second-to-last argument.
func writeStubEncoder(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg-stub")
	script := "#!/bin/sh\nwhile [ $# -gt 2 ]; do shift; done\necho mp3 > \"$1\"\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write stub encoder: %v", err)
	}
	return path
}

type fixture struct {
	dispatcher *Dispatcher
	gdb        *gorm.DB
	adapter    *transport.RecorderAdapter
	ticket     *models.Ticket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := openTestDB(t)

	adapter := transport.NewRecorderAdapter()
	registry := transport.NewRegistry()
	registry.Register(5, adapter)

	transcoder, err := media.NewTranscoder(media.TranscoderOpts{
		FFmpeg:    writeStubEncoder(t),
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new transcoder: %v", err)
	}

	dispatcher, err := New(Opts{DB: gdb, Sessions: registry, Transcoder: transcoder})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	contact := models.Contact{Name: "Alice Santos", Number: "5511999990000"}
	if err := gdb.Create(&contact).Error; err != nil {
		t.Fatalf("create contact: %v", err)
	}
	ticket := models.Ticket{CompanyID: 7, Status: models.TicketPending, ChannelID: 5, ContactID: contact.ID, Contact: contact}
	if err := gdb.Create(&ticket).Error; err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	return &fixture{dispatcher: dispatcher, gdb: gdb, adapter: adapter, ticket: &ticket}
}

func writeAsset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	return path
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Error("expected error for nil db")
	}
	gdb := openTestDB(t)
	if _, err := New(Opts{DB: gdb}); err == nil {
		t.Error("expected error for nil resolver")
	}
	if _, err := New(Opts{DB: gdb, Sessions: transport.NewRegistry()}); err == nil {
		t.Error("expected error for nil transcoder")
	}
}

func TestSendMedia_Image(t *testing.T) {
	f := newFixture(t)
	asset := media.Asset{
		OriginalName: "photo.png",
		Path:         writeAsset(t, "photo.png", "png-bytes"),
		Caption:      "Hi {{firstName}}",
	}

	receipt, err := f.dispatcher.SendMedia(context.Background(), f.ticket, asset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.MessageID == "" {
		t.Error("empty delivery handle")
	}

	sent := f.adapter.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sent))
	}
	if sent[0].JID != "5511999990000@s.whatsapp.net" {
		t.Errorf("JID = %q", sent[0].JID)
	}
	img, ok := sent[0].Payload.(media.ImagePayload)
	if !ok {
		t.Fatalf("payload = %T, want ImagePayload", sent[0].Payload)
	}
	if img.Caption != "Hi Alice" {
		t.Errorf("caption = %q, want formatted", img.Caption)
	}

	var got models.Ticket
	f.gdb.First(&got, f.ticket.ID)
	if got.LastMessage != "Hi Alice" {
		t.Errorf("LastMessage = %q", got.LastMessage)
	}
}

func TestSendMedia_GroupJID(t *testing.T) {
	f := newFixture(t)
	f.ticket.IsGroup = true
	asset := media.Asset{OriginalName: "photo.png", Path: writeAsset(t, "photo.png", "x")}

	if _, err := f.dispatcher.SendMedia(context.Background(), f.ticket, asset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jid := f.adapter.Sent()[0].JID; jid != "5511999990000@g.us" {
		t.Errorf("JID = %q, want group domain", jid)
	}
}

func TestSendMedia_InvalidMimetypeAbortsBeforeSend(t *testing.T) {
	f := newFixture(t)
	asset := media.Asset{OriginalName: "blob", Path: "/tmp/blob-without-extension"}

	_, err := f.dispatcher.SendMedia(context.Background(), f.ticket, asset)
	if !errors.Is(err, media.ErrInvalidMimeType) {
		t.Fatalf("error = %v, want ErrInvalidMimeType", err)
	}
	if len(f.adapter.Sent()) != 0 {
		t.Error("no transport call expected")
	}
}

func TestSendMedia_TransportFailureLeavesTicketUntouched(t *testing.T) {
	f := newFixture(t)
	f.adapter.FailWith(errors.New("stream errored"))
	asset := media.Asset{OriginalName: "photo.png", Path: writeAsset(t, "photo.png", "x"), Caption: "hello"}

	_, err := f.dispatcher.SendMedia(context.Background(), f.ticket, asset)
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("error = %v, want ErrSendFailed", err)
	}

	var got models.Ticket
	f.gdb.First(&got, f.ticket.ID)
	if got.LastMessage != "" {
		t.Errorf("LastMessage = %q, want untouched", got.LastMessage)
	}
}

func TestSendMedia_AudioTranscodesAndConsumesSource(t *testing.T) {
	f := newFixture(t)
	source := writeAsset(t, "memo.wav", "RIFF-ish")
	asset := media.Asset{OriginalName: "memo.wav", Path: source, Mimetype: "audio/wav", Caption: "listen"}

	if _, err := f.dispatcher.SendMedia(context.Background(), f.ticket, asset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Error("original audio should be consumed by the transcoder")
	}

	audio, ok := f.adapter.Sent()[0].Payload.(media.AudioPayload)
	if !ok {
		t.Fatalf("payload = %T, want AudioPayload", f.adapter.Sent()[0].Payload)
	}
	if audio.Mimetype != media.MP3Mimetype {
		t.Errorf("mimetype = %q, want %q", audio.Mimetype, media.MP3Mimetype)
	}
	if audio.PTT {
		t.Error("PTT should be false without the voice-note marker")
	}
	if audio.Caption != "listen" {
		t.Errorf("caption = %q, want attached on the ad-hoc path", audio.Caption)
	}
}

func TestSendMedia_VoiceNotePTT(t *testing.T) {
	f := newFixture(t)
	source := writeAsset(t, "audio-record-site-88.ogg", "ogg")
	asset := media.Asset{OriginalName: "audio-record-site-88.ogg", Path: source, Mimetype: "audio/ogg"}

	if _, err := f.dispatcher.SendMedia(context.Background(), f.ticket, asset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	audio := f.adapter.Sent()[0].Payload.(media.AudioPayload)
	if !audio.PTT {
		t.Error("PTT should be true for the voice-note marker")
	}
}

func TestSendMedia_EncodingFailurePreservesSource(t *testing.T) {
	f := newFixture(t)

	failing := filepath.Join(t.TempDir(), "ffmpeg-fail")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\nexit 1\n"), 0755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	transcoder, _ := media.NewTranscoder(media.TranscoderOpts{FFmpeg: failing, OutputDir: t.TempDir()})
	f.dispatcher.transcoder = transcoder

	source := writeAsset(t, "memo.wav", "RIFF-ish")
	asset := media.Asset{OriginalName: "memo.wav", Path: source, Mimetype: "audio/wav"}

	_, err := f.dispatcher.SendMedia(context.Background(), f.ticket, asset)
	if !errors.Is(err, media.ErrEncodingFailed) {
		t.Fatalf("error = %v, want ErrEncodingFailed", err)
	}
	if _, statErr := os.Stat(source); statErr != nil {
		t.Error("source should survive an encoding failure")
	}
	if len(f.adapter.Sent()) != 0 {
		t.Error("no transport call expected after encoding failure")
	}
}

func TestSendMedia_NoSessionForChannel(t *testing.T) {
	f := newFixture(t)
	f.ticket.ChannelID = 99
	asset := media.Asset{OriginalName: "photo.png", Path: writeAsset(t, "photo.png", "x")}

	_, err := f.dispatcher.SendMedia(context.Background(), f.ticket, asset)
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("error = %v, want ErrSendFailed", err)
	}
}

func TestSendFlow_Buttons(t *testing.T) {
	f := newFixture(t)
	channel := &models.Channel{ID: 5, Name: "main"}

	receipt, err := f.dispatcher.SendFlow(context.Background(), channel, "5511888887777", "Choose an option")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.MessageID == "" {
		t.Error("empty delivery handle")
	}

	sent := f.adapter.Sent()
	if sent[0].JID != "5511888887777@s.whatsapp.net" {
		t.Errorf("JID = %q", sent[0].JID)
	}
	buttons, ok := sent[0].Payload.(media.ButtonsPayload)
	if !ok {
		t.Fatalf("payload = %T, want ButtonsPayload", sent[0].Payload)
	}
	if buttons.Text != "Choose an option" {
		t.Errorf("text = %q", buttons.Text)
	}
	if len(buttons.Buttons) != 3 {
		t.Fatalf("buttons = %d, want 3", len(buttons.Buttons))
	}
	kinds := []string{buttons.Buttons[0].Kind, buttons.Buttons[1].Kind, buttons.Buttons[2].Kind}
	want := []string{media.ButtonURL, media.ButtonCall, media.ButtonQuickReply}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("button %d kind = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestSendFlow_NoTicketMutation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.dispatcher.SendFlow(context.Background(), &models.Channel{ID: 5}, "5511888887777", "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got models.Ticket
	f.gdb.First(&got, f.ticket.ID)
	if got.LastMessage != "" {
		t.Errorf("LastMessage = %q, flow sends must not touch tickets", got.LastMessage)
	}
}

func TestSendFlow_TransportFailure(t *testing.T) {
	f := newFixture(t)
	f.adapter.FailWith(errors.New("not connected"))
	_, err := f.dispatcher.SendFlow(context.Background(), &models.Channel{ID: 5}, "5511888887777", "hi")
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("error = %v, want ErrSendFailed", err)
	}
}

func TestSendFlowMedia_AudioCaptionOmitted(t *testing.T) {
	f := newFixture(t)
	source := writeAsset(t, "promo.mp3", "id3")
	asset := media.Asset{OriginalName: "promo.mp3", Path: source, Mimetype: "audio/mpeg", Caption: "promo text"}

	if _, err := f.dispatcher.SendFlowMedia(context.Background(), &models.Channel{ID: 5}, "5511888887777", asset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	audio, ok := f.adapter.Sent()[0].Payload.(media.AudioPayload)
	if !ok {
		t.Fatalf("payload = %T, want AudioPayload", f.adapter.Sent()[0].Payload)
	}
	if audio.Caption != "" {
		t.Errorf("caption = %q, flow audio must omit captions", audio.Caption)
	}
}

func TestSendFlowMedia_DocumentKeepsCaption(t *testing.T) {
	f := newFixture(t)
	source := writeAsset(t, "terms.pdf", "pdf")
	asset := media.Asset{OriginalName: "terms.pdf", Path: source, Caption: "our terms"}

	if _, err := f.dispatcher.SendFlowMedia(context.Background(), &models.Channel{ID: 5}, "5511888887777", asset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := f.adapter.Sent()[0].Payload.(media.DocumentPayload)
	if doc.Caption != "our terms" {
		t.Errorf("caption = %q", doc.Caption)
	}
}

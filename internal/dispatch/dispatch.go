// Package dispatch orchestrates outbound sends: classify the asset,
// transcode audio, build the transport payload, deliver it, and keep the
// ticket's last-message snapshot in step.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wadesk/wadesk/internal/format"
	"github.com/wadesk/wadesk/internal/media"
	"github.com/wadesk/wadesk/internal/models"
	"github.com/wadesk/wadesk/internal/transport"
	"gorm.io/gorm"
)

// ErrSendFailed means the transport rejected the message or a step after
// classification/transcoding failed. The ticket is left unmodified unless
// the transport had already accepted the message.
var ErrSendFailed = errors.New("dispatch: send failed")

// DefaultSendTimeout bounds a single transport send.
const DefaultSendTimeout = 30 * time.Second

// Dispatcher drives the outbound pipeline for ad-hoc media sends and
// flow-triggered templated sends.
type Dispatcher struct {
	db          *gorm.DB
	sessions    transport.Resolver
	transcoder  *media.Transcoder
	sendTimeout time.Duration
	log         zerolog.Logger
}

// Opts holds parameters for New.
type Opts struct {
	DB          *gorm.DB
	Sessions    transport.Resolver
	Transcoder  *media.Transcoder
	SendTimeout time.Duration
	Logger      zerolog.Logger
}

// New creates a Dispatcher.
func New(opts Opts) (*Dispatcher, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("dispatch: db is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("dispatch: session resolver is required")
	}
	if opts.Transcoder == nil {
		return nil, fmt.Errorf("dispatch: transcoder is required")
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		db:          opts.DB,
		sessions:    opts.Sessions,
		transcoder:  opts.Transcoder,
		sendTimeout: opts.SendTimeout,
		log:         opts.Logger,
	}, nil
}

// SendMedia delivers a stored upload to the ticket's contact and, once the
// transport accepts it, records the formatted caption as the ticket's last
// message.
//
// Classification and encoding failures propagate as ErrInvalidMimeType and
// ErrEncodingFailed before any network call; everything later wraps into
// ErrSendFailed.
func (d *Dispatcher) SendMedia(ctx context.Context, ticket *models.Ticket, asset media.Asset) (transport.Receipt, error) {
	if ticket == nil {
		return transport.Receipt{}, fmt.Errorf("dispatch: ticket is required")
	}

	category, mimetype, err := media.Classify(asset.Path, asset.Mimetype)
	if err != nil {
		return transport.Receipt{}, err
	}

	caption := format.Apply(asset.Caption, &ticket.Contact)

	// Transcoding replaces the asset in place and consumes the original.
	// It must happen before any network call so a send failure never
	// leaves a half-converted asset behind.
	if category == media.CategoryAudio {
		converted, err := d.transcoder.Transcode(ctx, asset.Path)
		if err != nil {
			return transport.Receipt{}, err
		}
		asset.Path = converted
		mimetype = media.MP3Mimetype
	}

	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return transport.Receipt{}, fmt.Errorf("%w: read asset: %v", ErrSendFailed, err)
	}
	payload := media.BuildPayload(category, asset, data, mimetype, caption)

	session, err := d.sessions.For(ticket.ChannelID)
	if err != nil {
		return transport.Receipt{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	jid := transport.JID(ticket.Contact.Number, ticket.IsGroup)

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	receipt, err := session.Send(sendCtx, jid, payload)
	if err != nil {
		d.log.Error().Err(err).Uint("ticket", ticket.ID).Str("jid", jid).Msg("transport send failed")
		return transport.Receipt{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	if err := d.db.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
		Update("last_message", caption).Error; err != nil {
		d.log.Error().Err(err).Uint("ticket", ticket.ID).Msg("last message update failed")
		return transport.Receipt{}, fmt.Errorf("%w: update last message: %v", ErrSendFailed, err)
	}
	ticket.LastMessage = caption

	d.log.Info().Uint("ticket", ticket.ID).Str("kind", payload.Kind()).Str("id", receipt.MessageID).Msg("media dispatched")
	return receipt, nil
}

// SendFlow delivers the fixed three-option quick-action template wrapping
// body to a bare number over the given channel's session. No ticket is
// touched on this path.
func (d *Dispatcher) SendFlow(ctx context.Context, channel *models.Channel, number, body string) (transport.Receipt, error) {
	if channel == nil {
		return transport.Receipt{}, fmt.Errorf("dispatch: channel is required")
	}

	session, err := d.sessions.For(channel.ID)
	if err != nil {
		return transport.Receipt{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	jid := transport.JID(number, false)

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	receipt, err := session.Send(sendCtx, jid, flowButtons(body))
	if err != nil {
		d.log.Error().Err(err).Uint("channel", channel.ID).Str("jid", jid).Msg("flow send failed")
		return transport.Receipt{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	d.log.Info().Uint("channel", channel.ID).Str("id", receipt.MessageID).Msg("flow dispatched")
	return receipt, nil
}

// SendFlowMedia delivers a flow-provided file to a bare number. Captions
// follow the flow rules: attached for every category except audio.
func (d *Dispatcher) SendFlowMedia(ctx context.Context, channel *models.Channel, number string, asset media.Asset) (transport.Receipt, error) {
	if channel == nil {
		return transport.Receipt{}, fmt.Errorf("dispatch: channel is required")
	}

	category, mimetype, err := media.Classify(asset.Path, asset.Mimetype)
	if err != nil {
		return transport.Receipt{}, err
	}

	caption := asset.Caption
	if category == media.CategoryAudio {
		converted, err := d.transcoder.Transcode(ctx, asset.Path)
		if err != nil {
			return transport.Receipt{}, err
		}
		asset.Path = converted
		mimetype = media.MP3Mimetype
		caption = ""
	}

	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return transport.Receipt{}, fmt.Errorf("%w: read asset: %v", ErrSendFailed, err)
	}
	payload := media.BuildPayload(category, asset, data, mimetype, caption)

	session, err := d.sessions.For(channel.ID)
	if err != nil {
		return transport.Receipt{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	receipt, err := session.Send(sendCtx, transport.JID(number, false), payload)
	if err != nil {
		return transport.Receipt{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return receipt, nil
}

// flowButtons builds the fixed quick-action template: a link, a call
// action, and a quick reply.
func flowButtons(body string) media.ButtonsPayload {
	return media.ButtonsPayload{
		Text:       body,
		HeaderType: 1,
		Buttons: []media.Button{
			{Index: 1, Kind: media.ButtonURL, DisplayText: "Open our portal", URL: "https://wadesk.example.com"},
			{Index: 2, Kind: media.ButtonCall, DisplayText: "Call us", PhoneNumber: "+1 (234) 5678-901"},
			{Index: 3, Kind: media.ButtonQuickReply, DisplayText: "Talk to an agent", ID: "quick-reply-agent"},
		},
	}
}

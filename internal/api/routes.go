package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wadesk/wadesk/internal/media"
	"github.com/wadesk/wadesk/internal/models"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth)
	router.GET("/ws", gin.WrapF(opts.Hub.Handler()))

	router.POST("/tickets/:id/media", handleTicketMedia(opts))
	router.POST("/flow/messages", handleFlowMessage(opts))
	router.POST("/flow/media", handleFlowMedia(opts))
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleTicketMedia accepts a multipart upload and dispatches it to the
// ticket's contact. Fields: "media" (file, required), "caption".
func handleTicketMedia(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket id"})
			return
		}

		var ticket models.Ticket
		err = opts.DB.Preload("Contact").First(&ticket, uint(ticketID)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ticket lookup failed"})
			return
		}

		asset, ok := receiveUpload(c, opts)
		if !ok {
			return
		}

		receipt, err := opts.Dispatcher.SendMedia(c.Request.Context(), &ticket, asset)
		if err != nil {
			writeSendError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message_id":   receipt.MessageID,
			"jid":          receipt.JID,
			"last_message": ticket.LastMessage,
		})
	}
}

type flowMessageRequest struct {
	ChannelID uint   `json:"channel_id" binding:"required"`
	Number    string `json:"number" binding:"required"`
	Body      string `json:"body"`
}

// handleFlowMessage sends the fixed quick-action template to a bare number.
func handleFlowMessage(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req flowMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id and number are required"})
			return
		}

		channel, ok := loadChannel(c, opts, req.ChannelID)
		if !ok {
			return
		}

		receipt, err := opts.Dispatcher.SendFlow(c.Request.Context(), channel, req.Number, req.Body)
		if err != nil {
			writeSendError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message_id": receipt.MessageID,
			"jid":        receipt.JID,
		})
	}
}

// handleFlowMedia accepts a multipart upload and dispatches it to a bare
// number. Fields: "media" (file, required), "channel_id", "number",
// "caption".
func handleFlowMedia(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID, err := strconv.ParseUint(c.PostForm("channel_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel_id"})
			return
		}
		number := c.PostForm("number")
		if number == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "number is required"})
			return
		}

		channel, ok := loadChannel(c, opts, uint(channelID))
		if !ok {
			return
		}

		asset, ok := receiveUpload(c, opts)
		if !ok {
			return
		}

		receipt, err := opts.Dispatcher.SendFlowMedia(c.Request.Context(), channel, number, asset)
		if err != nil {
			writeSendError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message_id": receipt.MessageID,
			"jid":        receipt.JID,
		})
	}
}

// receiveUpload stores the "media" form file under the upload dir and
// returns the asset describing it. Writes the error response itself.
func receiveUpload(c *gin.Context, opts StartOpts) (media.Asset, bool) {
	header, err := c.FormFile("media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media file is required"})
		return media.Asset{}, false
	}

	path := filepath.Join(opts.UploadDir, uuid.NewString()+filepath.Ext(header.Filename))
	if err := c.SaveUploadedFile(header, path); err != nil {
		opts.Logger.Error().Err(err).Str("name", header.Filename).Msg("upload save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload save failed"})
		return media.Asset{}, false
	}

	return media.Asset{
		OriginalName: header.Filename,
		Path:         path,
		Mimetype:     header.Header.Get("Content-Type"),
		Caption:      c.PostForm("caption"),
	}, true
}

func loadChannel(c *gin.Context, opts StartOpts, id uint) (*models.Channel, bool) {
	var channel models.Channel
	err := opts.DB.First(&channel, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "channel lookup failed"})
		return nil, false
	}
	return &channel, true
}

// writeSendError maps pipeline errors onto HTTP statuses. Transport and
// persistence details stay out of the response body.
func writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, media.ErrInvalidMimeType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported media type"})
	case errors.Is(err, media.ErrEncodingFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audio conversion failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message send failed"})
	}
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/requestdata"
	"github.com/openshelf/openshelf-backend/internal/sse"
)

type StreamHandler struct {
	log *logger.Logger
	hub *sse.SSEHub
}

func NewStreamHandler(log *logger.Logger, hub *sse.SSEHub) *StreamHandler {
	handlerLog := log.With("handler", "StreamHandler")
	return &StreamHandler{log: handlerLog, hub: hub}
}

// Stream opens a server-sent event connection subscribed to the channels
// named in the "channels" query parameter (comma-separated). With no
// parameter the client gets the stats channel only.
func (sh *StreamHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "FORBIDDEN", errMissingIdentity)
		return
	}

	client := sh.hub.NewSSEClient(rd.ProfileID)
	defer sh.hub.RemoveClient(client)

	channels := []string{sse.ChannelStats}
	if raw := c.Query("channels"); raw != "" {
		channels = strings.Split(raw, ",")
	}
	for _, channel := range channels {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			continue
		}
		sh.hub.AddChannel(client, channel)
	}

	client.Serve(c.Writer, c.Request)
}

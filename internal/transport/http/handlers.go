package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
)

// StatsFunc reports the number of registered peers and live trust edges.
type StatsFunc func() (peers, edges int)

type HealthResponse struct {
	OK    bool `json:"ok"`
	Peers int  `json:"peers"`
	Edges int  `json:"edges"`
}

type ICEResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

func HandlerHealth(stats StatsFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		peers, edges := stats()
		c.JSON(http.StatusOK, HealthResponse{OK: true, Peers: peers, Edges: edges})
	}
}

// HandlerICE serves the ICE servers browsers should use for their peer
// connections.
func HandlerICE(cfg webrtc.Configuration) gin.HandlerFunc {
	resp := ICEResponse{ICEServers: cfg.ICEServers}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, resp)
	}
}

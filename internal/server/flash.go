package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	flashCookie = "mygizmo_flash"
	flashKey    = "flashes"
	flashMaxAge = 300
)

type flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// loadFlashes pulls messages left by an earlier request.
func loadFlashes(c *gin.Context) {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return
	}
	var msgs []flash
	if json.Unmarshal(data, &msgs) == nil {
		c.Set(flashKey, msgs)
	}
}

func pendingFlashes(c *gin.Context) []flash {
	v, _ := c.Get(flashKey)
	msgs, _ := v.([]flash)
	return msgs
}

// addFlash queues a message for the next page render.
func addFlash(c *gin.Context, category, message string) {
	msgs := append(pendingFlashes(c), flash{Category: category, Message: message})
	c.Set(flashKey, msgs)

	data, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, base64.RawURLEncoding.EncodeToString(data), flashMaxAge, "/", "", false, true)
}

// takeFlashes returns the queued messages and clears them.
func takeFlashes(c *gin.Context) []flash {
	msgs := pendingFlashes(c)
	if len(msgs) > 0 {
		c.Set(flashKey, []flash(nil))
		c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	}
	return msgs
}

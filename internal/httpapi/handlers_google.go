package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsvc"
)

func (h *handler) googleStart(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Google login is not configured"})
		return
	}

	url, err := h.google.AuthCodeURL(c.Request.Context())
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *handler) googleCallback(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Google login is not configured"})
		return
	}
	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Google login was cancelled: " + reason})
		return
	}

	id, err := h.google.Exchange(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	pair, err := h.engine.FederatedLogin(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, statusMap{authsvc.KindConflict: http.StatusBadRequest})
		return
	}

	ok(c, http.StatusOK, "Google Login Successful", gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.AccessExpiresAt,
		"tokenType":    pair.TokenType,
		"user":         pair.User,
	})
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/middleware"
)

type totpRequest struct {
	Token string `json:"token" binding:"required"`
}

var totpStatus = statusMap{
	authsvc.KindAuthentication: http.StatusBadRequest,
	authsvc.KindConflict:       http.StatusBadRequest,
}

func (h *handler) setupTOTP(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	setup, err := h.engine.BeginTOTPEnrollment(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, err, totpStatus)
		return
	}

	ok(c, http.StatusOK, "Scan the QR code with your authenticator app", gin.H{
		"secret":     setup.SecretBase32,
		"otpauthUrl": setup.URI,
		"qrCode":     setup.QRCode,
	})
}

func (h *handler) verifyTOTP(c *gin.Context) {
	var req totpRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}
	claims, _ := middleware.ClaimsFrom(c)

	if err := h.engine.ConfirmTOTPEnrollment(c.Request.Context(), claims.UserID, req.Token); err != nil {
		h.fail(c, err, totpStatus)
		return
	}

	ok(c, http.StatusOK, "2FA enabled successfully", nil)
}

func (h *handler) disableTOTP(c *gin.Context) {
	var req totpRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}
	claims, _ := middleware.ClaimsFrom(c)

	if err := h.engine.DisableTOTP(c.Request.Context(), claims.UserID, req.Token); err != nil {
		h.fail(c, err, totpStatus)
		return
	}

	ok(c, http.StatusOK, "2FA disabled successfully", nil)
}

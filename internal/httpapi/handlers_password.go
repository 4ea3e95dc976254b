package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsvc"
)

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	OTP         string `json:"otp" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *handler) forgotPassword(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}

	if err := h.engine.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err, nil)
		return
	}

	ok(c, http.StatusOK, "OTP sent to your email", nil)
}

// verifyOTP answers 200 either way; success carries the verdict.
func (h *handler) verifyOTP(c *gin.Context) {
	var req emailCodeRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}

	live, err := h.engine.VerifyResetCode(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	if !live {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": authsvc.ErrInvalidOrExpiredCode.Error()})
		return
	}

	ok(c, http.StatusOK, "OTP verified", nil)
}

func (h *handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}

	if err := h.engine.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		h.fail(c, err, statusMap{authsvc.KindAuthentication: http.StatusBadRequest})
		return
	}

	ok(c, http.StatusOK, "Password reset successful", nil)
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/middleware"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type emailCodeRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}

	user, err := h.engine.Register(c.Request.Context(), authsvc.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	ok(c, http.StatusCreated, "User registered successfully. Please check your email for the verification code.", gin.H{"user": user})
}

func (h *handler) verifyEmail(c *gin.Context) {
	var req emailCodeRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}

	if err := h.engine.VerifyEmail(c.Request.Context(), req.Email, req.OTP); err != nil {
		h.fail(c, err, statusMap{
			authsvc.KindAuthentication: http.StatusBadRequest,
			authsvc.KindConflict:       http.StatusBadRequest,
		})
		return
	}

	ok(c, http.StatusOK, "Email verified successfully", nil)
}

func (h *handler) resendVerification(c *gin.Context) {
	var req emailRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}

	if err := h.engine.ResendVerification(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err, nil)
		return
	}

	ok(c, http.StatusOK, "If the account exists and is unverified, a new code has been sent", nil)
}

func (h *handler) profile(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	user, err := h.engine.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	ok(c, http.StatusOK, "Profile fetched successfully", gin.H{"user": user})
}

func (h *handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}
	claims, _ := middleware.ClaimsFrom(c)

	err := h.engine.ChangePassword(c.Request.Context(), claims.UserID, req.OldPassword, req.NewPassword)
	if err != nil {
		h.fail(c, err, statusMap{authsvc.KindAuthentication: http.StatusBadRequest})
		return
	}

	ok(c, http.StatusOK, "Password changed successfully", nil)
}

func (h *handler) adminDashboard(c *gin.Context) {
	ok(c, http.StatusOK, "Welcome admin", nil)
}

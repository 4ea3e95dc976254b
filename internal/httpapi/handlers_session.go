package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/middleware"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTP     string `json:"totp"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}

	pair, err := h.engine.Login(c.Request.Context(), authsvc.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		TOTPCode: req.TOTP,
	})
	if err != nil {
		if errors.Is(err, authsvc.ErrTOTPRequired) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":    false,
				"message":    authsvc.ErrTOTPRequired.Error(),
				"require2FA": true,
			})
			return
		}
		h.fail(c, err, statusMap{authsvc.KindAuthentication: http.StatusBadRequest})
		return
	}

	ok(c, http.StatusOK, "Login successful", gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.AccessExpiresAt,
		"tokenType":    pair.TokenType,
		"user":         pair.User,
	})
}

func (h *handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err, nil)
		return
	}

	pair, err := h.engine.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	ok(c, http.StatusOK, "Token refreshed", gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.AccessExpiresAt,
		"tokenType":    pair.TokenType,
	})
}

func (h *handler) logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			h.fail(c, err, nil)
			return
		}
	}
	access, _ := middleware.AccessTokenFrom(c)

	if err := h.engine.Logout(c.Request.Context(), access, req.RefreshToken); err != nil {
		h.fail(c, err, nil)
		return
	}

	ok(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *handler) logoutAll(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	if err := h.engine.LogoutAll(c.Request.Context(), claims.UserID); err != nil {
		h.fail(c, err, nil)
		return
	}

	ok(c, http.StatusOK, "Logged out from all sessions", nil)
}

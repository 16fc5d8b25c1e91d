package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibechecc/backend/internal/auth"
	"github.com/vibechecc/backend/internal/errors"
	"github.com/vibechecc/backend/internal/util"
	"go.uber.org/zap"
)

// Register creates an account and returns a signed token.
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Register(req)
	switch {
	case stderrors.Is(err, auth.ErrUserExists):
		util.RespondWithAPIError(c, errors.AlreadyExists("email"))
		return
	case stderrors.Is(err, auth.ErrUsernameExists):
		util.RespondWithAPIError(c, errors.AlreadyExists("username"))
		return
	case err != nil:
		h.log.Error("registration failed", zap.Error(err))
		util.RespondInternalError(c, "failed to register")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates with email and password.
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Login(req)
	switch {
	case stderrors.Is(err, auth.ErrUserNotFound), stderrors.Is(err, auth.ErrInvalidCredentials):
		util.RespondUnauthorized(c, "invalid email or password")
		return
	case err != nil:
		h.log.Error("login failed", zap.Error(err))
		util.RespondInternalError(c, "failed to log in")
		return
	}

	c.JSON(http.StatusOK, resp)
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/middlewares"
	"storefront/models"
	"storefront/services"
)

type UserController struct {
	users  *services.UserService
	resets *services.PasswordResetService
}

func NewUserController(users *services.UserService, resets *services.PasswordResetService) *UserController {
	return &UserController{users: users, resets: resets}
}

func (uc *UserController) Register(c *gin.Context) {
	defer middlewares.RecordOperationFromStatus(c, "register")

	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := uc.users.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

func (uc *UserController) Login(c *gin.Context) {
	defer middlewares.RecordOperationFromStatus(c, "login")

	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := uc.users.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (uc *UserController) ForgotPassword(c *gin.Context) {
	defer middlewares.RecordOperationFromStatus(c, "forgot_password")

	var req models.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := uc.resets.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (uc *UserController) ResetPassword(c *gin.Context) {
	defer middlewares.RecordOperationFromStatus(c, "reset_password")

	var req models.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := uc.resets.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

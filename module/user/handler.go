package user

import (
	"net/http"

	"Parley/global"
	chatmodel "Parley/module/chat/model"
	"Parley/module/chat/store"
	"Parley/tools/errs"
	sec "Parley/tools/security"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	store *store.Store
}

func NewHandler(s *store.Store) *Handler { return &Handler{store: s} }

type loginReq struct {
	UserID string `json:"userId" binding:"required"`
	Name   string `json:"name"`
	Image  string `json:"image"`
}

// HandlerLogin is POST /login: upserts the user snapshot and issues the
// JWT the delivery endpoints authenticate with.
func (h *Handler) HandlerLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	if h.store != nil {
		_ = h.store.UpsertUser(c.Request.Context(), &chatmodel.UserModel{
			UserID:   req.UserID,
			Name:     req.Name,
			ImageURL: req.Image,
		})
	}

	opts := sec.DefaultOptions(global.GetJwtSecret())
	token, exp, err := sec.Generate(opts, req.UserID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer.WithDetail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"expireAt": exp.UTC(),
		"user": gin.H{
			"id":   req.UserID,
			"name": req.Name,
		},
	})
}

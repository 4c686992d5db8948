package handler

import (
	"net/http"
	"strconv"
	"time"

	"Parley/logger"
	midsec "Parley/middleware/security"
	chatmodel "Parley/module/chat/model"
	"Parley/module/chat/service"
	"Parley/module/delivery/mailbox"
	"Parley/module/delivery/model"
	"Parley/service/storage"
	"Parley/tools/errs"

	"github.com/gin-gonic/gin"
)

const (
	defaultPollTimeout = 25 * time.Second
	maxPollTimeout     = 30 * time.Second
	presenceTTL        = 45 * time.Second
)

type Handler struct {
	svc   *service.Service
	boxes *mailbox.Store
}

func New(svc *service.Service, boxes *mailbox.Store) *Handler {
	return &Handler{svc: svc, boxes: boxes}
}

type sendReq struct {
	ConversationID string `json:"conversationId" binding:"required"`
	Content        string `json:"content" binding:"required"`
}

// HandlerSend is POST /messages: persist, create receipts, fan out, and
// echo the confirmed message (permanent id) back to the sender.
func (h *Handler) HandlerSend(c *gin.Context) {
	userID := midsec.MustUserID(c)
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	m, err := h.svc.Send(c.Request.Context(), userID, req.ConversationID, req.Content)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// HandlerPoll is GET /poll?timeout=<ms>: drain the caller's own mailbox,
// holding the request open up to the timeout. Timing out with nothing to
// deliver is a normal 200 with an empty list, never an error.
func (h *Handler) HandlerPoll(c *gin.Context) {
	userID := midsec.MustUserID(c)

	timeout := defaultPollTimeout
	if raw := c.Query("timeout"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			respondErr(c, errs.ErrArgs.WrapMsg("bad timeout", "timeout", raw))
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}
	if timeout > maxPollTimeout {
		timeout = maxPollTimeout
	}

	if err := storage.PresenceOnline(c.Request.Context(), userID, "poll", presenceTTL); err != nil {
		logger.Warnf("[poll] presence refresh user=%s: %v", userID, err)
	}

	envs := h.boxes.Drain(c.Request.Context(), userID, timeout)
	if envs == nil {
		envs = []*model.Envelope{}
	}

	// Drained message envelopes count as delivered to this caller.
	for _, env := range envs {
		if env.Kind != model.KindMessage {
			continue
		}
		pay, err := env.DecodeMessage()
		if err != nil {
			logger.Warnf("[poll] bad message payload env=%s: %v", env.ID, err)
			continue
		}
		h.svc.ObserveDelivered(c.Request.Context(), userID, pay.ID)
	}

	c.JSON(http.StatusOK, gin.H{"messages": envs})
}

type readReq struct {
	MessageID string `json:"messageId" binding:"required"`
}

// HandlerMarkRead is POST /messages/read.
func (h *Handler) HandlerMarkRead(c *gin.Context) {
	userID := midsec.MustUserID(c)
	var req readReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), userID, req.MessageID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// HandlerReceipts is GET /messages/:id/receipts.
func (h *Handler) HandlerReceipts(c *gin.Context) {
	userID := midsec.MustUserID(c)
	out, err := h.svc.Receipts(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type createConvReq struct {
	ConversationID string   `json:"conversationId"`
	Name           string   `json:"name"`
	MemberIDs      []string `json:"memberIds" binding:"required"`
}

// HandlerCreateConversation is POST /conversations.
func (h *Handler) HandlerCreateConversation(c *gin.Context) {
	userID := midsec.MustUserID(c)
	var req createConvReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	conv, err := h.svc.CreateConversation(c.Request.Context(), userID, req.ConversationID, req.Name, req.MemberIDs)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// HandlerHistory is GET /conversations/:id/messages?limit=.
func (h *Handler) HandlerHistory(c *gin.Context) {
	userID := midsec.MustUserID(c)
	var limit int64
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			respondErr(c, errs.ErrArgs.WrapMsg("bad limit", "limit", raw))
			return
		}
		limit = n
	}
	msgs, err := h.svc.History(c.Request.Context(), userID, c.Param("id"), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	if msgs == nil {
		msgs = []*chatmodel.MessageModel{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// HandlerPresence is GET /conversations/:id/presence: which members of
// the conversation currently count as online.
func (h *Handler) HandlerPresence(c *gin.Context) {
	userID := midsec.MustUserID(c)
	convID := c.Param("id")
	if err := h.svc.Authorize(c.Request.Context(), userID, convID); err != nil {
		respondErr(c, err)
		return
	}
	members, err := h.svc.Members(c.Request.Context(), convID)
	if err != nil {
		respondErr(c, err)
		return
	}
	online, err := storage.PresenceOnlineSet(c.Request.Context(), members)
	if err != nil {
		respondErr(c, errs.WrapMsg(err, "presence lookup"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": online})
}

// respondErr maps CodeErrors onto HTTP statuses; anything else is a 500.
func respondErr(c *gin.Context, err error) {
	ce := errs.Unpack(err)
	if ce == nil {
		logger.Errorf("[http] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternalServer)
		return
	}
	status := http.StatusInternalServerError
	switch ce.Code {
	case errs.ArgsError:
		status = http.StatusBadRequest
	case errs.TokenInvalid, errs.TokenExpired:
		status = http.StatusUnauthorized
	case errs.NoPermission:
		status = http.StatusForbidden
	case errs.RecordNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, ce)
}

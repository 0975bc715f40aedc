package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/chanderlud/audio-chat/av"
	"github.com/chanderlud/audio-chat/av/audio"
	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/limits"
	"github.com/chanderlud/audio-chat/link"
	"github.com/chanderlud/audio-chat/screenshare"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ContactView is a contact as listed to the UI. The secret is never returned.
type ContactView struct {
	Nickname  string `json:"nickname"`
	IP        string `json:"ip"`
	Port      uint16 `json:"port"`
	Online    bool   `json:"online"`
	LatencyMs int64  `json:"latencyMs"`
}

func contactView(c *contact.Contact) ContactView {
	return ContactView{
		Nickname:  c.Nickname,
		IP:        c.Host,
		Port:      c.Port,
		Online:    c.Online(),
		LatencyMs: c.Latency().Milliseconds(),
	}
}

// TransferView is a file transfer as listed to the UI.
type TransferView struct {
	ID          uuid.UUID `json:"id"`
	Direction   string    `json:"direction"`
	Peer        string    `json:"peer"`
	Name        string    `json:"name"`
	Size        uint64    `json:"size"`
	State       string    `json:"state"`
	Progress    float64   `json:"progress"`
	Speed       float64   `json:"speed"`
	Remaining   string    `json:"remaining,omitempty"`
	Error       string    `json:"error,omitempty"`
	Destination string    `json:"path,omitempty"`
}

func transferView(t *file.Transfer) TransferView {
	v := TransferView{
		ID:          t.ID,
		Direction:   t.Direction.String(),
		Peer:        t.Peer,
		Name:        t.Descriptor.FormattedName(),
		Size:        t.Descriptor.Length,
		State:       t.State().String(),
		Progress:    t.Progress(),
		Speed:       t.Speed(),
		Destination: t.Path(),
	}
	if eta := t.EstimatedTimeRemaining(); eta > 0 {
		v.Remaining = eta.Round(time.Second).String()
	}
	if err := t.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

type addContactRequest struct {
	Nickname string `json:"nickname" binding:"required"`
	IP       string `json:"ip" binding:"required"`
	Port     uint16 `json:"port" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

type messageRequest struct {
	Text string `json:"text" binding:"required"`
}

type fileRequest struct {
	Path string `json:"path" binding:"required"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type answerRequest struct {
	Nickname string `json:"nickname" binding:"required"`
	Accept   bool   `json:"accept"`
}

// statusCode maps domain errors onto HTTP statuses.
func statusCode(err error) int {
	switch {
	case errors.Is(err, contact.ErrNotFound), errors.Is(err, ErrNoPendingCall):
		return http.StatusNotFound
	case errors.Is(err, contact.ErrDuplicateNickname),
		errors.Is(err, av.ErrCallActive),
		errors.Is(err, av.ErrNoActiveCall),
		errors.Is(err, av.ErrInvalidTransition),
		errors.Is(err, link.ErrDeclined):
		return http.StatusConflict
	case errors.Is(err, contact.ErrInvalidSecret),
		errors.Is(err, contact.ErrInvalidNickname),
		errors.Is(err, limits.ErrMessageEmpty),
		errors.Is(err, limits.ErrMessageTooLarge),
		errors.Is(err, file.ErrFileTooLarge),
		errors.Is(err, file.ErrFileNameTooLong):
		return http.StatusBadRequest
	case errors.Is(err, link.ErrPeerUnreachable), errors.Is(err, screenshare.ErrMalformedHandshake):
		return http.StatusBadGateway
	case errors.Is(err, link.ErrHandshakeTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusCode(err), ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// handleStatus handles GET /status
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Status())
}

// handleListContacts handles GET /contacts
func (s *Server) handleListContacts(c *gin.Context) {
	contacts := s.ctrl.Contacts()
	views := make([]ContactView, 0, len(contacts))
	for _, ct := range contacts {
		views = append(views, contactView(ct))
	}
	c.JSON(http.StatusOK, views)
}

// handleAddContact handles POST /contacts
func (s *Server) handleAddContact(c *gin.Context) {
	var req addContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ct, err := s.ctrl.AddContact(req.Nickname, req.IP, req.Port, req.Secret)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, contactView(ct))
}

// handleRemoveContact handles DELETE /contacts/:nickname
func (s *Server) handleRemoveContact(c *gin.Context) {
	if err := s.ctrl.RemoveContact(c.Param("nickname")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleCall handles POST /call/:nickname
func (s *Server) handleCall(c *gin.Context) {
	if err := s.ctrl.InitiateCall(c.Request.Context(), c.Param("nickname")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ctrl.Status())
}

// handleEndCall handles DELETE /call
func (s *Server) handleEndCall(c *gin.Context) {
	if err := s.ctrl.EndCall(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleAudioTest handles POST /call/test
func (s *Server) handleAudioTest(c *gin.Context) {
	if err := s.ctrl.AudioTest(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ctrl.Status())
}

// handleSendMessage handles POST /call/messages
func (s *Server) handleSendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.ctrl.SendMessage([]byte(req.Text)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSendFile handles POST /call/files
func (s *Server) handleSendFile(c *gin.Context) {
	var req fileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	t, err := s.ctrl.SendFile(c.Request.Context(), req.Path)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, transferView(t))
}

// handleTransfers handles GET /transfers
func (s *Server) handleTransfers(c *gin.Context) {
	transfers := s.ctrl.Transfers()
	views := make([]TransferView, 0, len(transfers))
	for _, t := range transfers {
		views = append(views, transferView(t))
	}
	c.JSON(http.StatusOK, views)
}

// handleStartScreenshare handles POST /call/screenshare
func (s *Server) handleStartScreenshare(c *gin.Context) {
	if err := s.ctrl.StartScreenshare(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ctrl.Status())
}

// handleEndScreenshare handles DELETE /call/screenshare
func (s *Server) handleEndScreenshare(c *gin.Context) {
	if err := s.ctrl.EndScreenshare(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleMute handles PUT /call/mute
func (s *Server) handleMute(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.ctrl.SetMuted(req.Enabled)
	c.JSON(http.StatusOK, s.ctrl.Status())
}

// handleDeafen handles PUT /call/deafen
func (s *Server) handleDeafen(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.ctrl.SetDeafened(req.Enabled)
	c.JSON(http.StatusOK, s.ctrl.Status())
}

// handleAnswer handles POST /call/answer
func (s *Server) handleAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.hub.Answer(req.Nickname, req.Accept); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

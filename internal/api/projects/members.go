package projects

import (
	"net/http"

	"metareview/internal/api/dto"
	"metareview/internal/api/respond"
	"metareview/internal/services/membership"

	"github.com/gin-gonic/gin"
)

// POST /projects/:projectID/join-requests
func (h *Handler) RequestJoin(c *gin.Context) {
	id, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if c.Request.ContentLength > 0 && !respond.Bind(c, &body) {
		return
	}
	req, err := h.svc.RequestJoin(c.Request.Context(), respond.UserID(c), id, body.Message)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "request": dto.BuildJoinRequest(*req)})
}

// GET /projects/:projectID/join-requests
func (h *Handler) PendingRequests(c *gin.Context) {
	id, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	list, err := h.svc.PendingRequests(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": dto.BuildJoinRequests(list)})
}

// POST /join-requests/:requestID/approve
func (h *Handler) ApproveRequest(c *gin.Context) { h.respondRequest(c, true) }

// POST /join-requests/:requestID/reject
func (h *Handler) RejectRequest(c *gin.Context) { h.respondRequest(c, false) }

func (h *Handler) respondRequest(c *gin.Context, approve bool) {
	id, ok := respond.ID(c, "requestID")
	if !ok {
		return
	}
	req, err := h.svc.RespondJoinRequest(c.Request.Context(), respond.UserID(c), id, approve)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"request": dto.BuildJoinRequest(*req)})
}

// POST /projects/:projectID/invitations
func (h *Handler) Invite(c *gin.Context) {
	id, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	var in membership.InviteInput
	if !respond.Bind(c, &in) {
		return
	}
	res, err := h.svc.Invite(c.Request.Context(), respond.UserID(c), id, in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	body := gin.H{"success": true}
	if res.Membership != nil {
		body["member"] = dto.BuildMember(*res.Membership)
	}
	if res.Invitation != nil {
		body["invitation"] = dto.BuildInvitation(res.Invitation)
	}
	c.JSON(http.StatusCreated, body)
}

// POST /invitations/:token/accept
func (h *Handler) AcceptInvitation(c *gin.Context) {
	m, err := h.svc.AcceptInvitation(c.Request.Context(), respond.UserID(c), c.Param("token"))
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"member": dto.BuildMember(*m)})
}

// GET /projects/:projectID/members
func (h *Handler) Members(c *gin.Context) {
	id, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	list, err := h.svc.ListMembers(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": dto.BuildMembers(list)})
}

// PUT /projects/:projectID/members/:userID
func (h *Handler) ChangeRole(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	userID, ok := respond.ID(c, "userID")
	if !ok {
		return
	}
	var in membership.RoleChange
	if !respond.Bind(c, &in) {
		return
	}
	m, err := h.svc.ChangeRole(c.Request.Context(), respond.UserID(c), projectID, userID, in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"member": dto.BuildMember(*m)})
}

// DELETE /projects/:projectID/members/:userID
func (h *Handler) RemoveMember(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	userID, ok := respond.ID(c, "userID")
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), respond.UserID(c), projectID, userID); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, nil)
}

// POST /projects/:projectID/leave
func (h *Handler) Leave(c *gin.Context) {
	id, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), respond.UserID(c), id); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, nil)
}

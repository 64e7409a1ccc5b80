// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
HTTP interface for groups and memberships.

# Routing Strategy

  - Discovery: Group detail and roster views.
  - Membership: Join, leave, invitations and the caller's own groups.
  - Administrative: Settings, role changes, removals, bans and join request review.
  - Maintenance: Counter reconciliation, restricted to platform moderators.

The handler translates between the REST layer and the [Service] domain.
*/
package group

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/kinship/internal/platform/middleware"
	requestutil "github.com/taibuivan/kinship/internal/platform/request"
	"github.com/taibuivan/kinship/internal/platform/respond"
	"github.com/taibuivan/kinship/internal/platform/sec"
	"github.com/taibuivan/kinship/pkg/pagination"
)

// # Handler Implementation

// Handler implements the HTTP layer for group operations.
type Handler struct {
	service *Service
}

// NewHandler constructs a new group [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a [chi.Router] configured with group endpoints.
// Authentication middleware is applied when mounting this router.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", handler.createGroup)
	router.Get("/mine", handler.listMyGroups)
	router.Get("/invitations", handler.listInvitations)

	router.Route("/{groupID}", func(group chi.Router) {
		group.Get("/", handler.getGroup)
		group.Patch("/", handler.updateSettings)
		group.Post("/archive", handler.archiveGroup)
		group.Get("/can-post", handler.canPost)

		// ## Membership
		group.Post("/join", handler.join)
		group.Post("/leave", handler.leave)
		group.Get("/members", handler.listMembers)
		group.Delete("/members/{userID}", handler.removeMember)
		group.Put("/members/{userID}/role", handler.changeRole)
		group.Get("/bans", handler.listBans)
		group.Post("/bans/{userID}", handler.banUser)
		group.Delete("/bans/{userID}", handler.unban)

		// ## Admission
		group.Get("/requests", handler.listJoinRequests)
		group.Post("/requests/{userID}/approve", handler.approveJoinRequest)
		group.Post("/requests/{userID}/reject", handler.rejectJoinRequest)
		group.Post("/invitations", handler.invite)
		group.Post("/invitations/respond", handler.respondInvitation)

		// ## Maintenance
		group.With(middleware.RequireRole(sec.RoleModerator)).Post("/reconcile-count", handler.reconcileCount)
	})

	return router
}

// # Group Endpoints

/*
POST /api/v1/groups.

Description: Creates a group. The caller becomes its CREATOR.

Request (Body):
  - CreateInput JSON object

Response:
  - 201: Group: Created object
  - 400: Validation failures
*/
func (handler *Handler) createGroup(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input CreateInput
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	group, err := handler.service.CreateGroup(request.Context(), userID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, group)
}

/*
GET /api/v1/groups/{groupID}.

Request:
  - groupID: string (UUID or slug)

Response:
  - 200: Group
  - 404: Group not found
*/
func (handler *Handler) getGroup(writer http.ResponseWriter, request *http.Request) {
	group, err := handler.service.GetGroup(request.Context(), requestutil.Param(request, "groupID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, group)
}

// PATCH /api/v1/groups/{groupID}.
func (handler *Handler) updateSettings(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input SettingsInput
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	group, err := handler.service.UpdateSettings(request.Context(), userID, requestutil.Param(request, "groupID"), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, group)
}

// POST /api/v1/groups/{groupID}/archive.
func (handler *Handler) archiveGroup(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	group, err := handler.service.ArchiveGroup(request.Context(), userID, requestutil.Param(request, "groupID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, group)
}

// GET /api/v1/groups/{groupID}/can-post.
func (handler *Handler) canPost(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	decision, err := handler.service.CanPost(request.Context(), userID, requestutil.Param(request, "groupID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, decision)
}

// GET /api/v1/groups/mine.
func (handler *Handler) listMyGroups(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	memberships, err := handler.service.ListGroupsForUser(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(memberships, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// # Membership Endpoints

/*
POST /api/v1/groups/{groupID}/join.

Response:
  - 200: JoinResult: JOINED (public group) or REQUESTED (private group)
  - 409: ALREADY_MEMBER / JOIN_REQUEST_PENDING
*/
func (handler *Handler) join(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Join(request.Context(), requestutil.Param(request, "groupID"), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

// POST /api/v1/groups/{groupID}/leave.
func (handler *Handler) leave(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Leave(request.Context(), requestutil.Param(request, "groupID"), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// GET /api/v1/groups/{groupID}/members.
func (handler *Handler) listMembers(writer http.ResponseWriter, request *http.Request) {
	members, err := handler.service.ListMembers(request.Context(), requestutil.Param(request, "groupID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(members, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// DELETE /api/v1/groups/{groupID}/members/{userID}.
func (handler *Handler) removeMember(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.service.RemoveMember(request.Context(), actorID, requestutil.Param(request, "groupID"), requestutil.Param(request, "userID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

type changeRoleBody struct {
	Role string `json:"role"`
}

/*
PUT /api/v1/groups/{groupID}/members/{userID}/role.

Request (Body):
  - role: string (ADMIN or MEMBER)

Response:
  - 200: Member: Updated row
  - 403: INSUFFICIENT_ROLE
*/
func (handler *Handler) changeRole(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body changeRoleBody
	if err := requestutil.DecodeJSON(writer, request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := ParseRole(body.Role)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	member, err := handler.service.ChangeRole(request.Context(), actorID, requestutil.Param(request, "groupID"), requestutil.Param(request, "userID"), role)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, member)
}

// # Ban Endpoints

// GET /api/v1/groups/{groupID}/bans.
func (handler *Handler) listBans(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	bans, err := handler.service.ListBans(request.Context(), actorID, requestutil.Param(request, "groupID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(bans, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

/*
POST /api/v1/groups/{groupID}/bans/{userID}.

Description: Removes the user if they are a member and bars them from joining
again.

Request (Query):
  - reason: string (optional)

Response:
  - 200: Ban
  - 403: INSUFFICIENT_ROLE
  - 422: CREATOR_CANNOT_LEAVE
*/
func (handler *Handler) banUser(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	ban, err := handler.service.BanUser(request.Context(), actorID, requestutil.Param(request, "groupID"), requestutil.Param(request, "userID"), requestutil.Query(request, "reason"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, ban)
}

// DELETE /api/v1/groups/{groupID}/bans/{userID}.
func (handler *Handler) unban(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.service.Unban(request.Context(), actorID, requestutil.Param(request, "groupID"), requestutil.Param(request, "userID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Admission Endpoints

// GET /api/v1/groups/{groupID}/requests.
func (handler *Handler) listJoinRequests(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	requests, err := handler.service.ListJoinRequests(request.Context(), actorID, requestutil.Param(request, "groupID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(requests, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// POST /api/v1/groups/{groupID}/requests/{userID}/approve.
func (handler *Handler) approveJoinRequest(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	member, err := handler.service.ApproveJoinRequest(request.Context(), actorID, requestutil.Param(request, "groupID"), requestutil.Param(request, "userID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, member)
}

// POST /api/v1/groups/{groupID}/requests/{userID}/reject.
func (handler *Handler) rejectJoinRequest(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.service.RejectJoinRequest(request.Context(), actorID, requestutil.Param(request, "groupID"), requestutil.Param(request, "userID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

type inviteBody struct {
	UserID string `json:"user_id"`
}

// POST /api/v1/groups/{groupID}/invitations.
func (handler *Handler) invite(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body inviteBody
	if err := requestutil.DecodeJSON(writer, request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	invitation, err := handler.service.Invite(request.Context(), actorID, requestutil.Param(request, "groupID"), body.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, invitation)
}

// GET /api/v1/groups/invitations.
func (handler *Handler) listInvitations(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	invitations, err := handler.service.ListInvitations(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(invitations, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

type respondInvitationBody struct {
	Accept bool `json:"accept"`
}

// POST /api/v1/groups/{groupID}/invitations/respond.
func (handler *Handler) respondInvitation(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body respondInvitationBody
	if err := requestutil.DecodeJSON(writer, request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.RespondInvitation(request.Context(), userID, requestutil.Param(request, "groupID"), body.Accept)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

// POST /api/v1/groups/{groupID}/reconcile-count.
func (handler *Handler) reconcileCount(writer http.ResponseWriter, request *http.Request) {
	count, err := handler.service.ReconcileCount(request.Context(), requestutil.Param(request, "groupID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int64{"member_count": count})
}

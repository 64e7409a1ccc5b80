// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package friend

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/kinship/internal/platform/request"
	"github.com/taibuivan/kinship/internal/platform/respond"
	"github.com/taibuivan/kinship/pkg/pagination"
)

// # Handler Implementation

// Handler implements the HTTP layer for the friend graph.
type Handler struct {
	service *Service
}

// NewHandler constructs a new friend [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a [chi.Router] configured with friend endpoints.
// Every route requires an authenticated caller.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.listFriends)
	router.Delete("/{userID}", handler.removeFriend)
	router.Get("/{userID}/status", handler.status)

	router.Route("/requests", func(requests chi.Router) {
		requests.Post("/", handler.sendRequest)
		requests.Get("/incoming", handler.listIncoming)
		requests.Get("/incoming/count", handler.countIncoming)
		requests.Get("/outgoing", handler.listOutgoing)
		requests.Post("/{userID}/accept", handler.acceptRequest)
		requests.Post("/{userID}/reject", handler.rejectRequest)
		requests.Delete("/{userID}", handler.cancelRequest)
	})

	return router
}

// # Request Endpoints

type sendRequestBody struct {
	UserID string `json:"user_id"`
}

/*
POST /api/v1/friends/requests.

Description: Sends a friend request. If the target already asked the caller,
both become friends immediately.

Request (Body):
  - user_id: string

Response:
  - 200: Friendship: REQUEST_SENT or FRIENDS
  - 409: ALREADY_FRIENDS / REQUEST_ALREADY_PENDING / CONFLICT
*/
func (handler *Handler) sendRequest(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body sendRequestBody
	if err := requestutil.DecodeJSON(writer, request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	friendship, err := handler.service.SendRequest(request.Context(), userID, body.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, friendship)
}

/*
POST /api/v1/friends/requests/{userID}/accept.

Response:
  - 200: Friendship: FRIENDS
  - 422: NO_SUCH_REQUEST
*/
func (handler *Handler) acceptRequest(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	friendship, err := handler.service.AcceptRequest(request.Context(), userID, requestutil.Param(request, "userID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, friendship)
}

// POST /api/v1/friends/requests/{userID}/reject.
func (handler *Handler) rejectRequest(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.RejectRequest(request.Context(), userID, requestutil.Param(request, "userID")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// DELETE /api/v1/friends/requests/{userID}.
func (handler *Handler) cancelRequest(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.CancelRequest(request.Context(), userID, requestutil.Param(request, "userID")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// GET /api/v1/friends/requests/incoming.
func (handler *Handler) listIncoming(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	requests, err := handler.service.ListIncomingRequests(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(requests, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// GET /api/v1/friends/requests/outgoing.
func (handler *Handler) listOutgoing(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	requests, err := handler.service.ListOutgoingRequests(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(requests, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// GET /api/v1/friends/requests/incoming/count.
func (handler *Handler) countIncoming(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	count, err := handler.service.CountIncomingRequests(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int{"count": count})
}

// # Friendship Endpoints

/*
GET /api/v1/friends.

Request:
  - limit: int
  - page: int

Response:
  - 200: []Friend: Paginated list
*/
func (handler *Handler) listFriends(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	friends, err := handler.service.ListFriends(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(friends, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

/*
DELETE /api/v1/friends/{userID}.

Response:
  - 204: Removed
  - 422: NOT_FRIENDS
*/
func (handler *Handler) removeFriend(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.RemoveFriend(request.Context(), userID, requestutil.Param(request, "userID")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// GET /api/v1/friends/{userID}/status.
func (handler *Handler) status(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	friendship, err := handler.service.Status(request.Context(), userID, requestutil.Param(request, "userID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, friendship)
}

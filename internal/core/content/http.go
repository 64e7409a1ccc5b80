// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package content

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/kinship/internal/platform/request"
	"github.com/taibuivan/kinship/internal/platform/respond"
	"github.com/taibuivan/kinship/pkg/pagination"
)

// # Handler Implementation

// Handler implements the HTTP layer for posts.
type Handler struct {
	service *Service
}

// NewHandler constructs a new content [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a [chi.Router] configured with post endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", handler.createPost)
	router.Get("/", handler.listGroupPosts)
	router.Get("/pending", handler.listPending)

	router.Route("/{postID}", func(post chi.Router) {
		post.Get("/", handler.getPost)
		post.Post("/approve", handler.approvePost)
		post.Post("/reject", handler.rejectPost)
	})

	return router
}

/*
POST /api/v1/posts.

Request (Body):
  - group_id: string
  - body: string

Response:
  - 201: Post (APPROVED or PENDING)
  - 403: POSTING_DENIED
*/
func (handler *Handler) createPost(writer http.ResponseWriter, request *http.Request) {
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

	post, err := handler.service.CreatePost(request.Context(), userID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, post)
}

// GET /api/v1/posts?group_id={groupID}.
func (handler *Handler) listGroupPosts(writer http.ResponseWriter, request *http.Request) {
	posts, err := handler.service.ListGroupPosts(request.Context(), requestutil.Query(request, FieldGroupID))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(posts, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// GET /api/v1/posts/pending?group_id={groupID}.
func (handler *Handler) listPending(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	posts, err := handler.service.ListPendingPosts(request.Context(), userID, requestutil.Query(request, FieldGroupID))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(posts, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// GET /api/v1/posts/{postID}.
func (handler *Handler) getPost(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	post, err := handler.service.GetPost(request.Context(), userID, requestutil.Param(request, "postID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, post)
}

// POST /api/v1/posts/{postID}/approve.
func (handler *Handler) approvePost(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	post, err := handler.service.ApprovePost(request.Context(), userID, requestutil.Param(request, "postID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, post)
}

type rejectBody struct {
	Reason string `json:"reason"`
}

/*
POST /api/v1/posts/{postID}/reject.

Request (Body):
  - reason: string (optional)

Response:
  - 200: Post (REJECTED)
  - 422: POST_NOT_PENDING
*/
func (handler *Handler) rejectPost(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body rejectBody
	if err := requestutil.DecodeJSON(writer, request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	post, err := handler.service.RejectPost(request.Context(), userID, requestutil.Param(request, "postID"), body.Reason)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, post)
}

// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package moderation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/kinship/internal/platform/request"
	"github.com/taibuivan/kinship/internal/platform/respond"
	"github.com/taibuivan/kinship/pkg/pagination"
)

// # Handler Implementation

// Handler implements the HTTP layer for reports.
type Handler struct {
	service *Service
}

// NewHandler constructs a new moderation [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a [chi.Router] configured with report endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", handler.submit)
	router.Get("/", handler.listReports)
	router.Get("/mine", handler.listMine)
	router.Get("/groups/{groupID}", handler.listGroupReports)

	router.Route("/{reportID}", func(report chi.Router) {
		report.Get("/", handler.getReport)
		report.Post("/claim", handler.claim)
		report.Post("/resolve", handler.resolve)
	})

	return router
}

// moderator builds the caller identity from the verified token claims.
func moderator(request *http.Request) (Moderator, error) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		return Moderator{}, err
	}
	return Moderator{UserID: claims.UserID, Role: claims.PlatformRole()}, nil
}

/*
POST /api/v1/reports.

Request (Body):
  - target_type: POST | COMMENT | USER | GROUP
  - target_id: string
  - author_id, group_id: string (optional)
  - reason: string
  - description: string (optional)

Response:
  - 201: Report (PENDING)
  - 409: DUPLICATE_REPORT
*/
func (handler *Handler) submit(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input SubmitInput
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	report, err := handler.service.Submit(request.Context(), userID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, report)
}

// GET /api/v1/reports?status={status}.
func (handler *Handler) listReports(writer http.ResponseWriter, request *http.Request) {
	caller, err := moderator(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	reports, err := handler.service.ListReports(request.Context(), caller, requestutil.Query(request, FieldStatus))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(reports, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// GET /api/v1/reports/mine.
func (handler *Handler) listMine(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	reports, err := handler.service.ListMyReports(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(reports, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// GET /api/v1/reports/groups/{groupID}.
func (handler *Handler) listGroupReports(writer http.ResponseWriter, request *http.Request) {
	caller, err := moderator(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	reports, err := handler.service.ListGroupReports(request.Context(), caller, requestutil.Param(request, "groupID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, meta := pagination.Page(reports, pagination.FromRequest(request))
	respond.Paginated(writer, page, meta)
}

// GET /api/v1/reports/{reportID}.
func (handler *Handler) getReport(writer http.ResponseWriter, request *http.Request) {
	caller, err := moderator(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	report, err := handler.service.GetReport(request.Context(), caller, requestutil.Param(request, "reportID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, report)
}

/*
POST /api/v1/reports/{reportID}/claim.

Response:
  - 200: Report (REVIEWING)
  - 409: ALREADY_CLAIMED
  - 422: REPORT_RESOLVED
*/
func (handler *Handler) claim(writer http.ResponseWriter, request *http.Request) {
	caller, err := moderator(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	report, err := handler.service.Claim(request.Context(), caller, requestutil.Param(request, "reportID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, report)
}

/*
POST /api/v1/reports/{reportID}/resolve.

Request (Body):
  - outcome: ACTION_TAKEN | DISMISSED
  - action: NONE | HIDE_CONTENT | REMOVE_MEMBER | BAN_GROUP

Response:
  - 200: Report (RESOLVED_*)
  - 207: Report with a PARTIAL_FAILURE error when the action failed
  - 422: REPORT_RESOLVED / REPORT_NOT_CLAIMED
*/
func (handler *Handler) resolve(writer http.ResponseWriter, request *http.Request) {
	caller, err := moderator(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input ResolveInput
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	report, err := handler.service.Resolve(request.Context(), caller, requestutil.Param(request, "reportID"), input)
	respond.Result(writer, request, report, err)
}

package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"conti/internal/core"
	"conti/internal/log"
	"conti/internal/rooms"
	"conti/internal/services"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		_ = NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.opts.Store.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		_ = ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	_ = NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.opts.Settlements.Settle(r.Context(), roomID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = NewJSONResponse().Body(res).Write(w)
}

type summaryResponse struct {
	core.RoomSummary
	TotalDisplay string `json:"total_display"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := s.opts.Expenses.List(r.Context(), roomID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum := core.Summarize(records)
	_ = NewJSONResponse().Body(summaryResponse{
		RoomSummary:  sum,
		TotalDisplay: core.FormatAmount(sum.Total, s.opts.AmountExponent),
	}).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := s.opts.Expenses.List(r.Context(), roomID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []core.ExpenseRecord{}
	}
	_ = NewJSONResponse().Body(map[string][]core.ExpenseRecord{"expenses": records}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := req.toNewExpense(s.opts.AmountExponent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.opts.Expenses.Record(r.Context(), roomID, e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/rooms/"+roomID+"/expenses/"+strconv.FormatInt(rec.ID, 10)).
		Body(rec).
		Write(w)
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported as 500 without details.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		_ = NotFoundError("room not found").Write(w)
	case errors.Is(err, core.ErrValidation), errors.Is(err, services.ErrNotMember):
		_ = BadRequestError(err.Error()).Write(w)
	case errors.Is(err, errInvalidRoomID):
		_ = BadRequestError(err.Error()).Write(w)
	case errors.Is(err, errBodyTooLarge):
		_ = ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
	case errors.Is(err, errUnsupportedType):
		_ = ErrorResponse(http.StatusUnsupportedMediaType, err.Error()).Write(w)
	case isDecodeError(err):
		_ = BadRequestError(err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().WithOperation(r.Method+" "+r.URL.Path).WithError(err).ToSlice()...)
		_ = InternalServerError().Write(w)
	}
}

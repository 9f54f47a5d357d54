package consultation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalos/dentalos/internal/platform/auth"
	"github.com/dentalos/dentalos/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("dentist", "assistant", "receptionist"))
	read.GET("/consultations", h.ListConsultations)
	read.GET("/consultations/:id", h.GetConsultation)

	write := api.Group("", auth.RequireRole("dentist", "assistant"))
	write.POST("/consultations", h.StartConsultation)
	write.PATCH("/consultations/:id/status", h.UpdateStatus)

	// Completion is driven by checkout, hence the receptionist role.
	api.POST("/consultations/:id/complete", h.CompleteConsultation,
		auth.RequireRole("receptionist"))
}

type startRequest struct {
	PatientID  uuid.UUID `json:"patient_id"`
	DoctorID   *string   `json:"doctor_id,omitempty"`
	DoctorName *string   `json:"doctor_name,omitempty"`
	Complaint  *string   `json:"complaint,omitempty"`
}

func (h *Handler) StartConsultation(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cons := &Consultation{
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		DoctorName: req.DoctorName,
		Complaint:  req.Complaint,
	}
	if err := h.svc.Start(c.Request().Context(), cons); err != nil {
		if errors.Is(err, ErrActiveExists) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cons)
}

func (h *Handler) GetConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cons, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if cons == nil {
		return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type statusRequest struct {
	Action string `json:"action"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	var cons *Consultation
	switch req.Action {
	case "send-to-xray":
		cons, err = h.svc.SendToXRay(ctx, id)
	case "xray-done":
		cons, err = h.svc.MarkXRayDone(ctx, id)
	case "cancel":
		cons, err = h.svc.Cancel(ctx, id)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "action must be send-to-xray, xray-done, or cancel")
	}
	if err != nil {
		return statusError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) CompleteConsultation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cons, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return statusError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func statusError(err error) error {
	switch {
	case errors.Is(err, ErrStaleConsultation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

package imaging

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalos/dentalos/internal/domain/consultation"
	"github.com/dentalos/dentalos/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("dentist", "assistant", "receptionist"))
	read.GET("/imaging/unassigned/images", h.ListUnassignedImages)
	read.GET("/imaging/unassigned/studies", h.ListUnassignedStudies)

	write := api.Group("", auth.RequireRole("dentist", "assistant"))
	write.POST("/imaging/unassigned/images/:filename/assign", h.AssignImage)
	write.POST("/imaging/unassigned/studies/:id/assign", h.AssignStudy)
	write.DELETE("/imaging/unassigned/images/:filename", h.DiscardImage)
	write.DELETE("/imaging/unassigned/studies/:id", h.DiscardStudy)
	write.POST("/consultations/:id/xray/upload", h.Upload)
}

// RegisterDeviceRoutes mounts the capture-station push endpoint. The group
// must carry the device API key middleware, not staff JWT auth.
func (h *Handler) RegisterDeviceRoutes(device *echo.Group) {
	device.POST("/imaging/push", h.Push)
}

func (h *Handler) ListUnassignedImages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": h.svc.UnassignedImages()})
}

func (h *Handler) ListUnassignedStudies(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": h.svc.UnassignedStudies()})
}

func (h *Handler) AssignImage(c echo.Context) error {
	filename := c.Param("filename")
	var target AssignTarget
	if err := c.Bind(&target); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cons, err := h.svc.AssignImage(c.Request().Context(), filename, target, actor(c))
	if err != nil {
		return assignError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) AssignStudy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var target AssignTarget
	if err := c.Bind(&target); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cons, err := h.svc.AssignStudy(c.Request().Context(), id, target, actor(c))
	if err != nil {
		return assignError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) DiscardImage(c echo.Context) error {
	if err := h.svc.DiscardImage(c.Request().Context(), c.Param("filename")); err != nil {
		return assignError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DiscardStudy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DiscardStudy(c.Request().Context(), id); err != nil {
		return assignError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Upload attaches multipart files directly to a consultation, with optional
// note and radiologist form fields.
func (h *Handler) Upload(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	parts := form.File["files"]
	if len(parts) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one file is required")
	}

	files := make([]ImageFile, 0, len(parts))
	for _, part := range parts {
		files = append(files, fileFromPart(part, c.FormValue("type")))
	}

	var meta ResultMeta
	if v := c.FormValue("note"); v != "" {
		meta.Note = &v
	}
	if v := c.FormValue("radiologist"); v != "" {
		meta.Radiologist = &v
	}

	cons, err := h.svc.Upload(c.Request().Context(), id, files, meta, actor(c))
	if err != nil {
		return assignError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func fileFromPart(part *multipart.FileHeader, imageType string) ImageFile {
	return ImageFile{
		Filename: part.Filename,
		Type:     imageType,
		Open: func() (io.ReadCloser, error) {
			return part.Open()
		},
	}
}

type pushPatient struct {
	FullName    string `json:"full_name"`
	PatientCode string `json:"patient_code"`
	DateOfBirth string `json:"date_of_birth"`
	Sex         string `json:"sex"`
}

type pushImage struct {
	Type     string `json:"type"`
	GUID     string `json:"guid"`
	Filename string `json:"filename"`
}

type pushRequest struct {
	StudyGUID string      `json:"study_guid"`
	StudyDate *time.Time  `json:"study_date,omitempty"`
	Patient   pushPatient `json:"patient"`
	Images    []pushImage `json:"images"`
}

// Push accepts a study announcement from a capture station. Payloads carry
// metadata only; pixel data stays on the device share and is picked up by
// the directory watcher.
func (h *Handler) Push(c echo.Context) error {
	var req pushRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.StudyGUID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "study_guid is required")
	}

	images := make([]StudyImageRef, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, StudyImageRef{Type: img.Type, GUID: img.GUID, Filename: img.Filename})
	}

	study := IncomingStudy{
		StudyGUID: req.StudyGUID,
		Info: StudyInfo{
			Patient: PatientHints{
				FullName:    req.Patient.FullName,
				PatientCode: req.Patient.PatientCode,
				DateOfBirth: req.Patient.DateOfBirth,
				Sex:         req.Patient.Sex,
			},
			StudyDate: req.StudyDate,
			Images:    images,
		},
	}

	result, err := h.svc.IngestStudy(c.Request().Context(), study)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	status := http.StatusOK
	if !result.Assigned {
		status = http.StatusAccepted
	}
	return c.JSON(status, result)
}

func actor(c echo.Context) string {
	if name := auth.UserNameFromContext(c.Request().Context()); name != "" {
		return name
	}
	return "staff"
}

func assignError(err error) error {
	switch {
	case IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoPatient):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, consultation.ErrStaleConsultation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

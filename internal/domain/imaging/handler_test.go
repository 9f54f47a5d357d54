package imaging

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalos/dentalos/internal/domain/consultation"
)

func TestHandler_Push_UnmatchedReturnsAccepted(t *testing.T) {
	f := newPipeline(t)
	h := NewHandler(f.svc)

	body := `{
		"study_guid": "push-1",
		"patient": {"full_name": "Unknown Patient"},
		"images": [{"type": "panoramic", "guid": "img-1"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/imaging/push", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Push(c); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}

	var result IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Assigned || result.StudyID == uuid.Nil {
		t.Errorf("expected queued result, got %+v", result)
	}
	if len(f.queue.Studies()) != 1 {
		t.Error("pushed study not queued")
	}
}

func TestHandler_Push_MatchedReturnsOK(t *testing.T) {
	p := newTestPatient("SD-25-00042", "Maria Ionescu", nil, time.Now())
	f := newPipeline(t, p)
	h := NewHandler(f.svc)

	body := `{"study_guid": "push-2", "patient": {"patient_code": "SD-25-00042"}}`
	req := httptest.NewRequest(http.MethodPost, "/imaging/push", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Push(echo.New().NewContext(req, rec)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandler_Push_RequiresStudyGUID(t *testing.T) {
	h := NewHandler(newPipeline(t).svc)
	req := httptest.NewRequest(http.MethodPost, "/imaging/push", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.Push(echo.New().NewContext(req, rec))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_AssignStudy_NotFound(t *testing.T) {
	h := NewHandler(newPipeline(t).svc)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patient_code": "SD-25-00042"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.AssignStudy(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown study, got %v", err)
	}
}

func TestHandler_AssignStudy_StaleConsultationConflicts(t *testing.T) {
	f := newPipeline(t)
	done := &consultation.Consultation{ID: uuid.New(), Status: consultation.StatusCancelled}
	f.cons.add(done)
	studyID, _ := f.queue.EnqueueStudy(deviceStudy("g-h1", "", ""))

	h := NewHandler(f.svc)
	body := `{"consultation_id": "` + done.ID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(studyID.String())

	err := h.AssignStudy(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for terminal target, got %v", err)
	}
}

func TestHandler_ListUnassigned(t *testing.T) {
	f := newPipeline(t)
	f.queue.EnqueueImage(IncomingImage{Filename: "pano.png"})
	h := NewHandler(f.svc)

	req := httptest.NewRequest(http.MethodGet, "/imaging/unassigned/images", nil)
	rec := httptest.NewRecorder()
	if err := h.ListUnassignedImages(echo.New().NewContext(req, rec)); err != nil {
		t.Fatalf("ListUnassignedImages: %v", err)
	}
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("pano.png")) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Upload_MergesMultipartFiles(t *testing.T) {
	f := newPipeline(t)
	target := &consultation.Consultation{ID: uuid.New(), Status: consultation.StatusWaitingXray}
	f.cons.add(target)
	h := NewHandler(f.svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "pano.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("pixels")); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("note", "impacted molar"); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(target.ID.String())

	if err := h.Upload(c); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var cons consultation.Consultation
	if err := json.Unmarshal(rec.Body.Bytes(), &cons); err != nil {
		t.Fatal(err)
	}
	if len(cons.XRayImages) != 1 || cons.XRayImages[0].Filename != "pano.png" {
		t.Errorf("file not merged: %+v", cons.XRayImages)
	}
	if cons.XRayNote == nil || *cons.XRayNote != "impacted molar" {
		t.Errorf("note not merged: %v", cons.XRayNote)
	}
	if cons.Status != consultation.StatusXrayDone {
		t.Errorf("status = %s", cons.Status)
	}
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fakedetect/pkg/types"
)

type mockService struct {
	pred  types.Prediction
	err   error
	ready bool
	got   []byte
}

func (m *mockService) Ready() bool { return m.ready }
func (m *mockService) Predict(ctx context.Context, r io.Reader) (types.Prediction, error) {
	b, err := io.ReadAll(r)
	if err != nil { return types.Prediction{}, err }
	m.got = b
	if m.err != nil { return types.Prediction{}, m.err }
	return m.pred, nil
}

type mockHTTPError struct{ msg string; code int }
func (e mockHTTPError) Error() string { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

// uploadRequest builds a multipart POST /analyze with one file part.
func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil { t.Fatalf("create part: %v", err) }
	if _, err := fw.Write(content); err != nil { t.Fatalf("write part: %v", err) }
	if err := mw.Close(); err != nil { t.Fatalf("close: %v", err) }
	req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil { t.Fatalf("json: %v body=%q", err, w.Body.String()) }
	return body.Error
}

func TestAnalyze_Success(t *testing.T) {
	svc := &mockService{pred: types.Prediction{Label: "Fake", Confidence: 97.31}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, uploadRequest(t, "file", "cat.jpg", []byte("jpeg-bytes")))
	if w.Code != http.StatusOK { t.Fatalf("status=%d body=%s", w.Code, w.Body.String()) }
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") { t.Fatalf("content-type=%s", ct) }
	var body types.AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil { t.Fatalf("json: %v", err) }
	if body.Result != "Fake" || body.Confidence != 97.31 { t.Fatalf("unexpected body: %+v", body) }
	if string(svc.got) != "jpeg-bytes" { t.Fatalf("service got %q", svc.got) }
}

func TestAnalyze_SkipsOtherParts(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "hello")
	fw, _ := mw.CreateFormFile("file", "a.png")
	_, _ = fw.Write([]byte("png"))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	svc := &mockService{pred: types.Prediction{Label: "Real", Confidence: 60}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, req)
	if w.Code != http.StatusOK || string(svc.got) != "png" { t.Fatalf("status=%d got=%q", w.Code, svc.got) }
}

func TestAnalyze_NoFile(t *testing.T) {
	cases := map[string]func() *http.Request{
		"json body": func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"file":"x"}`))
			req.Header.Set("Content-Type", "application/json")
			return req
		},
		"no body": func() *http.Request { return httptest.NewRequest(http.MethodPost, "/analyze", nil) },
		"wrong field": func() *http.Request { return uploadRequest(t, "image", "a.jpg", []byte("x")) },
		"form value named file": func() *http.Request {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			_ = mw.WriteField("file", "not an upload")
			_ = mw.Close()
			req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			return req
		},
	}
	for name, mk := range cases {
		svc := &mockService{}
		w := httptest.NewRecorder()
		NewMux(svc).ServeHTTP(w, mk())
		if w.Code != http.StatusBadRequest { t.Fatalf("%s: status=%d", name, w.Code) }
		if msg := decodeError(t, w); msg != "No file uploaded" { t.Fatalf("%s: error=%q", name, msg) }
		if svc.got != nil { t.Fatalf("%s: service must not be called", name) }
	}
}

func TestAnalyze_EmptyFilename(t *testing.T) {
	svc := &mockService{}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, uploadRequest(t, "file", "", []byte("x")))
	if w.Code != http.StatusBadRequest { t.Fatalf("status=%d", w.Code) }
	if msg := decodeError(t, w); msg != "Empty filename" { t.Fatalf("error=%q", msg) }
}

func TestAnalyze_ErrorMaps500WithMessage(t *testing.T) {
	svc := &mockService{err: errors.New("cannot identify image file: image: unknown format")}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, uploadRequest(t, "file", "notes.txt", []byte("plain text")))
	if w.Code != http.StatusInternalServerError { t.Fatalf("status=%d", w.Code) }
	if msg := decodeError(t, w); msg != svc.err.Error() { t.Fatalf("error=%q", msg) }
}

func TestAnalyze_HTTPErrorMapping(t *testing.T) {
	svc := &mockService{err: mockHTTPError{msg: "too busy", code: http.StatusTooManyRequests}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, uploadRequest(t, "file", "a.jpg", []byte("x")))
	if w.Code != http.StatusTooManyRequests { t.Fatalf("status=%d", w.Code) }
	if msg := decodeError(t, w); msg != "too busy" { t.Fatalf("error=%q", msg) }
}

func TestAnalyze_UploadTooLarge(t *testing.T) {
	defer SetMaxUploadBytes(0)
	SetMaxUploadBytes(1024)
	big := bytes.Repeat([]byte{'a'}, 4096)

	// limit hit while the service reads the part
	svc := &mockService{}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, uploadRequest(t, "file", "big.jpg", big))
	if w.Code != http.StatusRequestEntityTooLarge { t.Fatalf("status=%d body=%s", w.Code, w.Body.String()) }
	if msg := decodeError(t, w); !strings.Contains(msg, "1024") { t.Fatalf("error=%q", msg) }

	// limit hit before the file part is reached
	SetMaxUploadBytes(16)
	w = httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, uploadRequest(t, "file", "big.jpg", big))
	if w.Code != http.StatusRequestEntityTooLarge { t.Fatalf("status=%d", w.Code) }
}

func TestReadyz(t *testing.T) {
	svc := &mockService{ready: true}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK { t.Fatalf("status=%d", w.Code) }
}

func TestReadyz_NotReady(t *testing.T) {
	svc := &mockService{ready: false}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable { t.Fatalf("status=%d", w.Code) }
	if !strings.Contains(w.Body.String(), "loading") { t.Fatalf("body=%q", w.Body.String()) }
}

func TestHealthz(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK { t.Fatalf("status=%d", w.Code) }
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" { t.Fatalf("nosniff=%q", got) }
}

func TestAnalyze_GetNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analyze", nil))
	if w.Code != http.StatusMethodNotAllowed { t.Fatalf("status=%d", w.Code) }
}

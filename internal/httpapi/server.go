package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fakedetect/internal/analyzer"
	"fakedetect/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Predict(ctx context.Context, r io.Reader) (types.Prediction, error)
	Ready() bool
}

// Fixed validation messages returned with 400.
const (
	msgNoFile        = "No file uploaded"
	msgEmptyFilename = "Empty filename"
)

// statusClientClosed is logged, never written, when nobody is left to read
// the response.
const statusClientClosed = 499

var (
	errNoFile        = errors.New(msgNoFile)
	errEmptyFilename = errors.New(msgEmptyFilename)
)

// NewMux builds the router serving POST /analyze and the operational endpoints.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(cors.Handler(corsOptions()))

	r.Post("/analyze", analyzeHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func corsOptions() cors.Options {
	origins := corsAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	o := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: corsAllowedMethods,
		MaxAge:         300,
	}
	if len(corsAllowedHeaders) > 0 {
		o.AllowedHeaders = corsAllowedHeaders
	}
	return o
}

// analyzeHandler classifies the uploaded image.
//
// @Summary      Classify an uploaded image as real or fake
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Image to analyze"
// @Success      200  {object}  types.AnalyzeResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      413  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /analyze [post]
func analyzeHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		logAnalyzeStart(r, lvl)

		body := &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, maxUploadBytes)}
		r.Body = body
		part, err := uploadedFile(r)
		if err != nil {
			status, msg := http.StatusBadRequest, err.Error()
			switch {
			case body.tooLarge:
				status, msg = http.StatusRequestEntityTooLarge, tooLargeMessage()
				incrementUploadRejected("too_large")
			case errors.Is(err, errEmptyFilename):
				incrementUploadRejected("empty_filename")
			default:
				incrementUploadRejected("no_file")
			}
			writeJSONError(w, status, msg)
			logAnalyzeEnd(r, lvl, status, start, err)
			return
		}
		defer part.Close()

		ctx, cancel := analysisContext(r)
		defer cancel()

		pred, err := svc.Predict(ctx, part)
		if err != nil {
			// Client went away or the server is shutting down: nobody reads the answer.
			if abandoned(r) {
				logAnalyzeEnd(r, lvl, statusClientClosed, start, err)
				return
			}
			status := http.StatusInternalServerError
			msg := err.Error()
			var he HTTPError
			switch {
			case body.tooLarge:
				status, msg = http.StatusRequestEntityTooLarge, tooLargeMessage()
				incrementUploadRejected("too_large")
			case analyzer.IsTooBusy(err):
				status = http.StatusTooManyRequests
				IncrementBackpressure("queue")
			case errors.As(err, &he):
				status = he.StatusCode()
			}
			writeJSONError(w, status, msg)
			logAnalyzeEnd(r, lvl, status, start, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(pred.Response()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			logAnalyzeEnd(r, lvl, http.StatusInternalServerError, start, err)
			return
		}
		logAnalyzeEnd(r, lvl, http.StatusOK, start, nil)
	}
}

// uploadedFile streams the multipart body up to the "file" part. A part
// named "file" without a filename parameter is a plain form value and is
// skipped; one with filename="" is rejected.
func uploadedFile(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFile
	}
	for {
		p, err := mr.NextPart()
		if err != nil {
			return nil, errNoFile
		}
		if p.FormName() != "file" {
			p.Close()
			continue
		}
		_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
		if err != nil {
			p.Close()
			continue
		}
		name, ok := params["filename"]
		if !ok {
			p.Close()
			continue
		}
		if name == "" {
			p.Close()
			return nil, errEmptyFilename
		}
		return p, nil
	}
}

func tooLargeMessage() string {
	return fmt.Sprintf("upload exceeds %d bytes", maxUploadBytes)
}

// limitedBody remembers whether reading the request hit the upload limit.
// Multipart and image decoders do not always surface the reader's error.
type limitedBody struct {
	io.ReadCloser
	tooLarge bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var mbe *http.MaxBytesError
	if err != nil && errors.As(err, &mbe) {
		b.tooLarge = true
	}
	return n, err
}

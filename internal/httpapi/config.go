package httpapi

// maxUploadBytes caps the request body of POST /analyze.
var maxUploadBytes int64 = 32 << 20

// SetMaxUploadBytes configures the upload limit; non-positive restores 32 MiB.
func SetMaxUploadBytes(n int64) {
	if n <= 0 {
		maxUploadBytes = 32 << 20
		return
	}
	maxUploadBytes = n
}

// inferTimeout bounds a single analysis, in seconds.
// Zero means no additional timeout beyond server/connection timeouts.
var inferTimeout = int64(0)

// SetInferTimeoutSeconds sets the analysis timeout in seconds (0 disables).
func SetInferTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	inferTimeout = sec
}

// CORS configuration. An empty origin list allows every origin.
var (
	corsAllowedOrigins []string
	corsAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. Empty methods
// keep GET/POST/OPTIONS; empty headers keep the middleware defaults.
func SetCORSOptions(origins, methods, headers []string) {
	corsAllowedOrigins = append([]string(nil), origins...)
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "OPTIONS"}
	}
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

package types

// AnalyzeResponse is returned by POST /analyze on success.
type AnalyzeResponse struct {
	// Label reported for the uploaded image, as named by the model's label map.
	// example: Fake
	Result string `json:"result" example:"Fake"`
	// Confidence percentage in [0, 100], rounded to two decimals.
	// example: 97.31
	Confidence float64 `json:"confidence" example:"97.31"`
}

// ErrorResponse is the JSON error payload used by every failing response.
type ErrorResponse struct {
	// Error message.
	// example: No file uploaded
	Error string `json:"error" example:"No file uploaded"`
}

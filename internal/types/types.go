// Package types defines configuration and error types shared across the
// translator packages.
package types

// Detector kinds
const (
	DetectorONNX       = "onnx"
	DetectorProjection = "projection"
)

// Fitter kinds
const (
	FitterArea     = "area"
	FitterMeasured = "measured"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheJSON   = "json"
	CacheSQLite = "sqlite"
)

// Config is the persisted application configuration.
type Config struct {
	DPI      int    `json:"dpi"`
	Spread   bool   `json:"spread"`    // emit the untouched page before each translated page
	FontName string `json:"font_name"` // family name used for translated text
	FontPath string `json:"font_path"` // TrueType file for FontName; empty selects a core PDF font
	Fitter   string `json:"fitter"`    // "area" or "measured"

	Detector DetectorConfig `json:"detector"`

	OpenAIAPIKey   string `json:"openai_api_key"`
	OpenAIBaseURL  string `json:"openai_base_url"`
	OpenAIModel    string `json:"openai_model"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	MaxChunkChars  int    `json:"max_chunk_chars"` // paragraphs longer than this are translated sentence-chunk by chunk
	MaxRetries     int    `json:"max_retries"`

	Concurrency          int `json:"concurrency"`           // pages processed in parallel
	ParagraphConcurrency int `json:"paragraph_concurrency"` // translations in flight per page

	CacheBackend  string `json:"cache_backend"` // "json", "sqlite" or "none"
	CachePath     string `json:"cache_path"`
	WorkDirectory string `json:"work_directory"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// DetectorConfig selects and tunes the layout detector.
type DetectorConfig struct {
	Kind          string  `json:"kind"`
	ModelPath     string  `json:"model_path"`   // .onnx or .onnx.gz
	LibraryPath   string  `json:"library_path"` // onnxruntime shared library
	InputSize     int     `json:"input_size"`
	ConfThreshold float64 `json:"conf_threshold"`
	NMSThreshold  float64 `json:"nms_threshold"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError is an application-level error with a stable code.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

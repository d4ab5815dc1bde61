package subtitles

import "errors"

// Sentinel errors for the failure taxonomy. Callers classify with errors.Is
// and map to transport codes in the handler layer.
var (
	ErrProviderTimeout     = errors.New("provider timed out")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrParse               = errors.New("provider response parse failed")
	ErrArchiveExtraction   = errors.New("archive extraction failed")
	ErrUnsupportedFormat   = errors.New("unsupported subtitle format")
	ErrRuntimeMismatch     = errors.New("subtitle runtime mismatch")
	ErrMalformedSubtitle   = errors.New("malformed subtitle")
	ErrInvalidToken        = errors.New("invalid download token")
	ErrNotFound            = errors.New("subtitle not found")
)

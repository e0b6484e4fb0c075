package bridge

import "errors"

// Request-level failures. None of them end a plugin connection.
var (
	ErrInvalidKey        = errors.New("bridge: userId and projectId are required")
	ErrEmptyPrompt       = errors.New("bridge: prompt is required")
	ErrProjectNotFound   = errors.New("bridge: project not found")
	ErrProjectMismatch   = errors.New("bridge: project does not match connection")
	ErrForbidden         = errors.New("bridge: project belongs to another user")
	ErrLookup            = errors.New("bridge: project lookup failed")
	ErrGeneration        = errors.New("bridge: generation failed")
	ErrGenerationTimeout = errors.New("bridge: generation timed out")
	ErrPersist           = errors.New("bridge: persist failed")
)

// Transport failures reported by a Peer.
var (
	ErrPeerClosed     = errors.New("bridge: peer closed")
	ErrSendQueueFull  = errors.New("bridge: send queue full")
	errUnknownMessage = errors.New("unknown message type")
)

// ErrorText is the human-readable message sent to the plugin or dashboard
// for a request-level failure.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, ErrEmptyPrompt):
		return "Prompt is required"
	case errors.Is(err, ErrProjectNotFound):
		return "Project not found"
	case errors.Is(err, ErrProjectMismatch):
		return "Project ID does not match connection"
	case errors.Is(err, ErrForbidden):
		return "Access denied"
	case errors.Is(err, ErrGenerationTimeout):
		return "Generation timed out"
	case errors.Is(err, ErrGeneration):
		return "Failed to generate code. Please try again."
	case errors.Is(err, ErrPersist):
		return "Failed to save generated code"
	case errors.Is(err, ErrLookup):
		return "Failed to load project"
	default:
		return "Failed to process request"
	}
}

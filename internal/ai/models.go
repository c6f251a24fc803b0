package ai

const (
	DefaultModelID = "gemini-2.5-flash"
	FallbackModel  = "gemini-2.0-flash"
)

var modelTable = map[string]string{
	"gemini-2.5-flash": "gemini-2.5-flash",
	"gemini-2.5-pro":   "gemini-2.5-pro",
	"gemini-3-pro":     "gemini-3-pro-preview",
}

// ResolveModel maps a client model id onto the provider model name.
// Empty ids use DefaultModelID; unknown ids fall back to FallbackModel.
func ResolveModel(id string) string {
	if id == "" {
		id = DefaultModelID
	}
	if m, ok := modelTable[id]; ok {
		return m
	}
	return FallbackModel
}

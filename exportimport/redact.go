package exportimport

// RedactionMode controls which parts of a chunk are dropped on export.
type RedactionMode string

const (
	RedactNone       RedactionMode = "none"
	RedactContent    RedactionMode = "content"
	RedactEmbeddings RedactionMode = "embeddings"
	RedactAll        RedactionMode = "all"
)

// applyRedaction returns the content/embedding pair to emit for mode,
// nil-ing out whichever half the mode says to drop. Unrecognized modes
// behave like RedactNone.
func applyRedaction(mode RedactionMode, content string, embedding []float32) (*string, []float32) {
	switch mode {
	case RedactContent:
		return nil, embedding
	case RedactEmbeddings:
		return &content, nil
	case RedactAll:
		return nil, nil
	default:
		return &content, embedding
	}
}

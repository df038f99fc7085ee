package evidence

// Source identifies where a chunk's text was extracted from.
type Source string

const (
	SourceTranscript Source = "transcript"
	SourceOCR        Source = "ocr"
)

// priority orders sources for tie-breaking: transcript before OCR.
func (s Source) priority() int {
	if s == SourceTranscript {
		return 0
	}
	return 1
}

// Chunk is a single time-bounded unit of extracted video text. Chunks are
// immutable once produced by Normalize; Start and End are in seconds from the
// beginning of the video.
type Chunk struct {
	ID         string  `json:"id"`
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Source     Source  `json:"source"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TranscriptSegment is a raw time-stamped transcript line from the
// extraction service.
type TranscriptSegment struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
	Text  string  `json:"text"`
}

// OCRDetection is a raw time-stamped on-screen text detection from the
// extraction service. Confidence reflects the OCR engine's own score.
type OCRDetection struct {
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

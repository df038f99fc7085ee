package testsupport

import "guardian/internal/evidence"

// TranscriptFixture returns a small well-formed transcript for tests.
func TranscriptFixture() []evidence.TranscriptSegment {
	return []evidence.TranscriptSegment{
		{Start: 0, End: 4.5, Text: "Welcome back to the channel."},
		{Start: 4.5, End: 9, Text: "This supplement cures everything, guaranteed."},
		{Start: 9, End: 14, Text: "Use code GUARDIAN for ten percent off."},
	}
}

// OCRFixture returns a small well-formed OCR detection set for tests.
func OCRFixture() []evidence.OCRDetection {
	return []evidence.OCRDetection{
		{Start: 1, End: 2, Text: "LIMITED TIME OFFER", Confidence: 0.95},
		{Start: 6, End: 7, Text: "100% GUARANTEED", Confidence: 0.88},
	}
}

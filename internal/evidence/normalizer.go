package evidence

import (
	"fmt"
	"sort"

	"guardian/internal/services"
	"guardian/internal/textutil"
)

const stageName = "normalizing"

// Options tunes the normalizer. Zero values fall back to the documented
// defaults.
type Options struct {
	// MinOCRConfidence drops OCR detections scored below it. Default 0.5.
	MinOCRConfidence float64
	// DedupeSimilarity is the normalized Levenshtein similarity above which
	// an OCR chunk is collapsed into its neighbour. Default 0.9.
	DedupeSimilarity float64
	// DedupeWindowSeconds bounds how far apart two OCR chunks may start and
	// still be considered frame repetition. Default 2s.
	DedupeWindowSeconds float64
}

func (o Options) withDefaults() Options {
	if o.MinOCRConfidence <= 0 {
		o.MinOCRConfidence = 0.5
	}
	if o.DedupeSimilarity <= 0 {
		o.DedupeSimilarity = 0.9
	}
	if o.DedupeWindowSeconds <= 0 {
		o.DedupeWindowSeconds = 2
	}
	return o
}

// Normalize merges transcript segments and OCR detections into a single
// time-ordered evidence stream. Ordering is by start time with transcript
// winning ties; OCR detections that near-duplicate an adjacent accepted chunk
// within the dedupe window are collapsed to suppress frame-repetition noise.
// The transform is pure: inputs are never mutated.
func Normalize(segments []TranscriptSegment, detections []OCRDetection, opts Options) ([]Chunk, error) {
	opts = opts.withDefaults()

	if err := validateSegments(segments); err != nil {
		return nil, err
	}
	if err := validateDetections(detections); err != nil {
		return nil, err
	}

	merged := make([]Chunk, 0, len(segments)+len(detections))
	for _, seg := range segments {
		text := textutil.CollapseWhitespace(seg.Text)
		if text == "" {
			continue
		}
		merged = append(merged, Chunk{
			Start:      seg.Start,
			End:        seg.End,
			Source:     SourceTranscript,
			Text:       text,
			Confidence: 1,
		})
	}
	for _, det := range detections {
		if det.Confidence < opts.MinOCRConfidence {
			continue
		}
		text := textutil.CollapseWhitespace(det.Text)
		if text == "" {
			continue
		}
		merged = append(merged, Chunk{
			Start:      det.Start,
			End:        det.End,
			Source:     SourceOCR,
			Text:       text,
			Confidence: det.Confidence,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Start != merged[j].Start {
			return merged[i].Start < merged[j].Start
		}
		return merged[i].Source.priority() < merged[j].Source.priority()
	})

	deduped := collapseNearDuplicates(merged, opts)

	for i := range deduped {
		deduped[i].ID = fmt.Sprintf("chunk-%04d", i+1)
	}
	return deduped, nil
}

func collapseNearDuplicates(chunks []Chunk, opts Options) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Source == SourceOCR && len(out) > 0 {
			prev := out[len(out)-1]
			if chunk.Start-prev.Start <= opts.DedupeWindowSeconds {
				similarity := textutil.NormalizedSimilarity(
					textutil.NormalizeForComparison(prev.Text),
					textutil.NormalizeForComparison(chunk.Text),
				)
				if similarity >= opts.DedupeSimilarity {
					// Frame repetition: extend the accepted chunk instead of
					// emitting a near-identical one.
					if chunk.End > prev.End {
						out[len(out)-1].End = chunk.End
					}
					continue
				}
			}
		}
		out = append(out, chunk)
	}
	return out
}

func validateSegments(segments []TranscriptSegment) error {
	lastStart := 0.0
	for i, seg := range segments {
		if seg.Start < 0 || seg.End < 0 {
			return services.Wrap(services.ErrMalformedInput, stageName, "validate transcript",
				fmt.Sprintf("segment %d has negative timestamp", i), nil)
		}
		if seg.End < seg.Start {
			return services.Wrap(services.ErrMalformedInput, stageName, "validate transcript",
				fmt.Sprintf("segment %d ends before it starts", i), nil)
		}
		if seg.Start < lastStart {
			return services.Wrap(services.ErrMalformedInput, stageName, "validate transcript",
				fmt.Sprintf("segment %d is out of order", i), nil)
		}
		lastStart = seg.Start
	}
	return nil
}

func validateDetections(detections []OCRDetection) error {
	lastStart := 0.0
	for i, det := range detections {
		if det.Start < 0 || det.End < 0 {
			return services.Wrap(services.ErrMalformedInput, stageName, "validate ocr",
				fmt.Sprintf("detection %d has negative timestamp", i), nil)
		}
		if det.End < det.Start {
			return services.Wrap(services.ErrMalformedInput, stageName, "validate ocr",
				fmt.Sprintf("detection %d ends before it starts", i), nil)
		}
		if det.Start < lastStart {
			return services.Wrap(services.ErrMalformedInput, stageName, "validate ocr",
				fmt.Sprintf("detection %d is out of order", i), nil)
		}
		lastStart = det.Start
	}
	return nil
}

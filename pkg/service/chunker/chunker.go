package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// ErrUnchunkable marks a review whose text yielded no usable chunks even
// after the normalization retry. Callers count and exclude these; it is
// never a batch-fatal error.
var ErrUnchunkable = goerr.New("review text is unchunkable")

// Service splits review text into addressable evidence units. Chunking is
// deterministic: identical review text always yields identical boundaries,
// and every chunk span is a verbatim substring of the original text.
type Service struct {
	minChars int
	maxChars int
}

// New creates a chunker with the configured merge window
func New(cfg *config.Pipeline) *Service {
	return &Service{
		minChars: cfg.ChunkMinChars,
		maxChars: cfg.ChunkMaxChars,
	}
}

// span is a half-open byte range into the review text
type span struct {
	start int
	end   int
}

// Chunk splits a review into evidence chunks. Sentences are merged up to
// the target window so each chunk can support or refute a claim on its own;
// a sentence boundary is never crossed mid-sentence.
func (s *Service) Chunk(review *model.Review) ([]*model.Chunk, error) {
	merged := mergeSpans(splitSentences(review.Text), review.Text, s.maxChars, s.minChars)

	var spans []span
	for _, sp := range merged {
		if sp.end-sp.start <= s.maxChars {
			spans = append(spans, sp)
			continue
		}
		// Oversized sentence: split at whitespace windows. The sub-spans
		// stay verbatim substrings of the original text.
		for _, sub := range splitWhitespaceWindows(review.Text[sp.start:sp.end], s.maxChars) {
			spans = append(spans, span{start: sp.start + sub.start, end: sp.start + sub.end})
		}
	}
	if len(spans) == 0 {
		return nil, goerr.Wrap(ErrUnchunkable, "no chunkable text",
			goerr.T(types.ErrTagDataQuality),
			goerr.V("reviewID", review.ID))
	}

	chunks := make([]*model.Chunk, 0, len(spans))
	for _, sp := range spans {
		c := &model.Chunk{
			ID:          types.DeriveChunkID(review.ID, sp.start, sp.end),
			ReviewID:    review.ID,
			VenueID:     review.VenueID,
			AuthorID:    review.AuthorID,
			Text:        review.Text[sp.start:sp.end],
			StartOffset: sp.start,
			EndOffset:   sp.end,
			Rating:      review.Rating,
			PostedAt:    review.PostedAt,
		}
		if err := c.Validate(review.Text); err != nil {
			return nil, goerr.Wrap(err, "chunker produced invalid span",
				goerr.V("reviewID", review.ID))
		}
		chunks = append(chunks, c)
	}

	return chunks, nil
}

// splitSentences scans the text for sentence boundaries (terminal
// punctuation or newlines) and returns trimmed byte spans.
func splitSentences(text string) []span {
	var spans []span
	start := 0

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size

		switch r {
		case '.', '!', '?':
			// Consume any run of closing punctuation (e.g. "?!", "...")
			for i < len(text) {
				nr, nsize := utf8.DecodeRuneInString(text[i:])
				if nr != '.' && nr != '!' && nr != '?' && nr != ')' && nr != '"' {
					break
				}
				i += nsize
			}
			if sp, ok := trimSpan(text, start, i); ok {
				spans = append(spans, sp)
			}
			start = i

		case '\n':
			if sp, ok := trimSpan(text, start, i); ok {
				spans = append(spans, sp)
			}
			start = i
		}
	}

	if sp, ok := trimSpan(text, start, len(text)); ok {
		spans = append(spans, sp)
	}

	return spans
}

// trimSpan shrinks [start,end) to exclude surrounding whitespace. Returns
// false when nothing printable remains.
func trimSpan(text string, start, end int) (span, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if start >= end {
		return span{}, false
	}
	return span{start: start, end: end}, true
}

// mergeSpans merges consecutive short sentences until the merged span
// reaches minChars, without exceeding maxChars. A single sentence longer
// than maxChars passes through; the caller window-splits it.
func mergeSpans(sentences []span, text string, maxChars, minChars int) []span {
	var merged []span
	var cur span
	haveCur := false

	for _, sp := range sentences {
		if !haveCur {
			cur = sp
			haveCur = true
			continue
		}

		curLen := cur.end - cur.start
		candidateLen := sp.end - cur.start
		if curLen < minChars && candidateLen <= maxChars {
			cur.end = sp.end
			continue
		}

		merged = append(merged, cur)
		cur = sp
	}

	if haveCur {
		merged = append(merged, cur)
	}

	return merged
}

// splitWhitespaceWindows splits text with no usable sentence boundary at
// the last whitespace before each maxChars window.
func splitWhitespaceWindows(text string, maxChars int) []span {
	sp, ok := trimSpan(text, 0, len(text))
	if !ok {
		return nil
	}

	var spans []span
	start := sp.start
	for start < sp.end {
		if sp.end-start <= maxChars {
			spans = append(spans, span{start: start, end: sp.end})
			break
		}

		cut := strings.LastIndexFunc(text[start:start+maxChars], unicode.IsSpace)
		if cut <= 0 {
			// One unbroken token: cut at the window on a rune boundary
			cut = maxChars
			for cut > 0 && !utf8.RuneStart(text[start+cut]) {
				cut--
			}
			if cut == 0 {
				break
			}
		}

		if s, ok := trimSpan(text, start, start+cut); ok {
			spans = append(spans, s)
		}
		start += cut
		// Skip the separator whitespace
		for start < sp.end {
			r, size := utf8.DecodeRuneInString(text[start:])
			if !unicode.IsSpace(r) {
				break
			}
			start += size
		}
	}

	return spans
}

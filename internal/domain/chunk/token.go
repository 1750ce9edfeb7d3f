package chunk

import (
	"sort"
	"strings"

	"github.com/halcyon-data/docdex/internal/domain/layout"
)

// Token chunking defaults.
const (
	DefaultMaxTokens = 500
	DefaultOverlap   = 50
)

// maxRegionParagraphs caps how many paragraphs contribute geometry to one
// token chunk, keeping highlight regions readable.
const maxRegionParagraphs = 3

// TokenOptions configures the token chunker. Zero values take the defaults;
// Overlap is clamped below MaxTokens to guarantee forward progress.
type TokenOptions struct {
	MaxTokens int
	Overlap   int
}

func (o TokenOptions) withDefaults() TokenOptions {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Overlap <= 0 {
		o.Overlap = DefaultOverlap
	}
	if o.Overlap >= o.MaxTokens {
		o.Overlap = o.MaxTokens - 1
	}
	return o
}

// SplitTokens cuts whitespace-tokenized text into windows of MaxTokens tokens.
// Consecutive windows share Overlap tokens; every window except the last holds
// exactly MaxTokens tokens.
func SplitTokens(text string, opts TokenOptions) []string {
	opts = opts.withDefaults()

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	var out []string
	start := 0
	for {
		end := start + opts.MaxTokens
		if end >= len(tokens) {
			out = append(out, strings.Join(tokens[start:], " "))
			return out
		}
		out = append(out, strings.Join(tokens[start:end], " "))
		start = end - opts.Overlap
	}
}

// SplitText token-chunks full document text and attributes a best-guess page
// and geometry to each window from the analyzed paragraphs.
func SplitText(text string, paragraphs []layout.Paragraph, opts TokenOptions) []Chunk {
	windows := SplitTokens(text, opts)
	chunks := make([]Chunk, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, Chunk{
			Text:     w,
			Type:     ElementTypeText,
			Page:     AttributePage(w, paragraphs),
			Polygons: polygonsOf(AttributeRegions(w, paragraphs)),
		})
	}
	return chunks
}

// AttributePage guesses the source page of a token chunk by scoring paragraphs
// on shared words and taking the best paragraph's page. Best-effort: when no
// paragraph shares a word with the chunk, the page defaults to 1.
func AttributePage(chunkText string, paragraphs []layout.Paragraph) int {
	chunkSet := wordSet(chunkText)
	if len(chunkSet) == 0 {
		return 1
	}

	bestPage, bestScore := 1, 0
	for _, p := range paragraphs {
		score := 0
		for w := range wordSet(p.Content) {
			if chunkSet[w] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestPage = p.Page()
		}
	}
	return bestPage
}

// AttributeRegions approximates a token chunk's bounding regions from the
// paragraphs most likely to have produced it. A paragraph qualifies when at
// least half of it reappears in the chunk as one consecutive word run; when no
// paragraph passes that bar, a plain shared-word ratio of 0.6 is accepted
// instead. The top three paragraphs by score contribute their regions.
// Geometry attribution is approximate by construction.
func AttributeRegions(chunkText string, paragraphs []layout.Paragraph) []layout.Region {
	chunkWords := strings.Fields(strings.ToLower(chunkText))
	if len(chunkWords) == 0 {
		return nil
	}
	chunkSet := make(map[string]bool, len(chunkWords))
	for _, w := range chunkWords {
		chunkSet[w] = true
	}

	type scored struct {
		idx   int
		score float64
	}
	var strong, weak []scored

	for i, p := range paragraphs {
		paraWords := strings.Fields(strings.ToLower(p.Content))
		if len(paraWords) == 0 || len(p.Regions) == 0 {
			continue
		}

		run := longestSharedRun(paraWords, chunkWords)
		if ratio := float64(run) / float64(len(paraWords)); ratio >= 0.5 {
			strong = append(strong, scored{idx: i, score: ratio})
			continue
		}

		shared := 0
		for _, w := range paraWords {
			if chunkSet[w] {
				shared++
			}
		}
		if ratio := float64(shared) / float64(len(paraWords)); ratio >= 0.6 {
			weak = append(weak, scored{idx: i, score: ratio})
		}
	}

	candidates := strong
	if len(candidates) == 0 {
		candidates = weak
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if len(candidates) > maxRegionParagraphs {
		candidates = candidates[:maxRegionParagraphs]
	}

	var regions []layout.Region
	for _, c := range candidates {
		regions = append(regions, paragraphs[c.idx].Regions...)
	}
	return regions
}

// longestSharedRun returns the length of the longest run of words appearing
// consecutively in both slices.
func longestSharedRun(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
		for j := range cur {
			cur[j] = 0
		}
	}
	return best
}

func wordSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(fields))
	for _, w := range fields {
		set[w] = true
	}
	return set
}

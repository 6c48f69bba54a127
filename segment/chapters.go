// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package segment

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/poiesic/mediamind/core"
)

// CostFunc scores the homogeneity of signal[start:end) for change-point
// detection. Lower is more homogeneous. Implementations must be pure
// functions of their arguments.
type CostFunc func(signal []float64, start, end int) float64

// CostL2 is the squared-deviation-from-mean cost. It favors splitting where
// the signal's level shifts.
func CostL2(signal []float64, start, end int) float64 {
	if end-start < 1 {
		return 0
	}
	var sum float64
	for _, v := range signal[start:end] {
		sum += v
	}
	mean := sum / float64(end-start)

	var cost float64
	for _, v := range signal[start:end] {
		d := v - mean
		cost += d * d
	}
	return cost
}

// ChapterDetector groups a job's ordered segments into contiguous chapters
// using PELT change-point detection over a lexical-novelty signal. The
// detection is a pure function of the segment texts: the same segments
// always produce the same chapter boundaries.
type ChapterDetector struct {
	cost    CostFunc
	penalty float64
	minSize int
	logger  *slog.Logger
}

// DetectorOption configures a ChapterDetector.
type DetectorOption func(*ChapterDetector)

// WithCostFunc sets the change-point cost function.
// Default is CostL2.
func WithCostFunc(cost CostFunc) DetectorOption {
	return func(d *ChapterDetector) {
		if cost != nil {
			d.cost = cost
		}
	}
}

// WithPenalty sets the per-change-point penalty. Higher penalties yield
// fewer, longer chapters. Default is 0.6.
func WithPenalty(penalty float64) DetectorOption {
	return func(d *ChapterDetector) {
		if penalty > 0 {
			d.penalty = penalty
		}
	}
}

// WithMinChapterSize sets the minimum number of segments per chapter.
// Default is 1.
func WithMinChapterSize(size int) DetectorOption {
	return func(d *ChapterDetector) {
		if size >= 1 {
			d.minSize = size
		}
	}
}

// WithDetectorLogger sets a custom logger.
// Default is slog.Default().
func WithDetectorLogger(logger *slog.Logger) DetectorOption {
	return func(d *ChapterDetector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewChapterDetector creates a detector with the given options.
func NewChapterDetector(opts ...DetectorOption) *ChapterDetector {
	d := &ChapterDetector{
		cost:    CostL2,
		penalty: 0.6,
		minSize: 1,
		logger:  slog.Default().With("component", "chapters"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect partitions the segments into chapters. The result always satisfies
// the coverage invariant: chapter spans are contiguous, non-overlapping, and
// together cover every segment exactly once.
func (d *ChapterDetector) Detect(jobID string, segments []*core.Segment) ([]core.Chapter, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	signal := noveltySignal(segments)
	changepoints := pelt(signal, d.cost, d.penalty, d.minSize)

	// Boundaries delimit half-open segment ranges [b[i], b[i+1]).
	boundaries := append([]int{0}, changepoints...)
	boundaries = append(boundaries, len(segments))

	chapters := make([]core.Chapter, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		chapters = append(chapters, core.Chapter{
			JobID:        jobID,
			Index:        i,
			StartSegment: boundaries[i],
			EndSegment:   boundaries[i+1] - 1,
			Title:        fmt.Sprintf("Chapter %d", i+1),
		})
	}

	if err := core.ValidateChapters(chapters, len(segments)); err != nil {
		return nil, err
	}

	d.logger.Debug("chapters detected",
		"job_id", jobID,
		"segments", len(segments),
		"chapters", len(chapters))
	return chapters, nil
}

// noveltySignal maps each segment to its lexical novelty relative to the
// previous segment: 1 - Jaccard similarity of their word sets. The first
// segment's novelty is zero.
func noveltySignal(segments []*core.Segment) []float64 {
	signal := make([]float64, len(segments))
	prev := wordSet(segments[0].Text)
	for i := 1; i < len(segments); i++ {
		cur := wordSet(segments[i].Text)
		signal[i] = 1 - jaccard(prev, cur)
		prev = cur
	}
	return signal
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(core.NormalizeText(text)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}

// pelt runs Pruned Exact Linear Time change-point detection and returns the
// interior change points in ascending order. A change point t means a new
// partition starts at index t.
func pelt(signal []float64, cost CostFunc, penalty float64, minSize int) []int {
	n := len(signal)
	if n < 2*minSize {
		return nil
	}

	f := make([]float64, n+1)
	prev := make([]int, n+1)
	f[0] = -penalty
	for i := 1; i <= n; i++ {
		f[i] = math.Inf(1)
	}

	candidates := []int{0}
	for t := minSize; t <= n; t++ {
		for _, s := range candidates {
			if t-s < minSize {
				continue
			}
			c := f[s] + cost(signal, s, t) + penalty
			if c < f[t] {
				f[t] = c
				prev[t] = s
			}
		}

		// Prune candidates that can never again be optimal.
		kept := candidates[:0]
		for _, s := range candidates {
			if t-s < minSize || f[s]+cost(signal, s, t) <= f[t] {
				kept = append(kept, s)
			}
		}
		candidates = append(kept, t)
	}

	var changepoints []int
	for t := prev[n]; t > 0; t = prev[t] {
		changepoints = append(changepoints, t)
	}
	for i, j := 0, len(changepoints)-1; i < j; i, j = i+1, j-1 {
		changepoints[i], changepoints[j] = changepoints[j], changepoints[i]
	}
	return changepoints
}

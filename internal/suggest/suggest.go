// Package suggest ranks existing tasks against a proposed title and
// offers the closest matches as prefilled suggestions.
//
// Scoring is deterministic Jaccard similarity over lowercase word sets.
// Results are memoized per input title so repeated calls never re-scan
// the store, and concurrent calls for the same title are collapsed into
// a single scan. Any lookup failure degrades to a fixed default
// candidate set rather than propagating.
package suggest

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/store"
)

const (
	// similarityThreshold is the minimum Jaccard similarity for a task to
	// be considered a candidate.
	similarityThreshold = 0.3

	// maxCandidates caps the number of suggestions returned.
	maxCandidates = 5

	// defaultConfidence is the confidence attached to the fixed fallback
	// candidates.
	defaultConfidence = 0.5

	// DefaultCacheTTL bounds how long a memoized result is served before
	// the store is scanned again.
	DefaultCacheTTL = 5 * time.Minute
)

// Candidate is one suggested prefill, copied from a similar existing
// task. Confidence is in [0,1] and is shared by all candidates of one
// response: it reflects both how similar the retained tasks are and how
// many corroborating examples were found.
type Candidate struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    domain.Priority `json:"priority"`
	Status      domain.Status   `json:"status"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Confidence  float64         `json:"confidence"`
}

// DefaultCandidates returns the fixed fallback suggestions used for
// blank input, below-threshold input, and lookup failures. The set is
// stable and never derived from stored data.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{
			Title:       "Review Code",
			Description: "Review open changes and leave feedback",
			Priority:    domain.PriorityMedium,
			Status:      domain.StatusTodo,
			Confidence:  defaultConfidence,
		},
		{
			Title:       "Plan Sprint",
			Description: "Prepare the backlog for the next sprint",
			Priority:    domain.PriorityMedium,
			Status:      domain.StatusTodo,
			Confidence:  defaultConfidence,
		},
	}
}

// cachedResult is one memoized suggestion response.
type cachedResult struct {
	candidates []Candidate
	cachedAt   time.Time
}

// Index scores stored task titles against proposed titles. It is safe
// for concurrent use and implements events.EventHandler so task
// mutations flush the memoized results.
type Index struct {
	taskStore store.TaskStore
	logger    *slog.Logger
	ttl       time.Duration

	mu      sync.Mutex
	results map[string]cachedResult
	flight  singleflight.Group

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewIndex creates a suggestion index over the given task store. A zero
// or negative ttl falls back to DefaultCacheTTL. If logger is nil, a
// default logger will be used.
func NewIndex(taskStore store.TaskStore, ttl time.Duration, logger *slog.Logger) *Index {
	if taskStore == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskStore cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Index{
		taskStore: taskStore,
		logger:    logger.With(slog.String("component", "suggestion_index")),
		ttl:       ttl,
		results:   make(map[string]cachedResult),
		now:       time.Now,
	}
}

// Ensure Index implements events.EventHandler
var _ events.EventHandler = (*Index)(nil)

// Suggest returns up to five candidates ranked by similarity to the
// given title, or the fixed defaults when the title is blank, nothing
// clears the threshold, or the underlying scan fails. It never returns
// an error: suggestion lookup failures are terminal here.
func (i *Index) Suggest(ctx context.Context, title string) []Candidate {
	log := logger.FromContextOrDefault(ctx, i.logger)

	inputTokens := tokenize(title)
	if len(inputTokens) == 0 {
		return DefaultCandidates()
	}

	key := strings.ToLower(strings.TrimSpace(title))

	if candidates, ok := i.cached(key); ok {
		log.Debug("suggestion cache hit", slog.String("title", key))
		return candidates
	}

	// Collapse concurrent scans for the same title into one.
	result, _, _ := i.flight.Do(key, func() (any, error) {
		if candidates, ok := i.cached(key); ok {
			return candidates, nil
		}

		candidates, scanned := i.scan(ctx, inputTokens)
		if scanned {
			i.store(key, candidates)
		}
		return candidates, nil
	})

	return result.([]Candidate)
}

// HandleEvent implements events.EventHandler. Every task mutation
// flushes the memoized results so suggestions track current data.
func (i *Index) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	i.InvalidateAll()
	return nil
}

// InvalidateAll drops every memoized result.
func (i *Index) InvalidateAll() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.results = make(map[string]cachedResult)
}

// scan scores every stored task against the input tokens. The boolean
// result reports whether the scan succeeded; failed scans return the
// defaults and must not be memoized, so a recovered store is picked up
// on the next call.
func (i *Index) scan(ctx context.Context, inputTokens map[string]struct{}) ([]Candidate, bool) {
	log := logger.FromContextOrDefault(ctx, i.logger)

	tasks, err := i.taskStore.ListAll(ctx)
	if err != nil {
		log.Error("suggestion scan failed, serving defaults",
			slog.String("error", err.Error()))
		return DefaultCandidates(), false
	}

	type scored struct {
		task       *domain.Task
		similarity float64
	}

	var retained []scored
	for _, task := range tasks {
		similarity := jaccard(inputTokens, tokenize(task.Title))
		if similarity > similarityThreshold {
			retained = append(retained, scored{task: task, similarity: similarity})
		}
	}

	if len(retained) == 0 {
		return DefaultCandidates(), true
	}

	sort.SliceStable(retained, func(a, b int) bool {
		return retained[a].similarity > retained[b].similarity
	})
	if len(retained) > maxCandidates {
		retained = retained[:maxCandidates]
	}

	// Confidence drops both with weak similarity and with too few
	// corroborating examples.
	var sum float64
	for _, s := range retained {
		sum += s.similarity
	}
	sample := float64(len(retained)) / float64(maxCandidates)
	if sample > 1 {
		sample = 1
	}
	confidence := (sum / float64(len(retained))) * sample

	candidates := make([]Candidate, 0, len(retained))
	for _, s := range retained {
		candidates = append(candidates, Candidate{
			Title:       s.task.Title,
			Description: s.task.Description,
			Priority:    s.task.Priority,
			Status:      s.task.Status,
			DueDate:     s.task.DueDate,
			Confidence:  confidence,
		})
	}

	return candidates, true
}

// cached returns the memoized result for the key if it is still fresh.
func (i *Index) cached(key string) ([]Candidate, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	result, ok := i.results[key]
	if !ok {
		return nil, false
	}
	if i.now().Sub(result.cachedAt) > i.ttl {
		delete(i.results, key)
		return nil, false
	}

	candidates := make([]Candidate, len(result.candidates))
	copy(candidates, result.candidates)
	return candidates, true
}

// store memoizes a result under the key.
func (i *Index) store(key string, candidates []Candidate) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.results[key] = cachedResult{candidates: candidates, cachedAt: i.now()}
}

// tokenize splits text into a set of lowercase words. Anything that is
// not a letter or digit separates words.
func tokenize(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make(map[string]struct{}, len(words))
	for _, word := range words {
		tokens[word] = struct{}{}
	}
	return tokens
}

// jaccard computes |A∩B| / |A∪B| for two token sets. It is symmetric
// and returns 0 when both sets are empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

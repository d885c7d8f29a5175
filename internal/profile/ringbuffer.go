package profile

import (
	"strings"
	"time"
)

// DynamicCategory is one of the closed set of dynamic-context categories
// making up the in-memory "RAM layer".
type DynamicCategory string

const (
	CategoryCurrentProject  DynamicCategory = "current_project"
	CategoryRecentChallenge DynamicCategory = "recent_challenge"
	CategoryOngoingGoal     DynamicCategory = "ongoing_goal"
	CategoryRecentMood      DynamicCategory = "recent_mood"
	CategoryActiveInterest  DynamicCategory = "active_interest"
	CategoryTemporaryFocus  DynamicCategory = "temporary_focus"
)

// categoryCues maps each category to the cue phrases that trigger
// auto-extraction from dynamic memory content.
var categoryCues = map[DynamicCategory][]string{
	CategoryCurrentProject:  {"working on"},
	CategoryRecentChallenge: {"struggling with"},
	CategoryOngoingGoal:     {"trying to", "goal is"},
	CategoryRecentMood:      {"feeling"},
	CategoryActiveInterest:  {"interested in"},
	CategoryTemporaryFocus:  {"focused on"},
}

// DynamicItem is one entry in a user's dynamic-context ring buffer.
type DynamicItem struct {
	MemoryID   string
	Category   DynamicCategory
	Content    string
	Importance float64
	CreatedAt  time.Time
}

// RingBuffer is a bounded, age-and-importance-evicting buffer of dynamic
// context items. It is purely a projection of the graph: losing it is
// never a correctness bug, only a cache miss.
type RingBuffer struct {
	capacity   int
	maxAge     time.Duration
	minKeepImp float64
	items      []DynamicItem
}

// NewRingBuffer constructs an empty buffer with the given capacity, max age,
// and minimum importance required to survive past maxAge.
func NewRingBuffer(capacity int, maxAge time.Duration, minKeepImportance float64) *RingBuffer {
	return &RingBuffer{capacity: capacity, maxAge: maxAge, minKeepImp: minKeepImportance}
}

// Insert adds an item, evicting the least-important item (the earliest
// inserted among equals) if the buffer is at capacity.
func (r *RingBuffer) Insert(item DynamicItem, now time.Time) {
	r.Prune(now)

	if len(r.items) >= r.capacity {
		r.evictOne()
	}
	r.items = append(r.items, item)
}

// Prune removes items older than maxAge with importance below
// minKeepImportance (by default: older than 7 days with importance < 0.6).
func (r *RingBuffer) Prune(now time.Time) {
	kept := r.items[:0]
	for _, item := range r.items {
		age := now.Sub(item.CreatedAt)
		if age > r.maxAge && item.Importance < r.minKeepImp {
			continue
		}
		kept = append(kept, item)
	}
	r.items = kept
}

// evictOne removes the single item with the lowest importance, the earliest
// inserted among equals. It does not look at CreatedAt: age plays no part in
// capacity eviction, only in Prune.
func (r *RingBuffer) evictOne() {
	if len(r.items) == 0 {
		return
	}
	worst := 0
	worstScore := r.items[0].Importance
	for i, item := range r.items[1:] {
		if item.Importance < worstScore {
			worstScore = item.Importance
			worst = i + 1
		}
	}
	r.items = append(r.items[:worst], r.items[worst+1:]...)
}

// Items returns a copy of the current buffer contents, newest first.
func (r *RingBuffer) Items() []DynamicItem {
	out := make([]DynamicItem, len(r.items))
	for i, item := range r.items {
		out[len(r.items)-1-i] = item
	}
	return out
}

// ExtractCategory returns the dynamic-context category matching content's
// cue phrases, and whether any matched.
func ExtractCategory(content string) (DynamicCategory, bool) {
	lower := strings.ToLower(content)
	for category, cues := range categoryCues {
		for _, cue := range cues {
			if strings.Contains(lower, cue) {
				return category, true
			}
		}
	}
	return "", false
}

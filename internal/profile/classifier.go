// Package profile implements the user-profile classifier, the per-user
// profile cache, and the dynamic-context ring buffer.
package profile

import "strings"

// declarativePatterns are content prefixes/phrases that mark a memory as a
// static "core fact" about the user, regardless of importance or entity.
var declarativePatterns = []string{
	"my name is",
	"i live in",
	"i work at",
	"my favorite",
	"i am a",
	"i'm a",
}

// staticEntityPredicates is the mutually-exclusive set of entity predicates
// that always mark a memory as static.
var staticEntityPredicates = map[string]bool{
	"name":     true,
	"age":      true,
	"location": true,
	"employer": true,
}

// Classification is the outcome of classifying a new memory.
type Classification struct {
	IsStatic bool
	Reason   string
}

// Classify implements the static/dynamic decision: declarative pattern
// match, importance threshold, or entity-predicate membership.
func Classify(content string, importance float64, entities []string, staticImportanceThreshold float64) Classification {
	lower := strings.ToLower(content)
	for _, pattern := range declarativePatterns {
		if strings.Contains(lower, pattern) {
			return Classification{IsStatic: true, Reason: "declarative_pattern"}
		}
	}

	if importance >= staticImportanceThreshold {
		return Classification{IsStatic: true, Reason: "importance_threshold"}
	}

	for _, entity := range entities {
		predicate, _, ok := strings.Cut(entity, ":")
		if !ok {
			continue
		}
		predicate = strings.ToLower(predicate)
		if staticEntityPredicates[predicate] || strings.HasPrefix(predicate, "favorite_") {
			return Classification{IsStatic: true, Reason: "entity_predicate"}
		}
	}

	return Classification{IsStatic: false, Reason: "dynamic"}
}

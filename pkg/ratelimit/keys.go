package ratelimit

import "fmt"

// keyPrefix namespaces all limiter state in Redis so that bulk operations
// can enumerate it without touching unrelated keys.
const keyPrefix = "rate_limit"

// BuildKey renders the store key for one (category, identifier) pair.
//
// Keys are opaque strings of the form "rate_limit:{category}:{identifier}",
// formed once per check and never parsed back in business logic.
func BuildKey(category, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, category, identifier)
}

// KeyPattern returns the glob pattern matching all keys of one category.
// An empty category matches every rate-limit key.
func KeyPattern(category string) string {
	if category == "" {
		return keyPrefix + ":*"
	}
	return fmt.Sprintf("%s:%s:*", keyPrefix, category)
}

// Package ratelimit implements distributed sliding-window rate limiting
// backed by Redis.
//
// The package is designed for many request-handling processes that share no
// memory but share one Redis instance. Correctness under concurrency is
// delegated entirely to an atomically-executed server-side Lua script: the
// purge of expired window entries, the count, and the conditional insert of
// the new entry happen as one indivisible step per key. No in-process locking
// participates in the admission decision, which is what makes the limiter
// correct across multiple process instances.
//
// The admission path never returns an error to callers. When Redis is
// unreachable or the script fails, CheckLimit fails closed and returns a
// denied Decision; informational reads (GetLimitStatus, GlobalStats) instead
// report optimistic defaults. This asymmetry is deliberate: admission
// protects shared downstream resources, status reads only feed dashboards.
package ratelimit

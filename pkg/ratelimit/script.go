package ratelimit

import (
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// The admission script is loaded from admission.lua at build time. If the
// embedded file is ever empty (stripped build), the inline fallback below
// has identical semantics. Script text is immutable after load and shared
// across all key invocations; go-redis caches it server-side via EVALSHA.
//
//go:embed admission.lua
var admissionLua string

// fallbackAdmissionLua mirrors admission.lua exactly. Keep the two in sync.
const fallbackAdmissionLua = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, 0, now - window_ms)

local count = redis.call("ZCARD", key)
local reset_time = now + window_ms

if limit > 0 and count < limit then
  redis.call("ZADD", key, now, member)
  redis.call("EXPIRE", key, math.ceil(window_ms / 1000))
  return {1, limit - count - 1, reset_time}
end

if count > 0 then
  redis.call("EXPIRE", key, math.ceil(window_ms / 1000))
end

return {0, 0, reset_time}
`

// statusLua purges expired entries and reports the current count without
// inserting anything. Status reads must never consume capacity.
const statusLua = `
local key = KEYS[1]
local window_ms = tonumber(ARGV[1])
local now = tonumber(ARGV[2])

redis.call("ZREMRANGEBYSCORE", key, 0, now - window_ms)
return redis.call("ZCARD", key)
`

// newAdmissionScript returns the sliding-window admission script.
func newAdmissionScript() *redis.Script {
	src := admissionLua
	if src == "" {
		src = fallbackAdmissionLua
	}
	return redis.NewScript(src)
}

// newStatusScript returns the non-mutating status script.
func newStatusScript() *redis.Script {
	return redis.NewScript(statusLua)
}

// admissionResult is the parsed 3-tuple returned by the admission script.
type admissionResult struct {
	allowed   bool
	remaining int64
	resetMs   int64
}

// parseAdmissionResult decodes the raw script reply.
//
// Redis returns Lua tables as []interface{} of int64s; anything else means
// the script or store misbehaved and is treated as a script execution error.
func parseAdmissionResult(raw interface{}) (admissionResult, error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return admissionResult{}, fmt.Errorf("unexpected admission script reply %T", raw)
	}

	allowed, ok := values[0].(int64)
	if !ok {
		return admissionResult{}, fmt.Errorf("unexpected allowed field %T", values[0])
	}
	remaining, ok := values[1].(int64)
	if !ok {
		return admissionResult{}, fmt.Errorf("unexpected remaining field %T", values[1])
	}
	resetMs, ok := values[2].(int64)
	if !ok {
		return admissionResult{}, fmt.Errorf("unexpected reset_time field %T", values[2])
	}

	return admissionResult{
		allowed:   allowed == 1,
		remaining: remaining,
		resetMs:   resetMs,
	}, nil
}

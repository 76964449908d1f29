package subprocess

import (
	"sort"
	"strings"
)

// MergeEnvironment layers overrides on top of a base environment in
// "KEY=value" form and returns a new sorted slice. Neither input is
// modified. Later duplicates in base win over earlier ones, and overrides
// win over base.
func MergeEnvironment(base []string, overrides map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		key, value, ok := splitEnv(kv)
		if !ok {
			continue
		}
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}

	env := make([]string, 0, len(merged))
	for key, value := range merged {
		env = append(env, key+"="+value)
	}
	sort.Strings(env)

	return env
}

// EnvironmentMap turns a "KEY=value" slice into a map.
func EnvironmentMap(env []string) map[string]string {
	out := make(map[string]string, len(env))
	for _, kv := range env {
		if key, value, ok := splitEnv(kv); ok {
			out[key] = value
		}
	}
	return out
}

// splitEnv splits on the first '=' after the first character; windows
// keeps per-drive entries like "=C:=C:\dir".
func splitEnv(kv string) (string, string, bool) {
	if len(kv) < 2 {
		return "", "", false
	}
	idx := strings.Index(kv[1:], "=")
	if idx < 0 {
		return "", "", false
	}
	idx++
	return kv[:idx], kv[idx+1:], true
}

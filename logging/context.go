package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugKeyType int

const debugKey = debugKeyType(iota)

// EnableDebugMode marks ctx so that every CDebug* call made with it logs whatever the logger's
// level, tagged with key. An empty key gets a random one. This is how a single frame is traced
// through both eye workers without turning on debug logging for every frame.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugKey, key)
}

// IsDebugMode reports whether ctx was marked by EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return DebugKey(ctx) != ""
}

// DebugKey is the key ctx was marked with, or "".
func DebugKey(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(debugKey).(string)
	return key
}

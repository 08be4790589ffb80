package logging

import (
	"context"

	"go.viam.com/utils"
)

type traceKey struct{}

// EnableDebugMode tags ctx so context loggers (CDebugf, CInfof...) emit whatever their level.
// An empty tag is replaced by a random one.
func EnableDebugMode(ctx context.Context, tag string) context.Context {
	if tag == "" {
		tag = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, traceKey{}, tag)
}

// IsDebugMode reports whether ctx was tagged by EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return DebugTag(ctx) != ""
}

// DebugTag returns the tag set by EnableDebugMode, or "".
func DebugTag(ctx context.Context) string {
	tag, _ := ctx.Value(traceKey{}).(string)
	return tag
}

package trustcore

import "context"

type clientOriginContextKey struct{}
type userAgentContextKey struct{}
type geoHintContextKey struct{}

// WithClientOrigin attaches the caller’s network origin (typically the
// client IP address) to ctx. The Engine uses it for origin trust checks,
// rate limiting, multi-account detection, and audit logging.
func WithClientOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, clientOriginContextKey{}, origin)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Used as a
// descriptive hint when a new trusted origin is recorded.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithGeoHint attaches a coarse location hint (for example a city or
// country code resolved upstream) to ctx. Used only for trusted origin
// metadata and verification notifications, never for enforcement.
func WithGeoHint(ctx context.Context, hint string) context.Context {
	return context.WithValue(ctx, geoHintContextKey{}, hint)
}

func clientOriginFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	origin, _ := ctx.Value(clientOriginContextKey{}).(string)
	return origin
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func geoHintFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	hint, _ := ctx.Value(geoHintContextKey{}).(string)
	return hint
}

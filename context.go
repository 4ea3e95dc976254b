package authsvc

import "context"

// RequestMeta describes the caller of one engine operation. The transport
// fills it in; the engine only reads it for spans and logs.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta returns a copy of ctx carrying meta.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// WithClientIP is WithRequestMeta for callers that only know the address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	meta := RequestMetaFrom(ctx)
	meta.ClientIP = ip
	return WithRequestMeta(ctx, meta)
}

// RequestMetaFrom returns the metadata stored in ctx, or the zero value.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

package identity

import "context"

type descriptorContextKey struct{}

// ContextWithDescriptor attaches the resolved session descriptor to the context.
func ContextWithDescriptor(ctx context.Context, d Descriptor) context.Context {
	return context.WithValue(ctx, descriptorContextKey{}, &d)
}

// DescriptorFromContext extracts the session descriptor from the context.
func DescriptorFromContext(ctx context.Context) (Descriptor, bool) {
	if ctx == nil {
		return Descriptor{}, false
	}
	v, ok := ctx.Value(descriptorContextKey{}).(*Descriptor)
	if !ok || v == nil {
		return Descriptor{}, false
	}
	return *v, true
}

package device

import "context"

type contextKeyDeviceName struct{}
type contextKeyDeviceFingerprint struct{}

// GetDeviceName retrieves the display name parsed from the User-Agent.
func GetDeviceName(ctx context.Context) string {
	if name, ok := ctx.Value(contextKeyDeviceName{}).(string); ok {
		return name
	}
	return ""
}

// WithDeviceName injects a device display name into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceName{}, name)
}

// GetDeviceFingerprint retrieves the pre-computed device fingerprint from the context.
func GetDeviceFingerprint(ctx context.Context) string {
	if fp, ok := ctx.Value(contextKeyDeviceFingerprint{}).(string); ok {
		return fp
	}
	return ""
}

// WithDeviceFingerprint injects a device fingerprint into a context.
func WithDeviceFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceFingerprint{}, fingerprint)
}

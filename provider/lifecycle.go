package provider

import "context"

// Closeable is optionally implemented by providers that hold resources
// requiring explicit cleanup.
type Closeable interface {
	Close(ctx context.Context) error
}

// Close calls Close on p when it implements Closeable.
func Close(ctx context.Context, p any) error {
	if c, ok := p.(Closeable); ok {
		return c.Close(ctx)
	}
	return nil
}

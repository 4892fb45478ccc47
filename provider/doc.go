// Package provider defines the plugin boundary used for swappable
// implementations: a Provider names itself and reports availability, and a
// Registry maps names to typed factories.
//
//	reg := provider.NewRegistry[timeout.HandlerConfig, timeout.Handler]()
//	reg.RegisterFactory("jstack", timeout.NewToolHandler)
//	h, err := reg.Create("jstack", cfg)
package provider

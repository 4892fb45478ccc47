// Package validation checks configuration structs and run requests.
//
// Struct tag validation uses go-playground/validator with field names taken
// from mapstructure tags, so messages name the same keys users write in
// config files:
//
//	type Config struct {
//	    MaxConcurrent int `mapstructure:"max_concurrent" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// Programmatic validation collects field errors:
//
//	v := validation.New()
//	v.Custom(!cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "", "tracing.endpoint", "is required")
//	err := v.Validate()
package validation

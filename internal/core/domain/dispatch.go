package domain

// Target selects the sink family a dispatch call routes to.
type Target string

const (
	TargetCommand Target = "command"
	TargetRender  Target = "render"
)

// Safety selects between the safe and unsafe variant of a sink family.
type Safety string

const (
	SafetyUnsafe Safety = "unsafe"
	SafetySafe   Safety = "safe"
)

// HTMLMode picks the render sink variant.
type HTMLMode string

const (
	HTMLModeNone HTMLMode = ""
	// HTMLModeBad renders through the unescaped sink.
	HTMLModeBad HTMLMode = "bad"
	// HTMLModeSafe renders through the sink that expects escaped input.
	HTMLModeSafe HTMLMode = "safe"
)

// Predicate selects the command template used by the unsafe command sink.
type Predicate string

const (
	PredicateEquals   Predicate = "equals"
	PredicateContains Predicate = "contains"
)

// DispatchConfig is the validated routing decision for a single dispatch
// call. The zero value is not valid; build one with NewDispatchConfig. A nil
// *DispatchConfig means "no configuration" and selects the unsafe default.
type DispatchConfig struct {
	target    Target
	safety    Safety
	htmlMode  HTMLMode
	predicate Predicate
}

// DispatchOption adjusts a DispatchConfig under construction.
type DispatchOption func(*DispatchConfig)

// WithHTMLMode sets the render variant.
func WithHTMLMode(m HTMLMode) DispatchOption {
	return func(c *DispatchConfig) { c.htmlMode = m }
}

// WithPredicate sets the command template for unsafe command dispatch.
func WithPredicate(p Predicate) DispatchOption {
	return func(c *DispatchConfig) { c.predicate = p }
}

// NewDispatchConfig validates the combination of target, safety and options.
//
// Rules:
//   - render requires an HTML mode; safe render requires HTMLModeSafe
//   - command forbids an HTML mode
//   - the predicate only applies to command targets and defaults to equals
func NewDispatchConfig(target Target, safety Safety, opts ...DispatchOption) (*DispatchConfig, error) {
	c := &DispatchConfig{target: target, safety: safety}
	for _, opt := range opts {
		opt(c)
	}

	switch safety {
	case SafetySafe, SafetyUnsafe:
	default:
		return nil, &ConfigError{Field: "safety", Reason: "unknown safety " + string(safety)}
	}

	switch target {
	case TargetCommand:
		if c.htmlMode != HTMLModeNone {
			return nil, &ConfigError{Field: "html_mode", Reason: "command target does not render markup"}
		}
		switch c.predicate {
		case "":
			c.predicate = PredicateEquals
		case PredicateEquals, PredicateContains:
		default:
			return nil, &ConfigError{Field: "predicate", Reason: "unknown predicate " + string(c.predicate)}
		}
	case TargetRender:
		if c.predicate != "" {
			return nil, &ConfigError{Field: "predicate", Reason: "render target has no command predicate"}
		}
		switch c.htmlMode {
		case HTMLModeBad:
			if safety == SafetySafe {
				return nil, &ConfigError{Field: "html_mode", Reason: "safe render cannot use the unescaped sink"}
			}
		case HTMLModeSafe:
		case HTMLModeNone:
			return nil, &ConfigError{Field: "html_mode", Reason: "render target requires an html mode"}
		default:
			return nil, &ConfigError{Field: "html_mode", Reason: "unknown html mode " + string(c.htmlMode)}
		}
	default:
		return nil, &ConfigError{Field: "target", Reason: "unknown target " + string(target)}
	}

	return c, nil
}

// MustDispatchConfig is NewDispatchConfig for statically known combinations.
// It panics on an invalid combination.
func MustDispatchConfig(target Target, safety Safety, opts ...DispatchOption) *DispatchConfig {
	c, err := NewDispatchConfig(target, safety, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *DispatchConfig) Target() Target       { return c.target }
func (c *DispatchConfig) Safety() Safety       { return c.safety }
func (c *DispatchConfig) HTMLMode() HTMLMode   { return c.htmlMode }
func (c *DispatchConfig) Predicate() Predicate { return c.predicate }

package bef

import "go.uber.org/zap"

// Policy controls how the decoder reacts to recoverable conditions (spec
// §9 "Degraded decoding on missing optional tables"). Lenient is the
// default, matching the source converter's behavior of substituting
// placeholders and continuing; Strict turns every recoverable diagnostic
// into a fatal one.
type Policy int

const (
	Lenient Policy = iota
	Strict
)

type decodeOptions struct {
	policy Policy
	logger *zap.Logger
}

// Option configures a Decode call.
type Option func(*decodeOptions)

// WithPolicy sets the decode policy. The default is Lenient.
func WithPolicy(p Policy) Option {
	return func(o *decodeOptions) { o.policy = p }
}

// WithLogger injects a logger for phase-level decode tracing, used instead
// of the package-level Logger() for this call only.
func WithLogger(l *zap.Logger) Option {
	return func(o *decodeOptions) { o.logger = l }
}

func newDecodeOptions(opts ...Option) decodeOptions {
	o := decodeOptions{policy: Lenient, logger: Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

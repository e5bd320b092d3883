package shmbloom

import "go.uber.org/zap"

type options struct {
	logger *zap.Logger
}

// Option configures a Filter at construction.
type Option func(*options)

// WithLogger sets the logger used for lifecycle and saturation events.
// Filters log nothing by default.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(zap.String("service", "bloomfilter"))
	return o
}

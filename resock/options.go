package resock

// Option customizes a Client or Manager.
type Option func(*options)

type options struct {
	logger  Logger
	dialer  Dialer
	metrics *Metrics
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialer replaces the transport selected by Config.Transport.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithMetrics records connection metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: noopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

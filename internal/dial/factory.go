// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dial

import (
	"github.com/ManuGH/dialwatch/internal/sink"
)

// Factory builds one Client per sink with shared options.
type Factory struct {
	opts []Option
}

func NewFactory(opts ...Option) *Factory {
	return &Factory{opts: opts}
}

// NewClient satisfies the discovery engine's client factory signature.
func (f *Factory) NewClient(s sink.Sink) AppInfoGetter {
	return New(s.ApplicationURL(), f.opts...)
}

package config

import "go.uber.org/fx"

// Module exposes the environment configuration to fx graphs.
var Module = fx.Provide(Load)

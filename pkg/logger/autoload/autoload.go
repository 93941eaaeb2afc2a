// Package autoload initializes the global zerolog logger from the LOG_*
// environment on blank import.
package autoload

import (
	configx "github.com/alitalabs/alita/pkg/config"
	logx "github.com/alitalabs/alita/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}

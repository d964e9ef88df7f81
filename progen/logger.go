package progen

import (
	"log/slog"

	"github.com/gogpu/ubershader/gpucore"
)

func slogger() *slog.Logger { return gpucore.Logger() }

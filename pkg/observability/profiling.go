package observability

import (
	"runtime"

	"lingo-service/pkg/config"
	"lingo-service/pkg/logger"

	"github.com/grafana/pyroscope-go"
)

// StartProfiling starts continuous profiling when enabled; the returned stop func is never nil.
func StartProfiling(cfg config.ProfilingConfig) (func(), error) {
	if !cfg.Enabled || cfg.ServerAddress == "" {
		return func() {}, nil
	}

	runtime.SetMutexProfileFraction(5)
	runtime.SetBlockProfileRate(5)

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.AppName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          nil,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileBlockCount,
		},
	})
	if err != nil {
		return func() {}, err
	}
	logger.Infof("Profiling started app=%s server=%s", cfg.AppName, cfg.ServerAddress)
	return func() {
		if err := profiler.Stop(); err != nil {
			logger.Warnf("Profiler stop failed error=%v", err)
		}
	}, nil
}

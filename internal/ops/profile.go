package ops

import (
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// StartProfiler pushes continuous profiles of app to a pyroscope server at addr. An
// empty addr disables profiling and returns a no-op stop.
func StartProfiler(app, addr string, tags map[string]string) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: app,
		ServerAddress:   addr,
		Tags:            tags,
		Logger:          profileLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "start pyroscope, addr: %s", addr)
	}
	return func() {
		if err := profiler.Stop(); err != nil {
			logs.Errorf("stop pyroscope, err: %+v", err)
		}
	}, nil
}

type profileLogger struct{}

func (profileLogger) Infof(format string, args ...interface{})  { logs.Infof(format, args...) }
func (profileLogger) Debugf(_ string, _ ...interface{})         {}
func (profileLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }

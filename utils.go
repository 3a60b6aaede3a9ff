package main

import (
	"time"

	"go.uber.org/zap"
)

// loopSafely runs f forever and restarts it after a panic, so one bad
// poll iteration never takes the bridge down.
func loopSafely(log *zap.SugaredLogger, f func()) {
	defer func() {
		if v := recover(); v != nil {
			log.Errorf("Panic: %v, restarting", v)
			time.Sleep(time.Second)
			go loopSafely(log, f)
		}
	}()

	for {
		f()
	}
}

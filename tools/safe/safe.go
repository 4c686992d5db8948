package safe

import (
	"Parley/logger"
)

// Go starts a goroutine that recovers from panic,
// so a single bad handler doesn't crash the whole process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}

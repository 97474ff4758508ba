package web

import (
	"errors"
	"sync"
)

// xMutex is a try-lock: a second operator connecting while one holds the
// control socket gets an error instead of waiting.
type xMutex struct {
	lck   sync.Mutex
	inuse bool
}

func (xm *xMutex) Lock() error {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	if xm.inuse {
		return errors.New("control link already in use")
	}
	xm.inuse = true
	return nil
}

func (xm *xMutex) Unlock() {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	xm.inuse = false
}

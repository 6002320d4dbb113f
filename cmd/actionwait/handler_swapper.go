package main

import (
	"net/http"
	"sync/atomic"
)

// handlerSwapper serves whichever mux was built last. reload installs a new
// one when the events toggle flips; requests already in flight finish on the
// mux they started on.
type handlerSwapper struct {
	current    atomic.Pointer[http.Handler]
	generation atomic.Uint64
}

func newHandlerSwapper(h http.Handler) *handlerSwapper {
	s := &handlerSwapper{}
	s.current.Store(&h)
	return s
}

func (s *handlerSwapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*s.current.Load()).ServeHTTP(w, r)
}

// Swap installs h and returns how many times the mux has been replaced.
func (s *handlerSwapper) Swap(h http.Handler) uint64 {
	s.current.Store(&h)
	return s.generation.Add(1)
}

package handler

import (
	"testing"
	"time"
)

func TestHeartbeatLoopStopsWhenConnectionEnds(t *testing.T) {
	h := NewBoardWSHandler(nil, NewBoardHub(nil), nil)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		h.heartbeatLoop(done, 1, 2)
		close(stopped)
	}()

	close(done)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("heartbeat loop kept running after the connection ended")
	}
}

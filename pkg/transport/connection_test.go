package transport_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jumpman786/omcgill/pkg/transport"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// The underlying websocket conn can be nil as long as the pumps never start;
// these tests exercise only the Send/Close surface.
func newIdleConnection(wg *sync.WaitGroup) *transport.Connection {
	return transport.NewConnection(context.Background(), wg, nil, transport.ConnectionConfig{}, newTestLogger())
}

func TestSendAfterCloseDoesNotPanic(t *testing.T) {
	var wg sync.WaitGroup
	c := newIdleConnection(&wg)

	c.Close(nil)
	for i := 0; i < 512; i++ {
		c.Send([]byte("frame"))
	}
	wg.Wait()
}

func TestConcurrentSendAndClose(t *testing.T) {
	var connWg sync.WaitGroup
	c := newIdleConnection(&connWg)

	var testWg sync.WaitGroup
	for i := 0; i < 16; i++ {
		testWg.Add(1)
		go func() {
			defer testWg.Done()
			for j := 0; j < 200; j++ {
				c.Send([]byte("frame"))
			}
		}()
	}
	testWg.Add(1)
	go func() {
		defer testWg.Done()
		c.Close(nil)
	}()
	testWg.Wait()
	connWg.Wait()
}

func TestCloseIsIdempotent(t *testing.T) {
	var wg sync.WaitGroup
	closes := 0
	c := newIdleConnection(&wg)
	c.SetOnCloseHandler(func(_ uuid.UUID, _ error) {
		closes++
	})

	c.Close(nil)
	c.Close(nil)
	c.Close(nil)

	if closes != 1 {
		t.Errorf("expected exactly 1 close callback, got %d", closes)
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done channel not closed after Close")
	}
	wg.Wait()
}

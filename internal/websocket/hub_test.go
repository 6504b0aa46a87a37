package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// Two relay goroutines can target one connection when it is subscribed to a
// room channel on top of its user channel, so writes must be serialized.
func TestClientWrite_Concurrent(t *testing.T) {
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		c := &client{conn: conn}

		const writers = 8
		const perWriter = 25
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWriter; j++ {
					c.write([]byte(`{"type":"ping"}`))
				}
			}()
		}
		wg.Wait()
		c.write([]byte(`{"type":"done"}`))
		<-done
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	defer close(done)

	received := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed after %d messages: %v", received, err)
		}
		if string(data) == `{"type":"done"}` {
			break
		}
		received++
	}

	if received != 8*25 {
		t.Fatalf("expected %d messages, got %d", 8*25, received)
	}
}

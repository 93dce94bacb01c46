// Package main provides a load tool for live likes topics. Clients
// subscribe to one content item's likes topic while a driver toggles
// likes over HTTP, and the tool reports how many snapshots arrived.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"localpulse/internal/config"
	"localpulse/internal/middleware"
	"localpulse/internal/realtime"

	"github.com/gorilla/websocket"
)

type counters struct {
	dialed    atomic.Int64
	connected atomic.Int64
	toggles   atomic.Int64
	snapshots atomic.Int64
	lagNanos  atomic.Int64
	errors    atomic.Int64
	// unix nanos of the latest successful toggle
	lastToggle atomic.Int64
}

type loadTest struct {
	host      string
	contentID uint
	likers    int
	interval  time.Duration
	stats     counters
}

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	contentID := flag.Uint("content", 1, "Content whose likes topic is watched")
	clients := flag.Int("clients", 50, "Number of concurrent subscribers")
	likers := flag.Int("likers", 5, "Users 1..N toggle likes")
	interval := flag.Duration("interval", 500*time.Millisecond, "Delay between like toggles")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	middleware.InitMiddleware(cfg)

	lt := &loadTest{host: *host, contentID: *contentID, likers: max(*likers, 1), interval: *interval}
	log.Printf("🚀 %d subscribers on %s, %d likers, for %v",
		*clients, realtime.LikesTopic(lt.contentID), lt.likers, *duration)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < *clients; i++ {
		token, err := middleware.IssueToken(lt.likerID(i), time.Hour)
		if err != nil {
			log.Fatalf("❌ Token issuance failed: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			lt.subscribe(ctx, token)
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		lt.drive(ctx)
	}()

	<-ctx.Done()
	log.Println("⏱️  Stopping, waiting for clients to disconnect...")
	wg.Wait()
	lt.report()
}

func (lt *loadTest) likerID(n int) uint {
	return uint(n%lt.likers) + 1
}

// drive toggles likes round-robin across the liker accounts.
func (lt *loadTest) drive(ctx context.Context) {
	tokens := make([]string, lt.likers)
	for i := range tokens {
		token, err := middleware.IssueToken(lt.likerID(i), time.Hour)
		if err != nil {
			log.Printf("driver token: %v", err)
			return
		}
		tokens[i] = token
	}

	client := &http.Client{Timeout: 5 * time.Second}
	likeURL := fmt.Sprintf("http://%s/api/contents/%d/like", lt.host, lt.contentID)
	ticker := time.NewTicker(lt.interval)
	defer ticker.Stop()

	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := toggleLike(ctx, client, likeURL, tokens[n%len(tokens)]); err != nil {
			lt.stats.errors.Add(1)
			continue
		}
		lt.stats.lastToggle.Store(time.Now().UnixNano())
		lt.stats.toggles.Add(1)
	}
}

func toggleLike(ctx context.Context, client *http.Client, likeURL, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, likeURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("like toggle: status %d", resp.StatusCode)
	}
	return nil
}

// subscribe holds one WebSocket on the likes topic until ctx ends.
func (lt *loadTest) subscribe(ctx context.Context, token string) {
	lt.stats.dialed.Add(1)
	u := url.URL{Scheme: "ws", Host: lt.host, Path: "/api/ws", RawQuery: "token=" + url.QueryEscape(token)}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		lt.stats.errors.Add(1)
		return
	}
	defer func() { _ = conn.Close() }()
	lt.stats.connected.Add(1)

	if err := conn.WriteJSON(map[string]string{"action": "subscribe", "topic": realtime.LikesTopic(lt.contentID)}); err != nil {
		lt.stats.errors.Add(1)
		return
	}
	go lt.consume(conn)

	ping, _ := json.Marshal(map[string]string{"action": "ping"})
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				lt.stats.errors.Add(1)
				return
			}
		}
	}
}

func (lt *loadTest) consume(conn *websocket.Conn) {
	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		switch ev.Type {
		case realtime.EventLikesSnapshot:
			lt.stats.snapshots.Add(1)
			if at := lt.stats.lastToggle.Load(); at > 0 {
				lt.stats.lagNanos.Add(time.Now().UnixNano() - at)
			}
		case realtime.EventError, realtime.EventDropped:
			lt.stats.errors.Add(1)
		}
	}
}

func (lt *loadTest) report() {
	s := &lt.stats
	var lag time.Duration
	if n := s.snapshots.Load(); n > 0 {
		lag = time.Duration(s.lagNanos.Load() / n)
	}
	log.Println("📊 Results")
	log.Printf("  connections: %d/%d", s.connected.Load(), s.dialed.Load())
	log.Printf("  like toggles: %d", s.toggles.Load())
	log.Printf("  snapshots received: %d (avg lag %v)", s.snapshots.Load(), lag)
	log.Printf("  errors: %d", s.errors.Load())
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/magd/internal/config"
	"github.com/relabs-tech/magd/internal/imu"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// frameHub keeps the latest frame and fans new ones out to websocket
// clients.
type frameHub struct {
	mu        sync.RWMutex
	last      imu.Frame
	haveFrame bool
	clients   map[*websocket.Conn]struct{}
}

func newFrameHub() *frameHub {
	return &frameHub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *frameHub) publish(f imu.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = f
	h.haveFrame = true
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteJSON(f); err != nil {
			log.Printf("web: websocket write error: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *frameHub) latest() (imu.Frame, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.haveFrame
}

// handleFrame serves the latest frame as JSON.
func (h *frameHub) handleFrame(w http.ResponseWriter, r *http.Request) {
	f, ok := h.latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(f); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// handleWS streams every new frame to the client until it disconnects.
func (h *frameHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	if h.haveFrame {
		conn.WriteJSON(h.last)
	}
	h.mu.Unlock()

	// reads only detect the close; clients never send anything useful
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket error: %v", err)
			}
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *frameHub) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/frame", h.handleFrame)
	mux.HandleFunc("/ws/frames", h.handleWS)
	return mux
}

// RunWeb subscribes to the frame topic and serves the latest frame over
// HTTP and a websocket stream.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("web: MQTT_BROKER is not set")
	}
	hub := newFrameHub()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicFrame, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f imu.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		hub.publish(f)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicFrame)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: hub.routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

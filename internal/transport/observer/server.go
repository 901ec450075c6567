// Package observer streams kitchen station status to local dashboards.
package observer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"kitchencraft.ai/internal/kitchen"
)

const Version = "1.0"

type Kitchen interface {
	ID() string
	TickRateHz() int
	CurrentTick() uint64
	Stations(ctx context.Context) ([]kitchen.StationInfo, error)
}

type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	KitchenID       string `json:"kitchen_id"`
	Tick            uint64 `json:"tick"`
	TickRateHz      int    `json:"tick_rate_hz"`
	CatalogDigest   string `json:"catalog_digest,omitempty"`
}

type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IntervalMS      int    `json:"interval_ms"`
}

type StationsMsg struct {
	Type            string                `json:"type"`
	ProtocolVersion string                `json:"protocol_version"`
	KitchenID       string                `json:"kitchen_id"`
	Tick            uint64                `json:"tick"`
	Stations        []kitchen.StationInfo `json:"stations"`
}

type Server struct {
	kitchen       Kitchen
	catalogDigest string
	log           *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(k Kitchen, catalogDigest string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		kitchen:       k,
		catalogDigest: catalogDigest,
		log:           logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := BootstrapResponse{
			ProtocolVersion: Version,
			KitchenID:       s.kitchen.ID(),
			Tick:            s.kitchen.CurrentTick(),
			TickRateHz:      s.kitchen.TickRateHz(),
			CatalogDigest:   s.catalogDigest,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		interval := normalizeInterval(sub.IntervalMS)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Subscription updates only change the interval.
		intervals := make(chan time.Duration, 1)
		go func() {
			defer cancel()
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var sub SubscribeMsg
				if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" {
					continue
				}
				select {
				case intervals <- normalizeInterval(sub.IntervalMS):
				default:
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		if err := s.push(ctx, conn); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
				return
			case d := <-intervals:
				ticker.Reset(d)
			case <-ticker.C:
				if err := s.push(ctx, conn); err != nil {
					return
				}
			}
		}
	}
}

func (s *Server) push(ctx context.Context, conn *websocket.Conn) error {
	qctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	stations, err := s.kitchen.Stations(qctx)
	if err != nil {
		s.log.Printf("observer: stations: %v", err)
		return err
	}
	b, err := json.Marshal(StationsMsg{
		Type:            "STATIONS",
		ProtocolVersion: Version,
		KitchenID:       s.kitchen.ID(),
		Tick:            s.kitchen.CurrentTick(),
		Stations:        stations,
	})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func normalizeInterval(ms int) time.Duration {
	if ms <= 0 {
		ms = 1000
	}
	if ms < 100 {
		ms = 100
	}
	if ms > 60000 {
		ms = 60000
	}
	return time.Duration(ms) * time.Millisecond
}

// IsLoopbackRemote reports whether a request came from this host.
func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

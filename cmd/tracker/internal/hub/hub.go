package hub

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/protocol"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/tracker"
	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	Close()
}

// Registry is the tracker state the remote operator works on.
type Registry interface {
	Track(raw string) (models.Symbol, error)
	Untrack(raw string) (models.Symbol, error)
	SetAlert(raw string, price float64) (models.Symbol, error)
	Alert(raw string) (float64, bool)
	List() iter.Seq[models.Symbol]
	Latest(raw string) (float64, bool, error)
	Snapshot(raw string) ([]float64, error)
}

// Hub routes operator commands from websocket clients to the tracker
// and pushes alert events to every connected client.
type Hub struct {
	clients map[ClientInterface]bool

	registry Registry
	logger   *zap.Logger
	mu       sync.RWMutex
	closed   bool
}

func NewHub(registry Registry, logger *zap.Logger) *Hub {
	return &Hub{
		clients:  make(map[ClientInterface]bool),
		registry: registry,
		logger:   logger,
	}
}

func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		client.Close()
		return
	}
	h.clients[client] = true
	h.logger.Debug("Operator connected", zap.String("client", client.ID()))
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		client.Close()
		h.logger.Debug("Operator disconnected", zap.String("client", client.ID()))
	}
}

// Clients returns the number of connected operators.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest) {
	switch req.Action {
	case protocol.ActionTrack:
		h.handleTrack(client, req)
	case protocol.ActionUntrack:
		h.handleUntrack(client, req)
	case protocol.ActionList:
		h.handleList(client, req)
	case protocol.ActionSetAlert:
		h.handleSetAlert(client, req)
	case protocol.ActionHistory:
		h.handleHistory(client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleTrack(client ClientInterface, req protocol.WSRequest) {
	var added, already []string
	for _, raw := range req.Payload.Symbols {
		sym, err := h.registry.Track(raw)
		switch {
		case err == nil:
			added = append(added, sym.String())
		case errors.Is(err, tracker.ErrAlreadyTracked):
			already = append(already, sym.String())
		}
	}

	if len(added) == 0 {
		if len(already) > 0 {
			h.sendError(client, req.ID, fmt.Sprintf("Already tracked: %v", already))
			return
		}
		h.sendError(client, req.ID, "No valid symbols provided")
		return
	}
	h.sendAck(client, req.ID, fmt.Sprintf("Tracking %v", added), nil)
}

func (h *Hub) handleUntrack(client ClientInterface, req protocol.WSRequest) {
	var removed []string
	for _, raw := range req.Payload.Symbols {
		if sym, err := h.registry.Untrack(raw); err == nil {
			removed = append(removed, sym.String())
		}
	}

	if len(removed) > 0 {
		h.sendAck(client, req.ID, fmt.Sprintf("Untracked %v", removed), nil)
	} else {
		h.sendError(client, req.ID, fmt.Sprintf("Not tracked: %v", req.Payload.Symbols))
	}
}

func (h *Hub) handleList(client ClientInterface, req protocol.WSRequest) {
	rows := []protocol.SymbolView{}
	for sym := range h.registry.List() {
		row := protocol.SymbolView{Symbol: sym.String()}
		price, ok, err := h.registry.Latest(sym.String())
		if err != nil {
			continue
		}
		if ok {
			row.Latest = &price
		}
		if target, ok := h.registry.Alert(sym.String()); ok {
			row.Alert = &target
		}
		rows = append(rows, row)
	}
	h.sendAck(client, req.ID, fmt.Sprintf("%d symbols tracked", len(rows)), rows)
}

func (h *Hub) handleSetAlert(client ClientInterface, req protocol.WSRequest) {
	if len(req.Payload.Symbols) != 1 || req.Payload.Price == nil {
		h.sendError(client, req.ID, "set_alert needs exactly one symbol and a price")
		return
	}

	sym, err := h.registry.SetAlert(req.Payload.Symbols[0], *req.Payload.Price)
	if err != nil {
		h.sendError(client, req.ID, err.Error())
		return
	}
	h.sendAck(client, req.ID, fmt.Sprintf("Alert set for %s at $%.2f", sym, *req.Payload.Price), nil)
}

func (h *Hub) handleHistory(client ClientInterface, req protocol.WSRequest) {
	if len(req.Payload.Symbols) != 1 {
		h.sendError(client, req.ID, "history needs exactly one symbol")
		return
	}

	sym := models.NormalizeSymbol(req.Payload.Symbols[0])
	prices, err := h.registry.Snapshot(sym.String())
	if err != nil {
		h.sendError(client, req.ID, err.Error())
		return
	}
	h.sendAck(client, req.ID, "", protocol.HistoryView{Symbol: sym.String(), Prices: prices})
}

// Notify pushes an alert event to every connected client.
func (h *Hub) Notify(_ context.Context, ev models.AlertEvent) error {
	h.broadcast(protocol.WSResponse{Type: protocol.TypeAlert, Data: ev})
	return nil
}

// Updated pushes a recorded price to every connected client.
func (h *Hub) Updated(q models.Quote, at time.Time) {
	h.broadcast(protocol.WSResponse{
		Type: protocol.TypeUpdate,
		Data: protocol.UpdateView{Symbol: q.Symbol.String(), Price: q.Price, At: at},
	})
}

// FetchFailed tells every connected client that a poll cycle got no data.
func (h *Hub) FetchFailed(err error) {
	h.broadcast(protocol.WSResponse{Type: protocol.TypeError, Status: "error", Message: err.Error()})
}

func (h *Hub) broadcast(msg protocol.WSResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.SendJSON(msg)
	}
}

// CloseAll disconnects every client and refuses later registrations. Used at
// shutdown, since hijacked connections outlive the HTTP server.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[ClientInterface]bool)
	h.mu.Unlock()

	for client := range clients {
		client.Close()
	}
	if len(clients) > 0 {
		h.logger.Info("Operators disconnected", zap.Int("count", len(clients)))
	}
}

func (h *Hub) sendAck(c ClientInterface, id, msg string, data interface{}) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: "success", Message: msg, Data: data})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Status: "error", Message: msg})
}

package protocol

import "time"

const (
	ActionTrack    = "track"
	ActionUntrack  = "untrack"
	ActionList     = "list"
	ActionSetAlert = "set_alert"
	ActionHistory  = "history"
)

const (
	TypeAck   = "ack"
	TypeError = "error"
	TypeAlert  = "alert"
	TypeUpdate = "update"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	Symbols []string `json:"symbols"`
	Price   *float64 `json:"price,omitempty"`
}

type WSResponse struct {
	Type    string      `json:"type"`             // "ack", "error", "alert"
	ID      string      `json:"id,omitempty"`     // Matches request ID
	Status  string      `json:"status,omitempty"` // "success", "error"
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SymbolView is one row of a list response.
type SymbolView struct {
	Symbol string   `json:"symbol"`
	Latest *float64 `json:"latest,omitempty"`
	Alert  *float64 `json:"alert,omitempty"`
}

// UpdateView is pushed for every price recorded by a poll cycle.
type UpdateView struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
}

type HistoryView struct {
	Symbol string    `json:"symbol"`
	Prices []float64 `json:"prices"`
}

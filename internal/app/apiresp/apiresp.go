package apiresp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
}

// Envelope is the wire shape shared by every JSON endpoint:
// {success, id?, message?, data?, total?, error?}.
type Envelope struct {
	Success bool        `json:"success"`
	ID      *int64      `json:"id,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Total   *int        `json:"total,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

func WriteCreated(w http.ResponseWriter, r *http.Request, id int64, msg string) {
	Write(w, r, http.StatusCreated, Envelope{Success: true, ID: &id, Message: msg})
}

func WriteMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	Write(w, r, status, Envelope{Success: true, Message: msg})
}

func WriteData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	Write(w, r, status, Envelope{Success: true, Data: data})
}

func WriteList(w http.ResponseWriter, r *http.Request, data interface{}, total int) {
	Write(w, r, http.StatusOK, Envelope{Success: true, Data: data, Total: &total})
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	Write(w, r, status, Envelope{Success: false, Error: msg})
}

func Write(w http.ResponseWriter, r *http.Request, status int, res Envelope) {
	res.Meta = Meta{RequestID: middleware.GetReqID(r.Context())}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

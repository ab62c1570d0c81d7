package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	logs "github.com/danmuck/smplog"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pdf-gateway/backend/internal/models"
)

// WebSocket message types for the conversion protocol
const (
	// Client -> Server messages
	MsgTypeConvert = "convert"
	MsgTypeIndex   = "index"
	MsgTypePing    = "ping"

	// Server -> Client messages
	MsgTypeConnected  = "connected"
	MsgTypeAck        = "ack"
	MsgTypeProcessing = "processing"
	MsgTypeComplete   = "complete"
	MsgTypeError      = "error"
	MsgTypePong       = "pong"
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSFile is one whole file carried in a convert message
type WSFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Data        string `json:"data"` // Base64 encoded file
}

// ConvertPayload is the payload of a convert message
type ConvertPayload struct {
	Files []WSFile `json:"files"`
}

// WebSocket progress response
type WSProgressResponse struct {
	Type    string `json:"type"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// WebSocket completion response
type WSCompleteResponse struct {
	Type   string      `json:"type"`
	Result interface{} `json:"result"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Status  int         `json:"status,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// WebSocketHandler runs the conversion and indexing pipelines over a WebSocket.
// Each message carries whole files; requests on one connection are handled in order.
type WebSocketHandler struct {
	gateway       Gateway
	upgrader      websocket.Upgrader
	readLimit     int64
	forwardStatus bool
}

// NewWebSocketHandler creates a new WebSocket handler. readLimit <= 0 leaves
// gorilla's default of no limit.
func NewWebSocketHandler(gateway Gateway, readLimit int64, forwardStatus bool) *WebSocketHandler {
	return &WebSocketHandler{
		gateway: gateway,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		readLimit:     readLimit,
		forwardStatus: forwardStatus,
	}
}

// HandleWebSocket upgrades the HTTP connection and serves the message loop
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	if wsh.readLimit > 0 {
		ws.SetReadLimit(wsh.readLimit)
	}

	logs.Infof("[WebSocket] client connected from %s", c.RealIP())

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeConnected,
		Timestamp: time.Now().UnixMilli(),
	})

	ctx := context.WithoutCancel(c.Request().Context())

	for {
		var msg WSMessage
		err := ws.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logs.Warnf("[WebSocket] connection error: %v", err)
			}
			break
		}

		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}

		switch msg.Type {
		case MsgTypePing:
			wsh.sendMessage(ws, WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()})
		case MsgTypeConvert:
			wsh.handleConvert(ctx, ws, msg)
		case MsgTypeIndex:
			wsh.handleIndex(ctx, ws, msg)
		default:
			wsh.sendError(ws, msg.ID, &APIError{
				Status:  http.StatusBadRequest,
				Code:    "INVALID_TYPE",
				Message: "Unknown message type: " + msg.Type,
			})
		}
	}

	logs.Infof("[WebSocket] client disconnected")
	return nil
}

// handleConvert decodes the files of a convert message and runs the pipeline
func (wsh *WebSocketHandler) handleConvert(ctx context.Context, ws *websocket.Conn, msg WSMessage) {
	var payload ConvertPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, msg.ID, NewBadRequestError("Invalid convert payload", err))
		return
	}

	payloads := make([]models.FilePayload, 0, len(payload.Files))
	for _, f := range payload.Files {
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			wsh.sendError(ws, msg.ID, NewBadRequestError(fmt.Sprintf("Invalid base64 data for %s", f.Name), err))
			return
		}
		payloads = append(payloads, models.FilePayload{
			Name:        f.Name,
			ContentType: f.ContentType,
			Data:        data,
		})
	}

	wsh.sendMessage(ws, WSMessage{Type: MsgTypeAck, ID: msg.ID, Timestamp: time.Now().UnixMilli()})
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeProcessing,
		ID:        msg.ID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSProgressResponse{
			Type:    MsgTypeProcessing,
			Stage:   "converting",
			Message: fmt.Sprintf("Converting %d file(s), %s", len(payloads), humanize.IBytes(uint64(models.TotalSize(payloads)))),
		}),
	})

	envelope, err := wsh.gateway.Convert(ctx, payloads)
	if err != nil {
		wsh.sendError(ws, msg.ID, convertError(err))
		return
	}

	wsh.sendComplete(ws, msg.ID, envelope)
	logs.Infof("[WebSocket] convert %s complete: %d chunk(s)", msg.ID, envelope.TotalChunks)
}

// handleIndex forwards an index message to the backend
func (wsh *WebSocketHandler) handleIndex(ctx context.Context, ws *websocket.Conn, msg WSMessage) {
	var req models.IndexRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		wsh.sendError(ws, msg.ID, NewBadRequestError("Invalid index payload", err))
		return
	}

	wsh.sendMessage(ws, WSMessage{Type: MsgTypeAck, ID: msg.ID, Timestamp: time.Now().UnixMilli()})

	resp, err := wsh.gateway.AddToIndex(ctx, req)
	if err != nil {
		wsh.sendError(ws, msg.ID, indexError(err, wsh.forwardStatus))
		return
	}

	wsh.sendComplete(ws, msg.ID, resp)
	logs.Infof("[WebSocket] index %s complete for %s", msg.ID, req.FileName)
}

// Helper methods

func (wsh *WebSocketHandler) sendMessage(ws *websocket.Conn, msg WSMessage) {
	if err := ws.WriteJSON(msg); err != nil {
		logs.Warnf("[WebSocket] failed to send message: %v", err)
	}
}

func (wsh *WebSocketHandler) sendComplete(ws *websocket.Conn, id string, result interface{}) {
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeComplete,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSCompleteResponse{
			Type:   MsgTypeComplete,
			Result: result,
		}),
	})
}

func (wsh *WebSocketHandler) sendError(ws *websocket.Conn, id string, apiErr *APIError) {
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeError,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: apiErr.Message,
			Code:    apiErr.Code,
			Status:  apiErr.Status,
			Details: apiErr.Details,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		logs.Errorf(err, "[WebSocket] failed to encode payload")
		return []byte("{}")
	}
	return data
}

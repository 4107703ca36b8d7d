package websocket

import (
	"encoding/base64"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait bounds the silence between two client messages. Clients
	// streaming frames or sending pings stay well inside it.
	readWait = 2 * time.Minute

	// envelopeSlack covers the data URL header and the JSON around a frame.
	envelopeSlack = 1024
	// defaultMessageLimit applies when frames are not size-limited.
	defaultMessageLimit = 4 << 20
)

// MessageLimit is the largest client message accepted on a stream whose
// decoded frames may be up to maxFrameBytes long.
func MessageLimit(maxFrameBytes int64) int64 {
	if maxFrameBytes <= 0 {
		return defaultMessageLimit
	}
	return int64(base64.StdEncoding.EncodedLen(int(maxFrameBytes))) + envelopeSlack
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// NewError builds a typed ErrorResponse.
func NewError(code, errMsg string) ErrorResponse {
	return ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	}
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}

// WriteClose sends a normal close frame with reason.
func WriteClose(conn *websocket.Conn, reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

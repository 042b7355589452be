// Package wire implements the driver connection over the store's persistent
// TCP protocol.
//
// Frames are a 4-byte big-endian length prefix followed by a JSON envelope.
// Requests and responses are matched by a per-request identifier; the
// connection allows one request in flight at a time. Unlike the stateless
// REST transport, wire connections support transaction sessions.
package wire

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/driver"
	"github.com/jacentio/lattice/internal/extjson"
)

// maxFrameSize bounds a single frame. Frames beyond this are treated as a
// protocol violation and fail the connection.
const maxFrameSize = 48 << 20

// Conn is a persistent driver.Conn over TCP. It is safe for concurrent use;
// requests are serialized over the single connection.
type Conn struct {
	mu   sync.Mutex
	sock net.Conn
}

// envelope is the wire frame payload, shared by requests and responses.
type envelope struct {
	ID     string `json:"id"`
	Action string `json:"action,omitempty"`

	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`

	Filter      json.RawMessage `json:"filter,omitempty"`
	Update      json.RawMessage `json:"update,omitempty"`
	Replacement json.RawMessage `json:"replacement,omitempty"`
	Documents   json.RawMessage `json:"documents,omitempty"`
	Pipeline    json.RawMessage `json:"pipeline,omitempty"`
	Projection  json.RawMessage `json:"projection,omitempty"`
	Sort        json.RawMessage `json:"sort,omitempty"`

	Skip   int64 `json:"skip,omitempty"`
	Limit  int64 `json:"limit,omitempty"`
	Upsert bool  `json:"upsert,omitempty"`

	SessionID string `json:"sessionId,omitempty"`

	// Response fields.
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode int             `json:"errorCode,omitempty"`
}

// Dial connects to a store at addr ("host:port").
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	sock, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := sock.(*net.TCPConn); ok {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(30 * time.Second)
	}
	return &Conn{sock: sock}, nil
}

// Exec implements driver.Conn.
func (c *Conn) Exec(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	env := &envelope{
		ID:         uuid.NewString(),
		Action:     req.Action,
		Database:   req.Database,
		Collection: req.Collection,
		Skip:       req.Skip,
		Limit:      req.Limit,
		Upsert:     req.Upsert,
		SessionID:  req.SessionID,
	}
	var err error
	if env.Filter, err = rawField(req.Filter); err != nil {
		return nil, err
	}
	if env.Update, err = rawField(req.Update); err != nil {
		return nil, err
	}
	if env.Replacement, err = rawField(req.Replacement); err != nil {
		return nil, err
	}
	if env.Documents, err = rawField(req.Documents); err != nil {
		return nil, err
	}
	if env.Pipeline, err = rawField(req.Pipeline); err != nil {
		return nil, err
	}
	if env.Projection, err = rawField(req.Projection); err != nil {
		return nil, err
	}
	if env.Sort, err = rawField(req.Sort); err != nil {
		return nil, err
	}

	resp, err := c.roundTrip(ctx, env)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &driver.Error{Code: resp.ErrorCode, Message: resp.Error}
	}
	if resp.Result == nil {
		return &driver.Response{}, nil
	}
	raw, err := extjson.Unmarshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("wire: decode result: %w", err)
	}
	doc, ok := raw.(driver.Document)
	if !ok {
		return nil, fmt.Errorf("wire: unexpected result shape %T", raw)
	}
	return driver.DecodeResponse(doc), nil
}

// roundTrip sends env and waits for the frame answering it. The connection
// carries one request at a time; concurrent callers queue on the mutex.
func (c *Conn) roundTrip(ctx context.Context, env *envelope) (*envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.sock.SetDeadline(deadline)
		defer c.sock.SetDeadline(time.Time{})
	}

	if err := writeFrame(c.sock, env); err != nil {
		return nil, err
	}
	for {
		resp, err := readFrame(c.sock)
		if err != nil {
			return nil, err
		}
		// A frame for a request this side no longer waits on (an earlier
		// deadline fired mid-read) is dropped.
		if resp.ID == env.ID {
			return resp, nil
		}
	}
}

// Close implements driver.Conn by closing the socket. In-flight reads fail
// with net.ErrClosed.
func (c *Conn) Close(ctx context.Context) error {
	return c.sock.Close()
}

// StartSession implements driver.SessionConn.
func (c *Conn) StartSession(ctx context.Context) (driver.Session, error) {
	resp, err := c.control(ctx, "startSession", "")
	if err != nil {
		return nil, err
	}
	raw, err := extjson.Unmarshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("wire: decode session: %w", err)
	}
	doc, _ := raw.(driver.Document)
	id, _ := doc["sessionId"].(string)
	if id == "" {
		return nil, fmt.Errorf("wire: store returned no session id")
	}
	return &session{conn: c, id: id}, nil
}

// control runs a session management action and surfaces store errors.
func (c *Conn) control(ctx context.Context, action, sessionID string) (*envelope, error) {
	resp, err := c.roundTrip(ctx, &envelope{
		ID:        uuid.NewString(),
		Action:    action,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &driver.Error{Code: resp.ErrorCode, Message: resp.Error}
	}
	return resp, nil
}

type session struct {
	conn *Conn
	id   string
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Commit(ctx context.Context) error {
	_, err := s.conn.control(ctx, "commitTransaction", s.id)
	return err
}

func (s *session) Abort(ctx context.Context) error {
	_, err := s.conn.control(ctx, "abortTransaction", s.id)
	return err
}

func (s *session) End(ctx context.Context) error {
	_, err := s.conn.control(ctx, "endSession", s.id)
	return err
}

// rawField encodes a request field with identifier and time wrappers intact.
// Nil fields stay absent from the envelope.
func rawField(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case driver.Document:
		if t == nil {
			return nil, nil
		}
	case []driver.Document:
		if t == nil {
			return nil, nil
		}
	}
	data, err := extjson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode request: %w", err)
	}
	return json.RawMessage(data), nil
}

func writeFrame(w io.Writer, env *envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("wire: encode frame: %w", err)
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds limit", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readFrame(r io.Reader) (*envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	env := &envelope{}
	if err := json.Unmarshal(payload, env); err != nil {
		return nil, fmt.Errorf("wire: decode frame: %w", err)
	}
	return env, nil
}

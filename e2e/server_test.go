//go:build e2e

package e2e

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/driver"
	"github.com/jacentio/lattice/internal/extjson"
	"github.com/jacentio/lattice/oid"
)

// memoryServer is an in-process document store speaking the wire protocol.
// It backs the integration tests: real framing, real sessions, no external
// process.
type memoryServer struct {
	listener net.Listener

	mu          sync.Mutex
	collections map[string][]driver.Document
	sessions    map[string]map[string][]driver.Document
	conns       []net.Conn
}

type serverEnvelope struct {
	ID     string `json:"id"`
	Action string `json:"action,omitempty"`

	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`

	Filter      json.RawMessage `json:"filter,omitempty"`
	Update      json.RawMessage `json:"update,omitempty"`
	Replacement json.RawMessage `json:"replacement,omitempty"`
	Documents   json.RawMessage `json:"documents,omitempty"`

	Skip   int64 `json:"skip,omitempty"`
	Limit  int64 `json:"limit,omitempty"`
	Upsert bool  `json:"upsert,omitempty"`

	SessionID string `json:"sessionId,omitempty"`

	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode int             `json:"errorCode,omitempty"`
}

func startMemoryServer() (*memoryServer, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &memoryServer{
		listener:    l,
		collections: make(map[string][]driver.Document),
		sessions:    make(map[string]map[string][]driver.Document),
	}
	go s.serve()
	return s, nil
}

func (s *memoryServer) addr() string {
	return s.listener.Addr().String()
}

// stop closes the listener and every established connection. The data
// survives, so a restarted server on the same collections looks like a
// recovered store.
func (s *memoryServer) stop() {
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

// restart opens a fresh listener over the same data.
func (s *memoryServer) restart() error {
	l, err := net.Listen("tcp", s.addr())
	if err != nil {
		return err
	}
	s.listener = l
	go s.serve()
	return nil
}

func (s *memoryServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.serveConn(conn)
	}
}

func (s *memoryServer) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		var header [4]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		payload := make([]byte, binary.BigEndian.Uint32(header[:]))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		req := &serverEnvelope{}
		if err := json.Unmarshal(payload, req); err != nil {
			return
		}

		resp := s.dispatch(req)
		resp.ID = req.ID
		out, err := json.Marshal(resp)
		if err != nil {
			return
		}
		binary.BigEndian.PutUint32(header[:], uint32(len(out)))
		if _, err := conn.Write(header[:]); err != nil {
			return
		}
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func (s *memoryServer) dispatch(req *serverEnvelope) *serverEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Action {
	case "startSession":
		id := uuid.NewString()
		s.sessions[id] = cloneCollections(s.collections)
		return resultEnvelope(driver.Document{"sessionId": id})
	case "commitTransaction":
		if staged, ok := s.sessions[req.SessionID]; ok {
			s.collections = staged
		}
		return resultEnvelope(driver.Document{})
	case "abortTransaction":
		delete(s.sessions, req.SessionID)
		return resultEnvelope(driver.Document{})
	case "endSession":
		delete(s.sessions, req.SessionID)
		return resultEnvelope(driver.Document{})
	}

	data := s.collections
	if req.SessionID != "" {
		staged, ok := s.sessions[req.SessionID]
		if !ok {
			return errorEnvelope(228, "session expired")
		}
		data = staged
	}

	resp, code, msg := s.execute(req, data)
	if msg != "" {
		return errorEnvelope(code, msg)
	}
	return resultEnvelope(driver.EncodeResponse(resp))
}

func (s *memoryServer) execute(req *serverEnvelope, data map[string][]driver.Document) (*driver.Response, int, string) {
	filter := decodeField(req.Filter)
	docs := data[req.Collection]

	switch req.Action {
	case "findOne":
		for _, d := range docs {
			if matches(d, filter) {
				return &driver.Response{Document: d}, 0, ""
			}
		}
		return &driver.Response{}, 0, ""

	case "find":
		var out []driver.Document
		skipped := int64(0)
		for _, d := range docs {
			if !matches(d, filter) {
				continue
			}
			if skipped < req.Skip {
				skipped++
				continue
			}
			out = append(out, d)
			if req.Limit > 0 && int64(len(out)) >= req.Limit {
				break
			}
		}
		return &driver.Response{Documents: out}, 0, ""

	case "count":
		n := int64(0)
		for _, d := range docs {
			if matches(d, filter) {
				n++
			}
		}
		return &driver.Response{Count: n}, 0, ""

	case "insertOne", "insertMany":
		var payload []driver.Document
		if raw := decodeSlice(req.Documents); raw != nil {
			payload = raw
		}
		var ids []any
		for _, d := range payload {
			if email, ok := d["email"]; ok {
				for _, existing := range docs {
					if existing["email"] == email {
						return nil, 11000, "duplicate key on email"
					}
				}
			}
			stored := cloneDoc(d)
			if _, ok := stored["_id"]; !ok {
				stored["_id"] = oid.NewID()
			}
			docs = append(docs, stored)
			ids = append(ids, stored["_id"])
		}
		data[req.Collection] = docs
		return &driver.Response{InsertedIDs: ids}, 0, ""

	case "updateOne", "updateMany":
		update, _ := decodeField(req.Update).(driver.Document)
		matched, modified := int64(0), int64(0)
		for i, d := range docs {
			if !matches(d, filter) {
				continue
			}
			matched++
			docs[i] = applyUpdate(d, update)
			modified++
			if req.Action == "updateOne" {
				break
			}
		}
		if matched == 0 && req.Upsert {
			filterDoc, _ := filter.(driver.Document)
			stored := cloneDoc(filterDoc)
			if set, ok := update["$set"].(driver.Document); ok {
				for k, v := range set {
					stored[k] = v
				}
			}
			if soi, ok := update["$setOnInsert"].(driver.Document); ok {
				for k, v := range soi {
					stored[k] = v
				}
			}
			if _, ok := stored["_id"]; !ok {
				stored["_id"] = oid.NewID()
			}
			data[req.Collection] = append(docs, stored)
			return &driver.Response{MatchedCount: 0, ModifiedCount: 0}, 0, ""
		}
		return &driver.Response{MatchedCount: matched, ModifiedCount: modified}, 0, ""

	case "replaceOne":
		replacement, _ := decodeField(req.Replacement).(driver.Document)
		for i, d := range docs {
			if matches(d, filter) {
				stored := cloneDoc(replacement)
				stored["_id"] = d["_id"]
				docs[i] = stored
				return &driver.Response{MatchedCount: 1, ModifiedCount: 1}, 0, ""
			}
		}
		return &driver.Response{}, 0, ""

	case "deleteOne", "deleteMany":
		var kept []driver.Document
		deleted := int64(0)
		for _, d := range docs {
			if matches(d, filter) && (req.Action == "deleteMany" || deleted == 0) {
				deleted++
				continue
			}
			kept = append(kept, d)
		}
		data[req.Collection] = kept
		return &driver.Response{DeletedCount: deleted}, 0, ""
	}

	return nil, 59, "command not found: " + req.Action
}

func decodeField(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	v, err := extjson.Unmarshal(raw)
	if err != nil {
		return nil
	}
	return v
}

func decodeSlice(raw json.RawMessage) []driver.Document {
	list, _ := decodeField(raw).([]any)
	out := make([]driver.Document, 0, len(list))
	for _, e := range list {
		if d, ok := e.(driver.Document); ok {
			out = append(out, d)
		}
	}
	return out
}

// matches checks top-level equality of every filter field.
func matches(doc, filter any) bool {
	f, ok := filter.(driver.Document)
	if !ok || len(f) == 0 {
		return true
	}
	d, ok := doc.(driver.Document)
	if !ok {
		return false
	}
	for k, want := range f {
		if d[k] != want {
			return false
		}
	}
	return true
}

func applyUpdate(doc, update driver.Document) driver.Document {
	out := cloneDoc(doc)
	if set, ok := update["$set"].(driver.Document); ok {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

func cloneDoc(d driver.Document) driver.Document {
	out := make(driver.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func cloneCollections(src map[string][]driver.Document) map[string][]driver.Document {
	out := make(map[string][]driver.Document, len(src))
	for name, docs := range src {
		copied := make([]driver.Document, len(docs))
		for i, d := range docs {
			copied[i] = cloneDoc(d)
		}
		out[name] = copied
	}
	return out
}

func resultEnvelope(result driver.Document) *serverEnvelope {
	data, err := extjson.Marshal(result)
	if err != nil {
		return errorEnvelope(8, "encode result: "+err.Error())
	}
	return &serverEnvelope{Result: data}
}

func errorEnvelope(code int, msg string) *serverEnvelope {
	return &serverEnvelope{Error: msg, ErrorCode: code}
}

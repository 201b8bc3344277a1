package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RPCError is a JSON-RPC error object returned by an RPCServer handler.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RPCHandler handles a single JSON-RPC method. It returns either a result or
// an error.
type RPCHandler func(params []json.RawMessage) (interface{}, *RPCError)

// RPCServer is a local JSON-RPC 2.0 server that can be used for testing with
// no external dependencies.
type RPCServer struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	handlers   map[string]RPCHandler
	calls      map[string]int
	statusCode int
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewRPCServer starts an RPCServer that is closed when the test completes.
func NewRPCServer(t *testing.T) *RPCServer {
	s := &RPCServer{
		t:        t,
		handlers: make(map[string]RPCHandler),
		calls:    make(map[string]int),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.server.Close)
	return s
}

// URL returns the endpoint of the server.
func (s *RPCServer) URL() string {
	return s.server.URL
}

// Handle registers handler for method, replacing any existing handler.
func (s *RPCServer) Handle(method string, handler RPCHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// HandleResult registers a handler that always returns result.
func (s *RPCServer) HandleResult(method string, result interface{}) {
	s.Handle(method, func(_ []json.RawMessage) (interface{}, *RPCError) {
		return result, nil
	})
}

// SetStatusCode makes the server fail every request with the given HTTP
// status code. A zero code restores normal operation.
func (s *RPCServer) SetStatusCode(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCode = code
}

// Calls returns the number of requests received for method.
func (s *RPCServer) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *RPCServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	handler, ok := s.handlers[req.Method]
	statusCode := s.statusCode
	s.mu.Unlock()

	if statusCode != 0 {
		http.Error(w, http.StatusText(statusCode), statusCode)
		return
	}

	resp := rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	if !ok {
		resp.Error = &RPCError{Code: -32601, Message: "method not found"}
	} else {
		var params []json.RawMessage
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				params = []json.RawMessage{req.Params}
			}
		}

		resp.Result, resp.Error = handler(params)
		if resp.Result == nil && resp.Error == nil {
			resp.Result = json.RawMessage("null")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.t.Errorf("failed to encode rpc response: %v", err)
	}
}

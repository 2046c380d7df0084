package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string) TransportConfig {
	cfg := DefaultTransportConfig()
	cfg.URL = url
	cfg.ClientID = 1
	cfg.BufferSize = 100
	return cfg
}

func sendFrame(t *testing.T, conn *websocket.Conn, kind EventKind, ev any) {
	t.Helper()
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Errorf("marshal payload: %v", err)
		return
	}
	frame, _ := json.Marshal(envelope{Type: string(kind), Payload: payload})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Logf("write frame: %v", err)
	}
}

func TestTransport_ConnectAndReceive(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		sendFrame(t, conn, KindTickPrice, TickPrice{ReqID: 9, TickType: "Bid", Price: 42.5})
		sendFrame(t, conn, KindNextValidID, NextValidID{OrderID: 77})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr := NewWebsocketTransport(testConfig(wsURL(server)), nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer tr.Close()

	var got []Event
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case rcv := <-tr.Events():
			if rcv.ReceivedAt.IsZero() {
				t.Error("ReceivedAt not stamped")
			}
			got = append(got, rcv.Event)
		case <-timeout:
			t.Fatalf("received %d events, want 2", len(got))
		}
	}

	tick, ok := got[0].(TickPrice)
	if !ok {
		t.Fatalf("first event type = %T, want TickPrice", got[0])
	}
	if tick.ReqID != 9 || tick.Price != 42.5 {
		t.Errorf("tick = %+v, want req 9 @ 42.5", tick)
	}
	next, ok := got[1].(NextValidID)
	if !ok || next.OrderID != 77 {
		t.Errorf("second event = %+v, want NextValidID 77", got[1])
	}
}

func TestTransport_SendEncodesEnvelope(t *testing.T) {
	frames := make(chan envelope, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err == nil {
			frames <- env
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr := NewWebsocketTransport(testConfig(wsURL(server)), nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer tr.Close()

	cmd := ReqMktData{ReqID: 3, Contract: ContractFields{Symbol: "AAPL", SecType: "STK"}}
	if err := tr.Send(cmd); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	select {
	case env := <-frames:
		if env.Type != string(OpReqMktData) {
			t.Errorf("frame type = %q, want %q", env.Type, OpReqMktData)
		}
		var decoded ReqMktData
		if err := json.Unmarshal(env.Payload, &decoded); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if decoded.ReqID != 3 || decoded.Contract.Symbol != "AAPL" {
			t.Errorf("decoded = %+v", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the frame")
	}
}

func TestTransport_SendBeforeConnect(t *testing.T) {
	tr := NewWebsocketTransport(testConfig("ws://127.0.0.1:1"), nil)
	if err := tr.Send(ReqIDs{}); err != ErrNotConnected {
		t.Errorf("Send() before Connect = %v, want ErrNotConnected", err)
	}
}

func TestTransport_ReadFailureSurfacesError(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Drop the connection immediately.
		conn.Close()
	})
	defer server.Close()

	tr := NewWebsocketTransport(testConfig(wsURL(server)), nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer tr.Close()

	select {
	case err := <-tr.Errors():
		if err == nil {
			t.Error("Errors() delivered nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not surface the read failure")
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name string
		kind EventKind
		in   Event
	}{
		{"error event", KindError, ErrorEvent{ReqID: 4, Code: 200, Message: "No security definition"}},
		{"contract details end", KindContractDetailsEnd, ContractDetailsEnd{ReqID: 12}},
		{"managed accounts", KindManagedAccounts, ManagedAccounts{Accounts: []string{"DU1", "DU2"}}},
		{"historical news", KindHistoricalNews, HistoricalNews{ReqID: 5, Headline: "h", Done: true}},
		{"exec details end", KindExecDetailsEnd, ExecDetailsEnd{ReqID: 7}},
		{"receive fa", KindReceiveFA, ReceiveFA{DataType: FAGroups, XML: "<ListOfGroups/>"}},
		{"symbol samples", KindSymbolSamples, SymbolSamples{ReqID: 9, Samples: []ContractDescription{{Contract: ContractFields{Symbol: "AAPL"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			frame, _ := json.Marshal(envelope{Type: string(tt.kind), Payload: payload})

			ev, err := decodeFrame(frame)
			if err != nil {
				t.Fatalf("decodeFrame() error: %v", err)
			}
			if ev.Kind() != tt.kind {
				t.Errorf("Kind() = %s, want %s", ev.Kind(), tt.kind)
			}
		})
	}
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	frame := []byte(`{"type":"no_such_event","payload":{}}`)
	if _, err := decodeFrame(frame); err == nil {
		t.Error("decodeFrame() on unknown type returned nil error")
	}
}

func TestFakeTransport_ScriptedResponses(t *testing.T) {
	ft := NewFakeTransport(16)
	ft.Handle(OpReqContractDetails, func(cmd Command) []Event {
		req := cmd.(ReqContractDetails)
		return []Event{
			ContractDetails{ReqID: req.ReqID, Contract: req.Contract},
			ContractDetailsEnd{ReqID: req.ReqID},
		}
	})

	if err := ft.Send(ReqIDs{}); err != ErrNotConnected {
		t.Fatalf("Send() before Connect = %v, want ErrNotConnected", err)
	}
	if err := ft.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	if err := ft.Send(ReqContractDetails{ReqID: 2, Contract: ContractFields{Symbol: "AAPL"}}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if len(ft.Sent()) != 1 {
		t.Errorf("Sent() = %d commands, want 1", len(ft.Sent()))
	}

	first := <-ft.Events()
	if d, ok := first.Event.(ContractDetails); !ok || d.ReqID != 2 {
		t.Errorf("first event = %+v, want ContractDetails req 2", first.Event)
	}
	second := <-ft.Events()
	if _, ok := second.Event.(ContractDetailsEnd); !ok {
		t.Errorf("second event = %T, want ContractDetailsEnd", second.Event)
	}
}

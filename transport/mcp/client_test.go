package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/wricardo/geocache-world/game/engine"
	"github.com/wricardo/geocache-world/game/service"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client == nil {
		t.Fatal("Expected client to be created")
	}
	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "test-session"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]interface{}
	if err := client.apiCall(context.Background(), "GET", "/api/sessions/test-session", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["id"] != "test-session" {
		t.Errorf("Expected id test-session, got %v", response["id"])
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	if err := client.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall(context.Background(), "GET", "/api/sessions/x", nil, nil)
	if err == nil || err.Error() != "session not found" {
		t.Errorf("Expected API error message, got %v", err)
	}
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	var request mcp.CallToolRequest
	request.Params.Name = name
	request.Params.Arguments = args
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected content in tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", result.Content[0])
	}
	return text.Text
}

// recordingServer answers every request with body and records the request line
func recordingServer(t *testing.T, status int, body interface{}) (*httptest.Server, *[]string, *[]map[string]interface{}) {
	t.Helper()
	var lines []string
	var bodies []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines = append(lines, r.Method+" "+r.URL.Path)
		var reqBody map[string]interface{}
		json.NewDecoder(r.Body).Decode(&reqBody)
		bodies = append(bodies, reqBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, &lines, &bodies
}

func TestClient_createSession(t *testing.T) {
	server, lines, bodies := recordingServer(t, http.StatusCreated, service.SessionInfo{
		ID:         "walk",
		ConfigName: "classic",
		WorldState: &engine.WorldState{PlayerCell: engine.Cell{I: 3, J: 4}},
	})
	client := NewClient(server.URL)

	result, err := client.handleCreateSession(context.Background(), callTool("create_session", map[string]interface{}{
		"config_id":  "classic",
		"session_id": "walk",
	}))
	if err != nil {
		t.Fatalf("handleCreateSession failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Created session: walk") || !strings.Contains(text, "Cell: 3,4") {
		t.Errorf("Unexpected output: %s", text)
	}
	if (*lines)[0] != "POST /api/sessions" {
		t.Errorf("Unexpected request %s", (*lines)[0])
	}
	if (*bodies)[0]["config_id"] != "classic" || (*bodies)[0]["session_id"] != "walk" {
		t.Errorf("Unexpected request body %v", (*bodies)[0])
	}
}

func TestClient_toolRouting(t *testing.T) {
	tests := []struct {
		name    string
		handler func(*Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]interface{}
		request string
	}{
		{
			name:    "move",
			handler: func(c *Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) { return c.handleMove },
			args:    map[string]interface{}{"session_id": "s1", "direction": "north"},
			request: "POST /api/sessions/s1/move",
		},
		{
			name:    "move_to",
			handler: func(c *Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) { return c.handleMoveTo },
			args:    map[string]interface{}{"session_id": "s1", "lat": 0.0015, "lng": -0.00015},
			request: "POST /api/sessions/s1/move-to",
		},
		{
			name:    "take",
			handler: func(c *Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) { return c.handleTake },
			args:    map[string]interface{}{"session_id": "s1", "cell": "3,4"},
			request: "POST /api/sessions/s1/caches/3,4/take",
		},
		{
			name:    "give",
			handler: func(c *Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) { return c.handleGive },
			args:    map[string]interface{}{"session_id": "s1", "cell": "-1,2"},
			request: "POST /api/sessions/s1/caches/-1,2/give",
		},
		{
			name:    "world_state",
			handler: func(c *Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) { return c.handleWorldState },
			args:    map[string]interface{}{"session_id": "s1"},
			request: "GET /api/sessions/s1/state",
		},
		{
			name:    "reset_world",
			handler: func(c *Client) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) { return c.handleReset },
			args:    map[string]interface{}{"session_id": "s1", "confirm": true},
			request: "POST /api/sessions/s1/reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, lines, _ := recordingServer(t, http.StatusOK, map[string]interface{}{})
			client := NewClient(server.URL)

			result, err := tt.handler(client)(context.Background(), callTool(tt.name, tt.args))
			if err != nil {
				t.Fatalf("Handler failed: %v", err)
			}
			if result.IsError {
				t.Fatalf("Unexpected tool error: %s", resultText(t, result))
			}
			if len(*lines) != 1 || (*lines)[0] != tt.request {
				t.Errorf("Expected request %q, got %v", tt.request, *lines)
			}
		})
	}
}

func TestClient_moveToRequiresCoordinates(t *testing.T) {
	server, lines, _ := recordingServer(t, http.StatusOK, map[string]interface{}{})
	client := NewClient(server.URL)

	result, err := client.handleMoveTo(context.Background(), callTool("move_to", map[string]interface{}{"session_id": "s1", "lat": 1.0}))
	if err != nil {
		t.Fatalf("handleMoveTo failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected a tool error without lng")
	}
	if len(*lines) != 0 {
		t.Errorf("Expected no API request, got %v", *lines)
	}
}

func TestClient_apiErrorsBecomeToolErrors(t *testing.T) {
	server, _, _ := recordingServer(t, http.StatusConflict, map[string]string{"error": "no materialized cache at cell: 9,9"})
	client := NewClient(server.URL)

	result, err := client.handleTake(context.Background(), callTool("take", map[string]interface{}{"session_id": "s1", "cell": "9,9"}))
	if err != nil {
		t.Fatalf("handleTake failed: %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "no materialized cache") {
		t.Errorf("Expected tool error carrying the API message, got %+v", result)
	}
}

func TestFormatWorldState(t *testing.T) {
	state := &engine.WorldState{
		Location:   engine.LatLng{Lat: 0.00035, Lng: 0.00045},
		PlayerCell: engine.Cell{I: 3, J: 4},
		Trail:      []engine.LatLng{{Lat: 0.00035, Lng: 0.00045}},
		Inventory:  []engine.Token{{I: 3, J: 4, Serial: 2}},
		Caches: []engine.CacheView{
			{Key: "5,4", Cell: engine.Cell{I: 5, J: 4}, Tokens: []engine.Token{{I: 5, J: 4}}},
			{Key: "3,4", Cell: engine.Cell{I: 3, J: 4}, Tokens: []engine.Token{{I: 3, J: 4}, {I: 3, J: 4, Serial: 1}}},
		},
	}

	result := formatWorldState(state)

	for _, want := range []string{
		"Cell: 3,4",
		"Trail: 1 points",
		"Inventory (1, newest last): 3:4#2",
		"Live caches: 2 holding 3 tokens",
		"Nearest with tokens: 3,4, 0 cells away",
		"3,4 (here): 2 tokens, 0 cells away",
		"5,4: 1 tokens, 2 cells away",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("Expected %q in:\n%s", want, result)
		}
	}
	if strings.Index(result, "3,4 (here)") > strings.Index(result, "5,4:") {
		t.Error("Expected caches ordered by distance")
	}

	if formatWorldState(nil) != "No world state available" {
		t.Error("Expected placeholder for nil state")
	}
}

func TestFormatWorldState_Truncates(t *testing.T) {
	state := &engine.WorldState{}
	for i := 0; i < maxListedCaches+3; i++ {
		cell := engine.Cell{I: i, J: 0}
		state.Caches = append(state.Caches, engine.CacheView{Key: cell.Key(), Cell: cell})
	}

	if result := formatWorldState(state); !strings.Contains(result, "... 3 more") {
		t.Errorf("Expected truncation note, got:\n%s", result)
	}
}

func TestFormatMoveResult(t *testing.T) {
	result := &service.MoveResult{
		Success:  true,
		FromCell: "3,4",
		ToCell:   "4,4",
		Entered:  []string{"12,4"},
		Left:     []string{"-5,4"},
	}

	text := formatMoveResult(result)
	for _, want := range []string{"✓ Move successful", "Cell: 3,4 → 4,4", "in range: 12,4", "out of range: -5,4"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in:\n%s", want, text)
		}
	}
}

func TestFormatExchangeResult(t *testing.T) {
	took := formatExchangeResult("take", &service.ExchangeResult{
		Success: true, CellKey: "3,4", Token: &engine.Token{I: 3, J: 4, Serial: 1}, CacheSize: 1, Inventory: 1,
	})
	if !strings.Contains(took, "✓ Took 3:4#1 at 3,4") {
		t.Errorf("Unexpected take output: %s", took)
	}

	noop := formatExchangeResult("give", &service.ExchangeResult{CellKey: "3,4", Message: "inventory is empty"})
	if !strings.Contains(noop, "✗ Nothing to give at 3,4") {
		t.Errorf("Unexpected give output: %s", noop)
	}
}

func TestClient_handleGameInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleGameInstructions(context.Background(), callTool("game_instructions", nil))
	if err != nil {
		t.Fatalf("handleGameInstructions failed: %v", err)
	}

	text := resultText(t, result)
	for _, section := range []string{"THE WORLD:", "TOKENS:", "MOVEMENT:", "PERSISTENCE:"} {
		if !strings.Contains(text, section) {
			t.Errorf("Expected section %q in instructions", section)
		}
	}
}

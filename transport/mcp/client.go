package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/geocache-world/game/engine"
	"github.com/wricardo/geocache-world/game/service"
)

// maxListedCaches bounds the cache list in world state summaries
const maxListedCaches = 12

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Geocache World",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Geocache World - MCP Interface

This is a thin client that proxies all requests to the REST API server.

The world is an infinite grid of cells laid over latitude/longitude. Caches
appear deterministically around the player and hold tokens. Move around,
take tokens from caches and give them back elsewhere. Tokens are never
created or destroyed by an exchange.

AVAILABLE TOOLS:
- create_session: Create a new world session
- get_session / list_sessions: Inspect sessions
- world_state: Location, inventory and nearby caches
- move: Step one cell (north/south/east/west)
- move_to: Jump to a latitude/longitude
- take / give: Exchange the newest token with a cache in range
- describe_cell: Bounds and contents of one cell
- reset_world: Start over (requires confirm=true)
- list_configs: Available world configurations
- game_instructions: Rules in detail`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func cellProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": `Cell key "i,j" as shown in world_state`,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new world session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Config to use (optional, see list_configs)",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Custom session ID (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all world sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// World operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "world_state",
		Description: "Get the player's location, inventory and the live caches in range",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleWorldState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move",
		Description: "Move the player one cell in a direction",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"north", "south", "east", "west"},
					"description": "Direction to move",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this move",
				},
			},
			Required: []string{"session_id", "direction"},
		},
	}, c.handleMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_to",
		Description: "Move the player to an absolute latitude/longitude",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"lat": map[string]interface{}{
					"type":        "number",
					"description": "Latitude in degrees",
				},
				"lng": map[string]interface{}{
					"type":        "number",
					"description": "Longitude in degrees",
				},
			},
			Required: []string{"session_id", "lat", "lng"},
		},
	}, c.handleMoveTo)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "take",
		Description: "Take the newest token from a live cache into the inventory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"cell":       cellProperty(),
			},
			Required: []string{"session_id", "cell"},
		},
	}, c.handleTake)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "give",
		Description: "Give the newest inventory token to a live cache",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"cell":       cellProperty(),
			},
			Required: []string{"session_id", "cell"},
		},
	}, c.handleGive)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get the bounds and tokens of a live cache at a cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"cell":       cellProperty(),
			},
			Required: []string{"session_id", "cell"},
		},
	}, c.handleDescribeCell)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_world",
		Description: "Erase all progress and start over. Requires confirm=true.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true to reset",
				},
			},
			Required: []string{"session_id", "confirm"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available world configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules of the world",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func sessionPath(sessionID string, parts ...string) string {
	path := "/api/sessions/" + url.PathEscape(sessionID)
	for _, p := range parts {
		path += "/" + url.PathEscape(p)
	}
	return path
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)
	sessionID, _ := args["session_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}
	if sessionID != "" {
		body["session_id"] = sessionID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s", session.ID, session.ConfigName, formatWorldState(session.WorldState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (Config: %s, Created: %s)\n", s.ID, s.ConfigName, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleWorldState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var state engine.WorldState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatWorldState(&state)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	direction, _ := args["direction"].(string)

	var result service.MoveResult
	body := map[string]string{"direction": direction}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "move"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleMoveTo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	lat, latOK := args["lat"].(float64)
	lng, lngOK := args["lng"].(float64)
	if !latOK || !lngOK {
		return mcp.NewToolResultError("lat and lng are required numbers"), nil
	}

	var result service.MoveResult
	body := map[string]float64{"lat": lat, "lng": lng}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "move-to"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleTake(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.exchange(ctx, request, "take")
}

func (c *Client) handleGive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.exchange(ctx, request, "give")
}

func (c *Client) exchange(ctx context.Context, request mcp.CallToolRequest, action string) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	cell, _ := args["cell"].(string)

	var result service.ExchangeResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "caches", cell, action), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatExchangeResult(action, &result)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	cell, _ := args["cell"].(string)

	var cache engine.CacheView
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "caches", cell), nil, &cache); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cell %s\n", cache.Key)
	fmt.Fprintf(&b, "Bounds: lat [%.6f, %.6f) lng [%.6f, %.6f)\n",
		cache.Bounds.Min.Lat, cache.Bounds.Max.Lat, cache.Bounds.Min.Lng, cache.Bounds.Max.Lng)
	fmt.Fprintf(&b, "Tokens (%d, newest last): %s\n", len(cache.Tokens), formatTokens(cache.Tokens))
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	confirm, _ := args["confirm"].(bool)

	var response struct {
		Message string             `json:"message"`
		State   *engine.WorldState `json:"state"`
	}

	body := map[string]bool{"confirm": confirm}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "reset"), body, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatWorldState(response.State))), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (config_id: %s)\n  %s\n  Tile: %g°, Radius: %d, Spawn chance: %g\n\n",
			config.Name, config.ConfigID, config.Description, config.TileWidth, config.NeighborhoodRadius, config.SpawnChance)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `Geocache World - Instructions

THE WORLD:
• The map is divided into square cells of a fixed width in degrees.
  Cell "i,j" covers latitudes [i*w, (i+1)*w) and longitudes [j*w, (j+1)*w).
• Every cell either has a cache or not. Whether it does, and how many tokens
  it starts with, depends only on the world seed and the cell itself.
• Caches within the neighborhood radius of your cell are live. Moving away
  hides them; coming back restores them exactly as you left them.

TOKENS:
• Each token is tagged with its home cell and a serial, shown as i:j#serial.
• take moves the newest token of a cache into your inventory.
• give moves your newest token into a cache.
• Both only work on live caches. An exchange never creates or destroys tokens;
  on an empty cache or empty inventory it does nothing.

MOVEMENT:
• move steps exactly one cell: north (+lat), south, east (+lng), west.
• move_to jumps to any latitude/longitude.
• Every move is recorded in your trail.

PERSISTENCE:
• Your location, trail, inventory and every cache you touched are saved.
  reset_world with confirm=true erases them and starts over.`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\nLast access: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		session.LastAccessedAt.Format("2006-01-02 15:04:05"),
		formatWorldState(session.WorldState))
}

func formatTokens(tokens []engine.Token) string {
	if len(tokens) == 0 {
		return "(none)"
	}
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

func formatWorldState(state *engine.WorldState) string {
	if state == nil {
		return "No world state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Location: %.6f, %.6f | Cell: %s | Trail: %d points\n",
		state.Location.Lat, state.Location.Lng, state.PlayerCell.Key(), len(state.Trail))
	fmt.Fprintf(&b, "Inventory (%d, newest last): %s\n", len(state.Inventory), formatTokens(state.Inventory))

	caches := append([]engine.CacheView(nil), state.Caches...)
	sort.SliceStable(caches, func(i, j int) bool {
		di, dj := engine.CellDistance(caches[i].Cell, state.PlayerCell), engine.CellDistance(caches[j].Cell, state.PlayerCell)
		if di != dj {
			return di < dj
		}
		return caches[i].Key < caches[j].Key
	})

	fmt.Fprintf(&b, "\nLive caches: %d holding %d tokens\n", len(caches), engine.CountCacheTokens(state))
	if nearest, distance, ok := engine.FindNearestCache(state); ok {
		fmt.Fprintf(&b, "Nearest with tokens: %s, %d cells away\n", nearest.Key, distance)
	}

	for i, cache := range caches {
		if i == maxListedCaches {
			fmt.Fprintf(&b, "  ... %d more\n", len(caches)-maxListedCaches)
			break
		}
		marker := ""
		if cache.Cell == state.PlayerCell {
			marker = " (here)"
		}
		fmt.Fprintf(&b, "  %s%s: %d tokens, %d cells away\n", cache.Key, marker, len(cache.Tokens), engine.CellDistance(cache.Cell, state.PlayerCell))
	}

	return b.String()
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	if result.Success {
		b.WriteString("✓ Move successful\n")
	} else {
		b.WriteString("✗ Move failed\n")
	}

	fmt.Fprintf(&b, "Cell: %s → %s\n", result.FromCell, result.ToCell)
	if len(result.Entered) > 0 {
		fmt.Fprintf(&b, "Caches now in range: %s\n", strings.Join(result.Entered, " "))
	}
	if len(result.Left) > 0 {
		fmt.Fprintf(&b, "Caches out of range: %s\n", strings.Join(result.Left, " "))
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", result.Message)
	}

	b.WriteString("\n" + formatWorldState(result.WorldState))
	return b.String()
}

func formatExchangeResult(action string, result *service.ExchangeResult) string {
	var b strings.Builder
	if result.Success && result.Token != nil {
		verb := "Took"
		if action == "give" {
			verb = "Gave"
		}
		fmt.Fprintf(&b, "✓ %s %s at %s\n", verb, result.Token, result.CellKey)
	} else {
		fmt.Fprintf(&b, "✗ Nothing to %s at %s\n", action, result.CellKey)
	}
	fmt.Fprintf(&b, "Cache now holds %d, inventory holds %d\n", result.CacheSize, result.Inventory)
	if result.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", result.Message)
	}
	return b.String()
}

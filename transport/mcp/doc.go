// Package mcp exposes Geocache World to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool call becomes a REST request against
// a running server, and the JSON reply is rendered as text for the agent.
//
// Tools: create_session, list_sessions, get_session, world_state, move,
// move_to, take, give, describe_cell, reset_world, list_configs and
// game_instructions.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp

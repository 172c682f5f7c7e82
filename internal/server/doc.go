// Package server implements the chat relay: sessions over TCP or WebSocket,
// the room registry and broadcast hub, slash commands, and the HTTP side
// for health, metrics and WebSocket upgrades.
//
// The implementation is organized into specialized files for configuration,
// hub management, sessions, transports, commands and routing.
package server

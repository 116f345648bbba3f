// Package main is uartcon, an interactive console for uartd sessions.
//
// uartcon opens a session for the given label, puts the local terminal in
// raw mode and relays keystrokes and UART output until Ctrl-] is pressed.
//
// Usage:
//
//	uartcon --server http://localhost:8080 --label "init -> shell"
//	uartcon -l console -a ram_quota=8K
package main

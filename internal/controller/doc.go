// Package controller keeps a sync device aligned with a live editor.
//
// The Controller is driven once per frame by the host loop through Update. It
// is a three-state machine:
//
//	Disconnected ──retry gate + connect──▶ ConnectedPaused ◀──Pause── ConnectedRunning
//	      ▲                                        │                          ▲
//	      └────────────── any fault ───────────────┴───────Play───────────────┘
//
// On entering a connected state the controller registers every track name
// with the editor. Any transport or protocol fault drops back to
// Disconnected without touching track data or the paused flag; a new attempt
// is made at most once per retry interval. With no editor the controller stays
// Disconnected and the device plays (or waits) according to the standalone
// policy.
//
// The controller never blocks beyond the transport's own short deadlines and
// starts no goroutines. It depends only on the Clock, Connector and Link
// interfaces so tests can run without sockets.
package controller

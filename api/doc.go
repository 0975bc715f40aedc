// Package api exposes the client to a local user interface over HTTP.
//
// The REST routes drive calls, contacts, chat, file transfers and
// screenshares. GET /events upgrades to a websocket that streams every
// status change, chat message and notice as JSON. Incoming calls appear as
// "incoming_call" notices and wait for POST /call/answer until the accept
// timeout runs out. GET /metrics serves Prometheus metrics.
//
// The server is meant to bind a loopback address only.
package api

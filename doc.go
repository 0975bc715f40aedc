// Package audiochat is a peer-to-peer encrypted voice client.
//
// Two people who share a 16 byte secret can call each other directly, with no
// server in between. Every packet on the wire is sealed with AES-128-GCM under
// the shared secret. A call carries 48 kHz mono audio, chat messages, file
// transfers and an optional screenshare.
//
// # Getting Started
//
// Load a configuration, build a client and run it until interrupted:
//
//	dir, _ := config.DefaultDataDir()
//	cfg, err := config.Load(dir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := audiochat.New(cfg, dir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := client.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Calls
//
// A client holds one call session at a time. InitiateCall dials a contact's
// control port and performs the hello handshake. Incoming calls are offered to
// the configured Acceptor, by default the websocket hub of the local API,
// which waits for the user to answer through POST /call/answer.
//
//	if err := client.InitiateCall(ctx, "bob"); err != nil {
//	    log.Printf("call failed: %v", err)
//	}
//	_ = client.SendMessage([]byte("hello"))
//	_ = client.EndCall()
//
// A call whose audio path drops is reported as disconnected and keeps running.
// Calling the same contact again, or being called by them, resumes it on
// fresh ports.
//
// # Subsystems
//
// The client wires together the following packages:
//
//   - config: YAML settings stored in the data directory
//   - contact: the contact directory, its stores and liveness probes
//   - av: the call session state machine and its audio loops
//   - control: the control port answering peer handshakes
//   - link: the initiating side of those handshakes
//   - file: chunked encrypted file transfers
//   - screenshare: screenshare negotiation
//   - api: the local HTTP and websocket surface for a user interface
//   - metrics: Prometheus collectors served at /metrics
package audiochat

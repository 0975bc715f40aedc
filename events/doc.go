// Package events defines the sink through which the core reports chat
// messages, session status changes and user-visible notices to whatever UI is
// attached.
package events

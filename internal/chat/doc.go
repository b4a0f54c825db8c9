// Package chat keeps chat sessions and drives the streaming reply endpoint.
//
// A [Store] appends the user's message and an empty assistant message before
// the request is sent, grows the assistant message with each delta, and swaps
// in the server's transcript when the stream finishes. One send per session
// runs at a time.
package chat

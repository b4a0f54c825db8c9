// Package services implements [Client], the HTTP client for the AutoEhHunter web API.
//
// # Session
//
// The backend authenticates with a session cookie plus a CSRF token. The
// client keeps cookies in its jar and sends the token in the x-csrf-token
// header on POST, PUT, PATCH and DELETE. [Client.Login] adopts the token from
// the login response; [Client.ImportSession] adopts both from a browser
// "copy as cURL" export.
//
// # Errors
//
// Non-2xx responses become [*APIError]. Its Detail flattens the backend's
// error envelope (a string, or an object with message and traceback), and it
// unwraps to a sentinel from the shared package:
//   - [shared.ErrUnauthorized] : 401, after OnUnauthorized has run
//   - [shared.ErrServiceUnavailable] : 502, 503, 504
//   - [shared.ErrAPIRequest] : every other failure
//
// # Streams
//
// [Client.StreamChat] and [Client.WatchTasks] read text/event-stream bodies
// through the stream package; events are delivered as frames complete, not
// after the body ends.
//
// # Raw requests
//
// [Client.Get], [Client.Post] and [Client.Delete] return the response as-is,
// whatever the status, for the api passthrough command.
package services

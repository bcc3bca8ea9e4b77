// Package transport implements the hub's wire transport: long-lived
// TCP connections carrying HTTP/1.1-framed JSON messages.
//
// The framing is deliberately not served through net/http. Devices
// keep a single connection open for their whole lifetime and the hub
// initiates messages on it (stream start requests travel hub-to-device
// as HTTP responses), which the request/response model of an
// http.Server cannot express. The server therefore owns the accept
// loop and parses each inbound HTTP request off the connection
// directly.
//
// Every peer speaks the same framing:
//
//   - inbound messages arrive as HTTP requests (POST with a JSON body
//     for protocol messages, GET for the REST endpoints)
//   - outbound messages leave as HTTP responses, whether they answer
//     a request or are pushed unsolicited
//
// The Server hands each parsed request to a callback; connection
// lifecycle is reported through OnConnect/OnDisconnect.
package transport

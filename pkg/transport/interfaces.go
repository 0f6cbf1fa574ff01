// pkg/transport/interfaces.go
package transport

// Transport is the command/response contract shared by the local serial
// link and the remote proxy. Callers written against it do not know which
// one they are talking to.
type Transport interface {
	// SendCommand sends one command line and returns the response body
	// with the echo and prompt removed. An empty string is the normal
	// reply for set-style commands.
	SendCommand(cmd string) (string, error)

	// Close releases the underlying link.
	Close() error
}

package common

import "testing"

var surreal = &sharedContainer{spec: containerSpec{
	name:     "SurrealDB",
	image:    "surrealdb/surrealdb:v3.0.0",
	port:     "8000/tcp",
	cmd:      []string{"start", "--user", "root", "--pass", "root"},
	readyLog: "Started web server",
}}

// SurrealDBContainer is a running SurrealDB shared by the test binary.
type SurrealDBContainer struct {
	endpoint string
}

// StartSurrealDB returns the shared SurrealDB container, starting it on first
// use. The test is skipped under -short or when Docker is unavailable.
func StartSurrealDB(t *testing.T) *SurrealDBContainer {
	t.Helper()
	return &SurrealDBContainer{endpoint: surreal.start(t)}
}

// Address returns the WebSocket RPC address for SurrealDB.
func (c *SurrealDBContainer) Address() string {
	return "ws://" + c.endpoint + "/rpc"
}

// Cleanup terminates the shared container. Call from TestMain if needed.
func (c *SurrealDBContainer) Cleanup() {
	surreal.cleanup()
}

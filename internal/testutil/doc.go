// Package testutil provides shared test helpers for tracksync.
//
// # Fakes
//
// The controller is tested without sockets or wall-clock time:
//
//   - FakeClock - a manually advanced controller.Clock
//   - FakeLink - an in-memory controller.Link with scripted inbound messages
//     and recorded sends
//   - FakeConnector - a controller.Connector that refuses by default and hands
//     out queued FakeLinks
//
// # Fixtures
//
//   - SampleTrackNames() - the track names used across tests
//   - SampleStore(t) - a registered store with keys on every track
//   - SampleDevice(t) - a device at the default tempo over SampleStore
//
// # Environment Helpers
//
//   - SetupTestDir(t) - a temp directory holding tracksync.yaml
//   - WriteTestFile(t, base, path, content) - writes a file under base
//
// # Usage
//
//	func TestSomething(t *testing.T) {
//	    clock := testutil.NewFakeClock()
//	    conn := testutil.NewFakeConnector()
//	    link := conn.Queue("session-1")
//	    ...
//	    testutil.AssertSentRows(t, link, 0, 1, 2)
//	}
package testutil

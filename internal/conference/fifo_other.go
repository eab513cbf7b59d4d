//go:build !unix

package conference

// Windows named pipes are created by the SDK's pipe server itself.
func makeFIFO(path string) error { return nil }

func removeFIFO(path string) {}

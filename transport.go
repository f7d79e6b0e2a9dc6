package linebridge

import "github.com/wagiedev/linebridge-go/internal/config"

// Transport defines the line-level connection to a worker.
// Implement this to provide custom transports for testing, mocking,
// or workers that are not local processes.
//
// The default implementation is ProcessTransport which spawns a subprocess.
// Custom transports can be injected via WithTransport.
type Transport = config.Transport

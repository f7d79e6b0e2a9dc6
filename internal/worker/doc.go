// Package worker provides worker binary discovery and command building for
// the process transport.
//
// # Worker Discovery
//
// The Discoverer interface locates the worker binary:
//
//	discoverer := worker.NewDiscoverer(&worker.Config{
//	    WorkerPath: "",           // Optional explicit path
//	    Dir:        "/srv/ticket", // Optional working directory
//	    Logger:     slog.Default(),
//	})
//	workerPath, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.WorkerPath (if provided)
//  2. System PATH
//  3. The worker's working directory (Config.Dir, or the current directory)
//
// # Command Building
//
// The package provides functions to build the worker's arguments and
// environment:
//
//	args := worker.BuildArgs(options)
//	env := worker.BuildEnvironment(options)
package worker

package worker

import (
	"fmt"
	"os"
	"slices"

	"github.com/wagiedev/linebridge-go/internal/config"
)

// Environment variables set for every worker process.
const (
	EnvBridge         = "LINEBRIDGE"
	EnvSequenceTokens = "LINEBRIDGE_SEQUENCE_TOKENS"
)

// BuildArgs constructs the worker's command line arguments.
func BuildArgs(options *config.Options) []string {
	return slices.Clone(options.Args)
}

// BuildEnvironment constructs the worker's environment: the current
// environment, the bridge markers, then the user-provided variables.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()

	env = append(env, EnvBridge+"=1")

	if !options.DisableSequenceTokens {
		env = append(env, EnvSequenceTokens+"=1")
	}

	for key, value := range options.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}

package environment

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/boristopalov/dojo/pkg/config"
	"github.com/boristopalov/dojo/pkg/core"
)

// New builds the environment described by cfg. Episodes are truncated after
// cfg.MaxSteps steps when it is positive.
func New(cfg config.EnvConfig, seed int64, out io.Writer) (core.Environment, error) {
	var env core.Environment
	switch cfg.Type {
	case "", "cartpole":
		env = NewCartPole(rand.New(rand.NewSource(seed)), out)
	case "remote":
		if cfg.Address == "" {
			return nil, fmt.Errorf("remote environment needs an address")
		}
		env = NewRemote(cfg.Address, out)
	default:
		return nil, fmt.Errorf("unknown environment type %q", cfg.Type)
	}
	if cfg.MaxSteps > 0 {
		env = NewTimeLimit(env, cfg.MaxSteps)
	}
	return env, nil
}

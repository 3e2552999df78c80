package cli

import (
	"github.com/charmbracelet/log"

	"lan-gateway/gateway/internal/config"
	"lan-gateway/gateway/internal/logging"
)

func loadRuntime() (config.Env, *log.Logger, error) {
	config.LoadDotEnv()

	env, err := config.LoadEnv()
	if err != nil {
		return config.Env{}, nil, err
	}
	return env, logging.New(env.LogLevel), nil
}

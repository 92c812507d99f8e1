package cmd

import (
	"context"

	"firestige.xyz/vswitch/internal/command"
	"firestige.xyz/vswitch/internal/config"
)

// Client is the part of the control socket client the commands use.
type Client interface {
	Ping(ctx context.Context) error
	FDBShow(ctx context.Context, port string) (*command.FDBShowResult, error)
	FDBFlush(ctx context.Context) (*command.FDBFlushResult, error)
	SwitchStatus(ctx context.Context) (*command.StatusResult, error)
	SwitchShutdown(ctx context.Context) error
	ConfigReload(ctx context.Context) error
}

// newClient is replaced in tests.
var newClient = func() (Client, error) {
	path, err := resolveSocket()
	if err != nil {
		return nil, err
	}
	return command.NewUDSClient(path, timeout), nil
}

// resolveSocket returns --socket, or control.socket from the config file.
func resolveSocket() (string, error) {
	if socketPath != "" {
		return socketPath, nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return "", err
	}
	return cfg.Control.Socket, nil
}

// clientCommand runs fn with a connected client and a request context.
func clientCommand(fn func(ctx context.Context, c Client) error) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, c)
}

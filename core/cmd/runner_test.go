package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/mailbot/core/config"
	coretelegram "github.com/m3rciful/mailbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct {
	opts coretelegram.RunOptions
}

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, nil }

func TestRunWiresLifecycleHooks(t *testing.T) {
	t.Setenv("MAILBOT_CONFIG", "")
	var hooks []string

	err := Run(Options{
		ConfigEnvVar:      "MAILBOT_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			assert.Equal(t, "config.yaml", path)
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return app{opts: coretelegram.RunOptions{
				OnStart: func(context.Context, coretelegram.Runtime) error {
					hooks = append(hooks, "start")
					return nil
				},
				OnStop: func(context.Context, coretelegram.Runtime) error {
					hooks = append(hooks, "stop")
					return nil
				},
			}}, nil
		},
		ShutdownLogger: func() error {
			hooks = append(hooks, "logger")
			return nil
		},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "stop", "logger"}, hooks)
}

func TestRunReportsConfigErrors(t *testing.T) {
	t.Setenv("MAILBOT_CONFIG", "from-env.yaml")
	boom := errors.New("boom")

	err := Run(Options{
		ConfigEnvVar: "MAILBOT_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			assert.Equal(t, "from-env.yaml", path)
			return nil, boom
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	assert.ErrorIs(t, err, boom)

	assert.Error(t, Run(Options{}))
}

func TestRunShutsLoggerDownWhenBootstrapFails(t *testing.T) {
	t.Setenv("MAILBOT_CONFIG", "")
	boom := errors.New("smtp settings missing")
	flushed := false

	err := Run(Options{
		ConfigEnvVar:      "MAILBOT_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
		ShutdownLogger: func() error {
			flushed = true
			return nil
		},
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, flushed)
}

func TestConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	_, err := configPath(Options{})
	assert.Error(t, err)

	t.Setenv("CONFIG_PATH", "/etc/mailbot.yaml")
	p, err := configPath(Options{DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/mailbot.yaml", p)
}

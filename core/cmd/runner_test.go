package cmd

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/lessonbot/core/config"
	coretelegram "github.com/m3rciful/lessonbot/core/telegram"
)

type fakeConfig struct{ core coreconfig.Config }

func (f *fakeConfig) CoreConfig() *coreconfig.Config { return &f.core }

type fakeApp struct {
	tasks  []Task
	closed atomic.Bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *fakeApp) BackgroundTasks() []Task { return a.tasks }

func (a *fakeApp) Close() error {
	a.closed.Store(true)
	return nil
}

func baseOptions(app *fakeApp, run func(context.Context, coretelegram.RunOptions) error) Options {
	return Options{
		ConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) { return &fakeConfig{}, nil },
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return app, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram:    run,
		Context:        context.Background(),
	}
}

func TestRunStopsTasksWhenBotExits(t *testing.T) {
	var stopped atomic.Bool
	app := &fakeApp{tasks: []Task{{
		Name: "janitor",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Store(true)
			return nil
		},
	}}}
	run := func(ctx context.Context, opts coretelegram.RunOptions) error {
		if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
			return err
		}
		return opts.OnStop(ctx, coretelegram.Runtime{})
	}

	done := make(chan error, 1)
	go func() { done <- Run(baseOptions(app, run)) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if !stopped.Load() {
		t.Fatal("background task was not cancelled")
	}
	if !app.closed.Load() {
		t.Fatal("app was not closed")
	}
}

func TestRunTaskFailureStopsBot(t *testing.T) {
	boom := errors.New("listen: address in use")
	app := &fakeApp{tasks: []Task{{
		Name: "metrics",
		Run:  func(context.Context) error { return boom },
	}}}
	run := func(ctx context.Context, _ coretelegram.RunOptions) error {
		<-ctx.Done()
		return nil
	}
	err := Run(baseOptions(app, run))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("LESSONBOT_CONFIG", "/etc/env.yaml")
	if p, _ := ResolveConfigPath("flag.yaml", "LESSONBOT_CONFIG", "d.yaml"); p != "flag.yaml" {
		t.Fatalf("explicit path lost: %q", p)
	}
	if p, _ := ResolveConfigPath("", "LESSONBOT_CONFIG", "d.yaml"); p != "/etc/env.yaml" {
		t.Fatalf("env path lost: %q", p)
	}
	t.Setenv("LESSONBOT_CONFIG", "")
	if p, _ := ResolveConfigPath("", "LESSONBOT_CONFIG", "d.yaml"); p != "d.yaml" {
		t.Fatalf("default lost: %q", p)
	}
	if _, err := ResolveConfigPath("", "LESSONBOT_CONFIG", ""); err == nil {
		t.Fatal("expected error")
	}
}

package cmd

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/jobscout/internal/config"
)

func runServeAsync(ctx context.Context, a App, warm bool) <-chan error {
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, a, warm) }()
	return done
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not return after cancellation")
		return nil
	}
}

func TestRunServeSweepsBeforeListening(t *testing.T) {
	t.Parallel()

	fake := &fakeApp{removed: 4}
	ctx, cancel := context.WithCancel(context.Background())
	done := runServeAsync(ctx, fake, false)

	time.Sleep(100 * time.Millisecond)
	cancel()

	require.NoError(t, waitServe(t, done))
	assert.EqualValues(t, 1, fake.sweeps.Load())
	assert.EqualValues(t, 1, fake.handlerAt.Load())
	assert.Zero(t, fake.warms.Load())
}

func TestRunServeSweepErrorOnlyWarns(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	fake := &fakeApp{sweepErr: errors.New("database is locked"), logger: zap.New(core)}
	ctx, cancel := context.WithCancel(context.Background())
	done := runServeAsync(ctx, fake, false)

	time.Sleep(100 * time.Millisecond)
	cancel()

	require.NoError(t, waitServe(t, done))
	warnings := logs.FilterMessage("startup cache cleanup failed").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
}

func TestRunServeWarmsProxies(t *testing.T) {
	t.Parallel()

	fake := &fakeApp{}
	ctx, cancel := context.WithCancel(context.Background())
	done := runServeAsync(ctx, fake, true)

	require.Eventually(t, func() bool { return fake.warms.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, waitServe(t, done))
}

func TestRunServeReportsListenErrors(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	fake := &fakeApp{cfg: config.Config{Server: config.ServerConfig{Port: ln.Addr().(*net.TCPAddr).Port}}}
	err = runServe(context.Background(), fake, false)
	require.ErrorContains(t, err, "http server")
}

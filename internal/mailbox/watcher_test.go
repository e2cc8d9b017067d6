package mailbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nulzo/model-bridge/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func startWatcher(t *testing.T, mb *Mailbox) context.CancelFunc {
	t.Helper()
	return startWatcherSettling(t, mb, 10*time.Millisecond)
}

func startWatcherSettling(t *testing.T, mb *Mailbox, settle time.Duration) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(mb, settle, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return cancel
}

func TestWatcher_EventTriggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mb, err := New(dir, echo(nil), zap.NewNop())
	require.NoError(t, err)
	startWatcher(t, mb)

	client := NewClient(dir, 10*time.Millisecond)
	require.NoError(t, client.Submit(&api.GenerationRequest{Service: api.Claude, Prompt: "from the game"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	desc, err := client.AwaitResponse(ctx)
	require.NoError(t, err)

	assert.True(t, desc.Success)
	assert.Equal(t, "echo: from the game", desc.Response)
	requireNoRequest(t, dir)

	_, err = os.Stat(filepath.Join(dir, ResponseFile))
	assert.True(t, os.IsNotExist(err), "AwaitResponse consumes the response")
}

func TestWatcher_PlainWriteTriggers(t *testing.T) {
	dir := t.TempDir()
	mb, err := New(dir, echo(nil), zap.NewNop())
	require.NoError(t, err)
	startWatcher(t, mb)

	writeRequest(t, dir, `{"service":"openai","prompt":"direct"}`)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, RequestFile))
		return os.IsNotExist(err)
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "echo: direct", readResponse(t, dir).Response)
}

func TestWatcher_WaitsForSlowWriter(t *testing.T) {
	dir := t.TempDir()
	mb, err := New(dir, echo(nil), zap.NewNop())
	require.NoError(t, err)
	startWatcherSettling(t, mb, 200*time.Millisecond)

	f, err := os.Create(filepath.Join(dir, RequestFile))
	require.NoError(t, err)
	_, err = f.WriteString(`{"service":"openai",`)
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	time.Sleep(40 * time.Millisecond)
	_, err = f.WriteString(`"prompt":"slow"}`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// the request is removed only after the response is in place
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, RequestFile))
		return os.IsNotExist(err)
	}, 5*time.Second, 20*time.Millisecond)

	desc := readResponse(t, dir)
	assert.True(t, desc.Success, desc.Error)
	assert.Equal(t, "echo: slow", desc.Response)
}

func TestRecoverWhenReady_AfterWatcherStarts(t *testing.T) {
	dir := t.TempDir()
	mb, err := New(dir, echo(nil), zap.NewNop())
	require.NoError(t, err)
	writeRequest(t, dir, `{"service":"ollama","prompt":"left over"}`)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w := NewWatcher(mb, 10*time.Millisecond, zap.NewNop())

	recovered := make(chan error, 1)
	go func() { recovered <- mb.RecoverWhenReady(ctx, w.Ready()) }()

	select {
	case <-recovered:
		t.Fatal("recovery ran before the watcher was ready")
	case <-time.After(50 * time.Millisecond):
	}
	_, err = os.Stat(filepath.Join(dir, RequestFile))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-recovered:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("recovery never ran")
	}
	assert.Equal(t, "echo: left over", readResponse(t, dir).Response)
	requireNoRequest(t, dir)

	cancel()
	assert.NoError(t, <-done)
}

func TestRecoverWhenReady_CanceledBeforeReady(t *testing.T) {
	dir := t.TempDir()
	mb, err := New(dir, echo(nil), zap.NewNop())
	require.NoError(t, err)
	writeRequest(t, dir, `{"service":"ollama","prompt":"left over"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, mb.RecoverWhenReady(ctx, make(chan struct{})))

	_, err = os.Stat(filepath.Join(dir, RequestFile))
	assert.NoError(t, err, "request stays for the next start")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	mb, err := New(dir, echo(nil), zap.NewNop())
	require.NoError(t, err)
	startWatcher(t, mb)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte(`{}`), 0o644))
	time.Sleep(100 * time.Millisecond)

	_, err = os.Stat(filepath.Join(dir, ResponseFile))
	assert.True(t, os.IsNotExist(err))
}

func TestWatcher_MissingDirectory(t *testing.T) {
	dir := t.TempDir()
	mb, err := New(dir, echo(nil), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	err = NewWatcher(mb, 0, zap.NewNop()).Run(context.Background())
	var ioErr *IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestClient_SubmitClearsStaleResponse(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ResponseFile), []byte(`{"success":true,"response":"old"}`), 0o644))

	client := NewClient(dir, 0)
	require.NoError(t, client.Submit(&api.GenerationRequest{Service: api.Ollama, Prompt: "new"}))

	_, err := os.Stat(filepath.Join(dir, ResponseFile))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, RequestFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"service":"ollama","prompt":"new"}`, string(data))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.AwaitResponse(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/seabridge/internal/jobs"
)

type fakePoller struct {
	resumed int
	closed  bool
	err     error
}

func (f *fakePoller) Resume(context.Context) (int, error) {
	return f.resumed, f.err
}

func (f *fakePoller) Close(context.Context) error {
	f.closed = true
	return nil
}

type fakeHTTP struct {
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func TestRunWithComponents_ServesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobsPoller := &fakePoller{resumed: 2}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, "127.0.0.1:0", jobsPoller, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(time.Second):
		t.Fatal("ListenAndServe was not called")
	}

	cancel()
	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runWithComponents did not return")
	}
	assert.True(t, jobsPoller.closed)
}

func TestRunWithComponents_ResumeFailure(t *testing.T) {
	httpSrv := newFakeHTTP()
	err := runWithComponents(context.Background(), "127.0.0.1:0", &fakePoller{err: errors.New("db locked")}, httpSrv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")

	select {
	case <-httpSrv.listenCalled:
		t.Fatal("server must not start when resume fails")
	default:
	}
}

type scriptedPoller struct {
	statuses []jobs.Status
	calls    int
}

func (p *scriptedPoller) PollJobStatus(context.Context, string) (*jobs.DocumentJob, error) {
	status := p.statuses[p.calls]
	if p.calls < len(p.statuses)-1 {
		p.calls++
	}
	return &jobs.DocumentJob{ID: "job-1", Status: status}, nil
}

func TestWaitForJob(t *testing.T) {
	p := &scriptedPoller{statuses: []jobs.Status{jobs.StatusSubmitted, jobs.StatusInProgress, jobs.StatusCompleted}}

	job, err := waitForJob(context.Background(), p, "job-1", false, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSubmitted, job.Status)

	job, err = waitForJob(context.Background(), p, "job-1", true, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
}

func TestReadInput(t *testing.T) {
	cmd := newTranslateCmd()

	text, err := readInput(cmd, []string{"hello", "there"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	cmd.SetIn(strings.NewReader("  from stdin \n"))
	text, err = readInput(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)

	cmd.SetIn(strings.NewReader("   "))
	_, err = readInput(cmd, nil)
	assert.Error(t, err)
}

func TestRootCmd_Version(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "seabridge version dev")
}

func TestRootCmd_SmsWithoutTranslation(t *testing.T) {
	t.Setenv("SETTINGS_FILE", filepath.Join(t.TempDir(), "absent.json"))
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "sms", "--max-length", "20", "Bus leaves at eight. Bring lunch."})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"text": "(1/3) Bus leaves at"`)
	assert.Contains(t, out.String(), "lunch.")
}

package extraction

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/log"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Level: log.LevelError, Format: log.FormatText, Output: io.Discard})
}

func TestHTTPExtractorExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, "doc://design-notes.pdf", r.URL.Query().Get("ref"))
		w.Write([]byte("the service must support offline sync"))
	}))
	defer server.Close()

	extractor := NewHTTPExtractor(server.URL, 5*time.Second)

	text, err := extractor.Extract(context.Background(), "doc://design-notes.pdf")
	require.NoError(t, err)
	assert.Equal(t, "the service must support offline sync", text)
}

func TestHTTPExtractorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	extractor := NewHTTPExtractor(server.URL, 5*time.Second)

	_, err := extractor.Extract(context.Background(), "doc://broken.pdf")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeServiceBadResponse, errors.CodeOf(err))
}

type stubExtractor struct {
	text  string
	err   error
	delay time.Duration
}

func (s *stubExtractor) Extract(ctx context.Context, ref string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func TestDispatcherDeliversResult(t *testing.T) {
	dispatcher := NewDispatcher(&stubExtractor{text: "extracted body"}, time.Second, testLogger())

	var mu sync.Mutex
	var gotParticipant, gotRef, gotText string
	var gotErr error

	dispatcher.Dispatch("alice", "doc://spec.pdf", func(ctx context.Context, participantID, ref, enrichment string, err error) {
		mu.Lock()
		defer mu.Unlock()
		gotParticipant, gotRef, gotText, gotErr = participantID, ref, enrichment, err
	})
	dispatcher.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "alice", gotParticipant)
	assert.Equal(t, "doc://spec.pdf", gotRef)
	assert.Equal(t, "extracted body", gotText)
	assert.NoError(t, gotErr)
}

func TestDispatcherDeliversFailure(t *testing.T) {
	failure := errors.New(errors.ErrCodeServiceUnavailable, "extraction service down")
	dispatcher := NewDispatcher(&stubExtractor{err: failure}, time.Second, testLogger())

	done := make(chan error, 1)
	dispatcher.Dispatch("bob", "doc://gone.pdf", func(ctx context.Context, participantID, ref, enrichment string, err error) {
		done <- err
	})

	select {
	case err := <-done:
		assert.Equal(t, errors.ErrCodeServiceUnavailable, errors.CodeOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never delivered the result")
	}
}

func TestDispatcherDoesNotBlockCaller(t *testing.T) {
	dispatcher := NewDispatcher(&stubExtractor{text: "slow", delay: 200 * time.Millisecond}, time.Second, testLogger())

	start := time.Now()
	dispatcher.Dispatch("carol", "doc://big.pdf", func(ctx context.Context, participantID, ref, enrichment string, err error) {})
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	dispatcher.Wait()
}

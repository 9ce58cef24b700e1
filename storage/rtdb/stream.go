package rtdb

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-checker/core/reconcile"
	"github.com/trezcool/masomo-checker/storage/tree"
)

const maxEventSize = 16 << 20

// Server sent event types
const (
	eventPut         = "put"
	eventPatch       = "patch"
	eventKeepAlive   = "keep-alive"
	eventCancel      = "cancel"
	eventAuthRevoked = "auth_revoked"
)

var errStreamClosed = errors.New("stream closed by server")

type (
	// subscription mirrors the subtree at path from the event stream.
	// Deliveries go through a hub so that bursts of events are coalesced.
	subscription struct {
		client   *Client
		path     string
		onChange func(tree.Node)
		cancel   context.CancelFunc
		done     chan struct{}

		mu     sync.Mutex
		cache  tree.Node
		hub    *tree.Hub
		synced bool
		closed bool
	}

	event struct {
		Path string      `json:"path"`
		Data interface{} `json:"data"`
	}
)

// Subscribe streams changes at path. The first delivery holds the whole subtree;
// later ones follow each put or patch event. The stream reconnects on failures.
func (c *Client) Subscribe(ctx context.Context, path string, onChange func(payload map[string]interface{})) (reconcile.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &subscription{
		client:   c,
		path:     path,
		onChange: onChange,
		cancel:   cancel,
		done:     make(chan struct{}),
		cache:    make(tree.Node),
		hub:      tree.NewHub(),
	}

	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go sub.run(streamCtx)
	return sub, nil
}

// Cancel closes the stream. It may be called more than once.
func (s *subscription) Cancel() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.hub.Close()
	<-s.done

	s.client.mu.Lock()
	delete(s.client.subs, s)
	s.client.mu.Unlock()
	return nil
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second

	for {
		connected, err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		if s.client.log != nil {
			s.client.log.Warn(fmt.Sprintf("rtdb stream at %q interrupted, retrying in %s: %v", s.path, wait, err), err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// stream reads events until the connection drops. connected reports whether the server accepted it.
func (s *subscription) stream(ctx context.Context) (connected bool, err error) {
	params, err := s.client.authParams()
	if err != nil {
		return false, err
	}
	q := make(url.Values)
	for k, v := range params {
		q.Set(k, v)
	}
	u := s.client.nodeURL(s.path)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, errors.Wrap(err, "building stream request")
	}
	req.Header.Set("Accept", "text/event-stream")

	res, err := s.client.stream.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "opening stream")
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return false, &APIError{StatusCode: res.StatusCode, Message: "opening stream"}
	}

	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 64<<10), maxEventSize)
	var name string
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(line) == 0: // dispatch
			if name != "" {
				if err := s.handle(name, data.Bytes()); err != nil {
					return true, err
				}
			}
			name = ""
			data.Reset()
		case bytes.HasPrefix(line, []byte("event:")):
			name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimSpace(line[len("data:"):]))
		}
	}
	if err := scanner.Err(); err != nil {
		return true, errors.Wrap(err, "reading stream")
	}
	return true, errStreamClosed
}

func (s *subscription) handle(name string, data []byte) error {
	switch name {
	case eventKeepAlive:
		return nil
	case eventCancel:
		return errors.Errorf("stream cancelled by server: %s", data)
	case eventAuthRevoked:
		return errors.New("stream auth revoked")
	case eventPut, eventPatch:
	default:
		return nil
	}

	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return errors.Wrapf(err, "decoding %s event", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if name == eventPut {
		tree.Set(s.cache, ev.Path, ev.Data)
	} else if values, ok := ev.Data.(map[string]interface{}); ok {
		for k, v := range values {
			tree.Set(s.cache, tree.Join(ev.Path, k), v)
		}
	}

	if !s.synced {
		// the first put carries the whole subtree
		s.synced = true
		s.hub.Subscribe("", s.snapshot, s.onChange)
		return nil
	}
	s.hub.Publish(ev.Path)
	return nil
}

func (s *subscription) snapshot() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cache) == 0 {
		return nil
	}
	return tree.Copy(s.cache)
}

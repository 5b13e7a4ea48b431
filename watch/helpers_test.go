package watch_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fwojciec/stockwatch"
	"github.com/fwojciec/stockwatch/mock"
	"github.com/fwojciec/stockwatch/watch"
	"golang.org/x/time/rate"
)

// memStore is an in-memory TargetService for tests.
type memStore struct {
	mu      sync.Mutex
	targets []*stockwatch.Target
	seq     int
}

func newMemStore(urls ...string) (*memStore, *mock.TargetService) {
	s := &memStore{}
	for _, u := range urls {
		s.seq++
		s.targets = append(s.targets, &stockwatch.Target{
			ID:   fmt.Sprintf("t%d", s.seq),
			Name: fmt.Sprintf("target %d", s.seq),
			URL:  u,
		})
	}
	return s, &mock.TargetService{
		CreateTargetFn:   s.create,
		FindTargetByIDFn: s.findByID,
		FindTargetsFn:    s.find,
		DeleteTargetFn:   s.delete,
	}
}

func (s *memStore) create(_ context.Context, t *stockwatch.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}
	for _, existing := range s.targets {
		if existing.URL == t.URL {
			return stockwatch.Errorf(stockwatch.ECONFLICT, "duplicate")
		}
	}
	s.seq++
	t.ID = fmt.Sprintf("t%d", s.seq)
	t.CreatedAt = time.Now()
	s.targets = append(s.targets, t)
	return nil
}

func (s *memStore) findByID(_ context.Context, id string) (*stockwatch.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.targets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, stockwatch.Errorf(stockwatch.ENOTFOUND, "target not found")
}

func (s *memStore) find(_ context.Context, filter stockwatch.TargetFilter) ([]*stockwatch.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*stockwatch.Target{}
	for _, t := range s.targets {
		if filter.URL != nil && t.URL != *filter.URL {
			continue
		}
		if filter.ID != nil && t.ID != *filter.ID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *memStore) delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.targets {
		if t.ID == id {
			s.targets = append(s.targets[:i:i], s.targets[i+1:]...)
			return nil
		}
	}
	return stockwatch.Errorf(stockwatch.ENOTFOUND, "target not found")
}

// recorder collects delivered notifications.
type recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorder) notifier() *mock.Notifier {
	return &mock.Notifier{
		NotifyFn: func(_ context.Context, text string) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, text)
			return nil
		},
	}
}

func (r *recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// newTestDispatcher returns an unthrottled Dispatcher delivering to rec.
func newTestDispatcher(rec *recorder) *watch.Dispatcher {
	return watch.NewDispatcher(rec.notifier(),
		watch.WithSendRate(rate.Inf, 1),
		watch.WithSendRetryDelays([]time.Duration{}),
	)
}

// pageFetcher serves fixed content per URL. URLs mapped to an error fail.
func pageFetcher(pages map[string]any) *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(_ context.Context, url string) (string, error) {
			switch v := pages[url].(type) {
			case string:
				return v, nil
			case error:
				return "", v
			default:
				return "", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "HTTP 404")
			}
		},
	}
}

// keywordClassifier reports unavailable when content is "sold out".
func keywordClassifier() *mock.Classifier {
	return &mock.Classifier{
		ClassifyFn: func(content string) (bool, error) {
			return content != "sold out", nil
		},
	}
}

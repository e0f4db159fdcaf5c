package registry

import (
	"context"
	"sync"
)

// memDocStore is an in-memory DocumentStore with write counting, used
// to observe idempotence
type memDocStore struct {
	mu   sync.Mutex
	docs map[string]map[string][]byte
	subs map[string][]chan string

	puts    int
	deletes int
}

func newMemDocStore() *memDocStore {
	return &memDocStore{
		docs: make(map[string]map[string][]byte),
		subs: make(map[string][]chan string),
	}
}

func (s *memDocStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.docs[collection][key]
	if !ok {
		return nil, nil
	}
	return body, nil
}

func (s *memDocStore) Put(ctx context.Context, collection, key string, body []byte) error {
	s.mu.Lock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string][]byte)
	}
	s.docs[collection][key] = body
	s.puts++
	subs := append([]chan string(nil), s.subs[collection]...)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- key:
		default:
		}
	}
	return nil
}

func (s *memDocStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	delete(s.docs[collection], key)
	s.deletes++
	subs := append([]chan string(nil), s.subs[collection]...)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- key:
		default:
		}
	}
	return nil
}

func (s *memDocStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.docs[collection]))
	for key, body := range s.docs[collection] {
		out[key] = body
	}
	return out, nil
}

func (s *memDocStore) Subscribe(collection string) <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan string, 32)
	s.subs[collection] = append(s.subs[collection], ch)
	return ch
}

func (s *memDocStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	m     sync.Mutex
	saved map[string]*Session
	err   error
	gets  atomic.Int32
	delay time.Duration
}

func newMockRepository() *mockRepository {
	return &mockRepository{saved: make(map[string]*Session)}
}

func (m *mockRepository) Get(_ context.Context, id string) (*Session, error) {
	m.gets.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.saved[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *mockRepository) Upsert(_ context.Context, s *Session) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved[s.ID] = s.Clone()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.saved, id)
	return m.err
}

type mockCache struct {
	m       sync.Mutex
	entries map[string]*Session
	getErr  error
	setErr  error
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*Session)}
}

func (c *mockCache) Get(_ context.Context, id string) (*Session, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	s, ok := c.entries[id]
	if !ok {
		return nil, ErrCacheMiss
	}
	return s.Clone(), nil
}

func (c *mockCache) Set(_ context.Context, s *Session) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[s.ID] = s.Clone()
	return nil
}

func (c *mockCache) SetIfAbsent(_ context.Context, s *Session) error {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.entries[s.ID]; !ok {
		c.entries[s.ID] = s.Clone()
	}
	return nil
}

func (c *mockCache) Delete(_ context.Context, id string) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.deletes++
	delete(c.entries, id)
	return nil
}

// gatedRepository holds every Get after the read until release is closed.
type gatedRepository struct {
	*mockRepository
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRepository(repo *mockRepository) *gatedRepository {
	return &gatedRepository{
		mockRepository: repo,
		reached:        make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (g *gatedRepository) Get(ctx context.Context, id string) (*Session, error) {
	s, err := g.mockRepository.Get(ctx, id)
	g.once.Do(func() { close(g.reached) })
	<-g.release
	return s, err
}

func (g *gatedRepository) waitReached(t *testing.T) {
	t.Helper()
	select {
	case <-g.reached:
	case <-time.After(2 * time.Second):
		t.Fatal("repository was never read")
	}
}

func (c *mockCache) has(id string) bool {
	c.m.Lock()
	defer c.m.Unlock()
	_, ok := c.entries[id]
	return ok
}

func TestLoad_BlankIDCreatesSession(t *testing.T) {
	svc := NewService(newMockRepository(), newMockCache(), nil)

	s, err := svc.Load(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Empty(t, s.Lines)
}

func TestLoad_UnknownIDCreatesSessionWithThatID(t *testing.T) {
	cache := newMockCache()
	svc := NewService(newMockRepository(), cache, nil)

	s, err := svc.Load(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.ID)
	assert.False(t, cache.has("fresh"), "unsaved sessions are not cached")
}

func TestLoad_ReadsThroughCache(t *testing.T) {
	repo := newMockRepository()
	cache := newMockCache()
	svc := NewService(repo, cache, nil)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleSession("s1")))

	s, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, s.Lines, 2)
	assert.True(t, cache.has("s1"))

	_, err = svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.gets.Load())
}

func TestLoad_CacheErrorFallsBackToRepo(t *testing.T) {
	repo := newMockRepository()
	cache := newMockCache()
	cache.getErr = errors.New("connection refused")
	svc := NewService(repo, cache, nil)
	require.NoError(t, repo.Upsert(context.Background(), sampleSession("s1")))

	s, err := svc.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
}

func TestLoad_RepoError(t *testing.T) {
	repo := newMockRepository()
	repo.err = errors.New("mongo down")
	svc := NewService(repo, newMockCache(), nil)

	_, err := svc.Load(context.Background(), "s1")
	assert.EqualError(t, err, "mongo down")
}

func TestLoad_ConcurrentMissesHitRepoOnce(t *testing.T) {
	repo := newMockRepository()
	repo.delay = 50 * time.Millisecond
	require.NoError(t, repo.Upsert(context.Background(), sampleSession("s1")))
	svc := NewService(repo, newMockCache(), nil)

	var wg sync.WaitGroup
	results := make([]*Session, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := svc.Load(context.Background(), "s1")
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), repo.gets.Load())
	results[0].Lines[0].Quantity = 42
	assert.Equal(t, 2, results[1].Lines[0].Quantity, "every caller owns its copy")
}

func TestSave_WritesThroughCache(t *testing.T) {
	repo := newMockRepository()
	cache := newMockCache()
	svc := NewService(repo, cache, nil)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleSession("s1")))

	s, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	require.True(t, cache.has("s1"))

	s.Lines = s.Lines[:1]
	require.NoError(t, svc.Save(ctx, s))
	cached, err := cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, cached.Lines, 1)

	reloaded, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, reloaded.Lines, 1)
	assert.Equal(t, int32(1), repo.gets.Load())
}

func TestSave_CacheSetFailureDropsEntry(t *testing.T) {
	repo := newMockRepository()
	cache := newMockCache()
	svc := NewService(repo, cache, nil)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleSession("s1")))
	_, err := svc.Load(ctx, "s1")
	require.NoError(t, err)

	cache.setErr = errors.New("connection reset")
	updated := sampleSession("s1")
	updated.Lines = updated.Lines[:1]
	require.NoError(t, svc.Save(ctx, updated))
	assert.False(t, cache.has("s1"))

	reloaded, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, reloaded.Lines, 1)
}

func TestLoad_SaveDuringRepoReadIsNotOverwritten(t *testing.T) {
	inner := newMockRepository()
	ctx := context.Background()
	empty := sampleSession("s1")
	empty.Lines = nil
	require.NoError(t, inner.Upsert(ctx, empty))
	repo := newGatedRepository(inner)
	cache := newMockCache()
	svc := NewService(repo, cache, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Load(ctx, "s1")
		done <- err
	}()
	repo.waitReached(t)

	updated := sampleSession("s1")
	updated.Lines = updated.Lines[:1]
	require.NoError(t, svc.Save(ctx, updated))
	close(repo.release)
	require.NoError(t, <-done)

	stored, err := inner.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)

	got, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Lines, 1)
}

func TestLoad_CancelledCallerDoesNotFailOthers(t *testing.T) {
	inner := newMockRepository()
	require.NoError(t, inner.Upsert(context.Background(), sampleSession("s1")))
	repo := newGatedRepository(inner)
	svc := NewService(repo, newMockCache(), nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Load(firstCtx, "s1")
		firstDone <- err
	}()
	repo.waitReached(t)

	type result struct {
		s   *Session
		err error
	}
	secondDone := make(chan result, 1)
	go func() {
		s, err := svc.Load(context.Background(), "s1")
		secondDone <- result{s, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(repo.release)
	second := <-secondDone
	require.NoError(t, second.err)
	assert.Len(t, second.s.Lines, 2)
}

func TestSave_RepoErrorKeepsCache(t *testing.T) {
	repo := newMockRepository()
	cache := newMockCache()
	svc := NewService(repo, cache, nil)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleSession("s1")))
	_, err := svc.Load(ctx, "s1")
	require.NoError(t, err)

	repo.err = errors.New("write failed")
	assert.Error(t, svc.Save(ctx, sampleSession("s1")))
	assert.Zero(t, cache.deletes)
}

func TestDelete(t *testing.T) {
	repo := newMockRepository()
	cache := newMockCache()
	svc := NewService(repo, cache, nil)
	ctx := context.Background()
	require.NoError(t, svc.Save(ctx, sampleSession("s1")))

	require.NoError(t, svc.Delete(ctx, "s1"))
	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	cacheOpTimeout = time.Second
	loadTimeout    = 5 * time.Second
)

// Service loads and saves sessions, reading through the cache.
type Service struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group // collapses concurrent misses for one id
	log   *zap.Logger
	now   func() time.Time
}

func NewService(repo Repository, cache Cache, log *zap.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Load returns the session with the given id, or a new empty one when the id
// is unknown or blank. The result is owned by the caller.
func (s *Service) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return New(NewID(), s.now()), nil
	}

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	ch := s.sfg.DoChan(id, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.load(loadCtx, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session).Clone(), nil
	}
}

func (s *Service) load(ctx context.Context, id string) (*Session, error) {
	sess, err := s.cache.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn("session cache get failed", zap.String("session_id", id), zap.Error(err))
	}

	sess, err = s.repo.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return New(id, s.now()), nil
	}
	if err != nil {
		return nil, err
	}

	// Save writes through, so an entry present by now is at least as new as
	// what was just read.
	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := s.cache.SetIfAbsent(cacheCtx, sess); err != nil {
		s.log.Warn("session cache set failed", zap.String("session_id", id), zap.Error(err))
	}
	return sess, nil
}

func (s *Service) Save(ctx context.Context, sess *Session) error {
	if err := s.repo.Upsert(ctx, sess); err != nil {
		s.log.Error("session save failed", zap.String("session_id", sess.ID), zap.Error(err))
		return err
	}
	s.writeThrough(sess)
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.Error("session delete failed", zap.String("session_id", id), zap.Error(err))
		return err
	}
	s.invalidate(id)
	return nil
}

// writeThrough replaces the cached copy with sess. When that fails the entry
// is dropped instead so the next Load goes to the repository.
func (s *Service) writeThrough(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := s.cache.Set(ctx, sess); err != nil {
		s.log.Warn("session cache set failed", zap.String("session_id", sess.ID), zap.Error(err))
		s.invalidate(sess.ID)
	}
}

func (s *Service) invalidate(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn("session cache invalidate failed", zap.String("session_id", id), zap.Error(err))
	}
}

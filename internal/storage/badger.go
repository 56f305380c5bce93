package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"clicktracker/internal/domain"
)

// linksKey is the single key holding the serialized registry.
var linksKey = []byte("shortened_urls")

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db       *badger.DB
	log      logrus.FieldLogger
	inMemory bool
}

// NewBadgerRepository opens (or creates) an on-disk BadgerDB at dbPath.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	return openBadger(opts, dbPath, logger)
}

// NewInMemoryRepository opens a BadgerDB that keeps everything in memory.
// Nothing survives Close; useful for tests and throwaway runs.
func NewInMemoryRepository(logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	return openBadger(opts, "memory", logger)
}

func openBadger(opts badger.Options, location string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", location, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", location)

	return &BadgerRepository{
		db:       db,
		log:      logger.WithField("component", "repository"),
		inMemory: opts.InMemory,
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	err := r.db.Close()
	if err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// SaveLinks serializes the whole snapshot and writes it under one key.
func (r *BadgerRepository) SaveLinks(ctx context.Context, links []domain.Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := r.log.WithField("link_count", len(links))

	if links == nil {
		links = []domain.Link{}
	}
	blob, err := json.Marshal(links)
	if err != nil {
		log.WithError(err).Error("Failed to marshal links to JSON")
		return fmt.Errorf("failed to marshal links: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(linksKey, blob))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save links to BadgerDB")
		return fmt.Errorf("failed to save links: %w", err)
	}

	log.WithField("bytes", len(blob)).Debug("Links snapshot saved")
	return nil
}

// LoadLinks reads the snapshot written by the last SaveLinks.
func (r *BadgerRepository) LoadLinks(ctx context.Context) ([]domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	links := []domain.Link{}
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(linksKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			// val is only valid inside the callback; Unmarshal copies what it needs.
			if err := json.Unmarshal(val, &links); err != nil {
				return fmt.Errorf("failed to unmarshal links data for key %s: %w", string(linksKey), err)
			}
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		r.log.Info("No stored links found, starting empty")
		return []domain.Link{}, nil
	}
	if err != nil {
		r.log.WithError(err).Error("Failed to load links from BadgerDB")
		return nil, fmt.Errorf("failed to load links: %w", err)
	}

	for i := range links {
		if links[i].Clicks == nil {
			links[i].Clicks = []domain.Click{}
		}
	}

	r.log.WithField("link_count", len(links)).Info("Links loaded successfully")
	return links, nil
}

// RunGC periodically reclaims value log space left behind by snapshot
// rewrites. It blocks until ctx is cancelled.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	if r.inMemory || interval <= 0 {
		r.log.Debug("BadgerDB GC disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Info("BadgerDB GC completed successfully")
			case errors.Is(err, badger.ErrNoRewrite):
				r.log.Debug("BadgerDB GC: No rewrite needed")
			case errors.Is(err, badger.ErrDBClosed):
				r.log.Info("Stopping BadgerDB GC routine, database closed")
				return
			default:
				r.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			r.log.Info("Stopping BadgerDB GC routine due to context cancellation")
			return
		}
	}
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}

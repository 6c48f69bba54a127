package badger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mediamind/core"
	"github.com/poiesic/mediamind/storage"
)

// pollInterval bounds how long a subscriber waits before re-scanning the
// topic log when the publisher lives in another process and in-process
// notification never fires.
const pollInterval = 100 * time.Millisecond

// Bus implements storage.MessageBus as an append-only log per topic in
// BadgerDB. Messages are keyed by a durable sequence number, consumer
// groups persist their committed position, and redelivery falls out of
// re-reading the log from an uncommitted position.
type Bus struct {
	backend *Backend
	logger  *slog.Logger

	mu     sync.Mutex
	seqs   map[string]*badger.Sequence
	notify chan struct{}
	closed bool
}

var _ storage.MessageBus = (*Bus)(nil)

// NewBus creates a message bus on the given backend.
//
// Returns the storage.MessageBus interface to enforce abstraction.
func NewBus(backend *Backend) (storage.MessageBus, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &Bus{
		backend: backend,
		logger:  slog.Default().With("component", "bus"),
		seqs:    make(map[string]*badger.Sequence),
		notify:  make(chan struct{}),
	}, nil
}

// Publish appends a message to a topic.
func (b *Bus) Publish(ctx context.Context, topic string, msg *core.Message) error {
	seq, err := b.nextSeq("seq:" + topic)
	if err != nil {
		return err
	}
	err = b.backend.WithUpdate(func(tx *badger.Txn) error {
		return tx.Set(makeTopicKey(topic, seq), storage.MarshalMessage(msg))
	})
	if err != nil {
		return err
	}
	b.logger.Debug("message published", "topic", topic, "job", msg.JobID, "seq", seq, "attempt", msg.Attempt)
	b.wake()
	return nil
}

// Subscribe returns a restartable subscription for a consumer group.
func (b *Bus) Subscribe(ctx context.Context, topic, group string) (storage.Subscription, error) {
	pos, err := b.loadOffset(topic, group)
	if err != nil {
		return nil, err
	}
	return &subscription{
		bus:   b,
		topic: topic,
		group: group,
		pos:   pos,
	}, nil
}

// PublishDeadLetter records a message that exhausted its retry budget.
func (b *Bus) PublishDeadLetter(ctx context.Context, dl *core.DeadLetter) error {
	seq, err := b.nextSeq(deadLetterSeq)
	if err != nil {
		return err
	}
	b.logger.Warn("dead letter recorded",
		"job", dl.JobID, "stage", dl.Stage, "kind", dl.ErrorKind, "attempts", dl.Attempts)
	return b.backend.WithUpdate(func(tx *badger.Txn) error {
		return tx.Set(makeDeadLetterKey(seq), storage.MarshalDeadLetter(dl))
	})
}

// DeadLetters lists recorded dead letters in arrival order.
func (b *Bus) DeadLetters(ctx context.Context) ([]*core.DeadLetter, error) {
	var letters []*core.DeadLetter
	err := b.backend.WithView(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(deadLetterPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				dl, err := storage.UnmarshalDeadLetter(val)
				if err != nil {
					return err
				}
				letters = append(letters, dl)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return letters, nil
}

// Close releases the bus's sequences. The shared backend is closed by its owner.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, seq := range b.seqs {
		seq.Release()
	}
	close(b.notify)
	return nil
}

func (b *Bus) nextSeq(name string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, storage.ErrStorageClosed
	}
	seq, ok := b.seqs[name]
	if !ok {
		var err error
		seq, err = b.backend.GetSequence(name)
		if err != nil {
			return 0, err
		}
		b.seqs[name] = seq
	}
	return seq.Next()
}

// wake signals waiting subscribers that a new message may be available.
func (b *Bus) wake() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	close(b.notify)
	b.notify = make(chan struct{})
}

func (b *Bus) notifyChan() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notify
}

func (b *Bus) loadOffset(topic, group string) (uint64, error) {
	var pos uint64
	err := b.backend.WithView(func(tx *badger.Txn) error {
		item, err := tx.Get(makeOffsetKey(topic, group))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			off, err := storage.UnmarshalOffset(val)
			if err != nil {
				return err
			}
			pos = off
			return nil
		})
	})
	return pos, err
}

func (b *Bus) storeOffset(topic, group string, pos uint64) error {
	return b.backend.WithUpdate(func(tx *badger.Txn) error {
		return tx.Set(makeOffsetKey(topic, group), storage.MarshalOffset(pos))
	})
}

// readFrom returns the first message in the topic log at or after pos.
// Sequence numbers may have gaps (badger sequences skip on restart), so
// the reader seeks rather than probing exact offsets.
func (b *Bus) readFrom(topic string, pos uint64) (*core.Message, uint64, bool, error) {
	var (
		msg   *core.Message
		seq   uint64
		found bool
	)
	err := b.backend.WithView(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTopicPrefix(topic)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		iter.Seek(makeTopicKey(topic, pos))
		if !iter.Valid() {
			return nil
		}
		item := iter.Item()
		seq = topicKeySeq(item.KeyCopy(nil), topic)
		return item.Value(func(val []byte) error {
			var err error
			msg, err = storage.UnmarshalMessage(val)
			if err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return nil, 0, false, err
	}
	return msg, seq, found, nil
}

// subscription is one consumer group's cursor into a topic. Next without a
// Commit redelivers the same message; Commit persists the advance so a
// restarted subscriber resumes after it.
type subscription struct {
	bus   *Bus
	topic string
	group string

	mu        sync.Mutex
	pos       uint64 // next sequence to read
	delivered uint64 // sequence of the message last returned by Next
	hasDeliv  bool
	closed    bool
}

var _ storage.Subscription = (*subscription)(nil)

// Next blocks until a message is available or ctx is done.
func (s *subscription) Next(ctx context.Context) (*core.Message, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, storage.ErrSubscriptionClosed
		}
		pos := s.pos
		s.mu.Unlock()

		notify := s.bus.notifyChan()

		msg, seq, found, err := s.bus.readFrom(s.topic, pos)
		if err != nil {
			return nil, err
		}
		if found {
			s.mu.Lock()
			s.delivered = seq
			s.hasDeliv = true
			s.mu.Unlock()
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-notify:
		case <-time.After(pollInterval):
		}
	}
}

// Commit advances the group's committed position past the last delivered
// message.
func (s *subscription) Commit(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasDeliv {
		s.mu.Unlock()
		return nil
	}
	next := s.delivered + 1
	s.pos = next
	s.hasDeliv = false
	s.mu.Unlock()

	return s.bus.storeOffset(s.topic, s.group, next)
}

// Close marks the subscription closed. The committed position survives.
func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

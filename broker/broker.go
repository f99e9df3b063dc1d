package broker

import (
	"sync/atomic"

	"github.com/chrispappas/golang-generics-set/set"
)

// Message is anything that can be fanned out to subscribers: frame events,
// connection status, etc. Name identifies the event kind and is what
// subscription filters match against.
type Message interface {
	Name() string
}

// Broker fans messages out from the ingest side to any number of observers
// (view subscriptions, the recorder, the metrics publisher). Subscriber
// channels are buffered and sends never block; a slow subscriber drops
// messages rather than stalling ingest.
type Broker struct {
	dropCount uint64 // needs 64-bit alignment

	subBuffer int

	stopCh    chan struct{}
	publishCh chan Message
	subCh     chan subRequest
	unsubCh   chan chan Message
}

type subRequest struct {
	ch chan Message
	// filter restricts delivery to the named event kinds; nil means all.
	filter set.Set[string]
}

func NewBroker(subBuffer int) *Broker {
	if subBuffer <= 0 {
		subBuffer = 1024
	}
	return &Broker{
		subBuffer: subBuffer,
		stopCh:    make(chan struct{}),
		publishCh: make(chan Message, 1),
		subCh:     make(chan subRequest, 1),
		unsubCh:   make(chan chan Message, 1),
	}
}

func (b *Broker) Start() {
	subs := map[chan Message]set.Set[string]{}
	for {
		select {
		case <-b.stopCh:
			return
		case req := <-b.subCh:
			subs[req.ch] = req.filter
		case msgCh := <-b.unsubCh:
			delete(subs, msgCh)
		case msg := <-b.publishCh:
			for msgCh, filter := range subs {
				if filter != nil && !filter.Has(msg.Name()) {
					continue
				}
				select {
				case msgCh <- msg:
				default:
					atomic.AddUint64(&b.dropCount, 1)
				}
			}
		}
	}
}

func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new observer. With no arguments it receives every
// message; with event names it receives only those kinds (the recorder, for
// example, only wants frames).
func (b *Broker) Subscribe(names ...string) chan Message {
	var filter set.Set[string]
	if len(names) > 0 {
		filter = set.FromSlice(names)
	}

	msgCh := make(chan Message, b.subBuffer)
	b.subCh <- subRequest{ch: msgCh, filter: filter}
	return msgCh
}

func (b *Broker) Unsubscribe(msgCh chan Message) {
	b.unsubCh <- msgCh
}

func (b *Broker) Publish(msg Message) {
	b.publishCh <- msg
}

// DropCount reports messages discarded because a subscriber's buffer was
// full.
func (b *Broker) DropCount() uint64 {
	return atomic.LoadUint64(&b.dropCount)
}

type Publisher interface {
	Publish(msg Message)
}

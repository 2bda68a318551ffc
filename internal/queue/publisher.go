package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"statusgate/internal/metrics"
	"statusgate/internal/models"
)

const DefaultBuffer = 1024

// Publisher forwards admission events to Redis from a single goroutine.
// Record never blocks the request path: when the buffer is full the event is
// dropped and counted.
type Publisher struct {
	client   redis.Cmdable
	key      string
	events   chan models.AdmissionEvent
	recorder metrics.Recorder
}

func NewPublisher(client redis.Cmdable, buffer int, recorder metrics.Recorder) *Publisher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &Publisher{
		client:   client,
		key:      EventsKey,
		events:   make(chan models.AdmissionEvent, buffer),
		recorder: recorder,
	}
}

func (p *Publisher) Record(e models.AdmissionEvent) {
	select {
	case p.events <- e:
	default:
		p.recorder.AuditDropped()
	}
}

// Run pushes buffered events until ctx is cancelled, then flushes what is
// left with a short deadline.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case e := <-p.events:
			p.push(ctx, e)
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case e := <-p.events:
			p.push(ctx, e)
		default:
			return
		}
	}
}

func (p *Publisher) push(ctx context.Context, e models.AdmissionEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("❌ AUDIT_ENCODE | id=%s err=%v", e.ID, err)
		return
	}
	if err := p.client.RPush(ctx, p.key, payload).Err(); err != nil {
		log.Printf("❌ AUDIT_PUBLISH | id=%s err=%v", e.ID, err)
		p.recorder.AuditDropped()
	}
}

package publisher

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	nc            *nats.Conn
	logSubjects   bool
	metrics       PublisherMetrics
	resultsPrefix string

	inflight sync.WaitGroup
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// RequestHandler turns one request payload into the response payload. A
// non-empty request id also publishes the response on the results subject.
type RequestHandler func(ctx context.Context, data []byte) (resp []byte, requestID string)

func NewNATSPublisher(url, resultsPrefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("itinerary-shaper"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, logSubjects: logSubjects, metrics: m, resultsPrefix: resultsPrefix}, nil
}

// Close waits for in-flight requests and drains the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.inflight.Wait()
		p.nc.Close()
	}
}

// ServeRequests subscribes to subject in a queue group and runs up to workers
// handlers at once. The subscription is drained when ctx is done.
func (p *NATSPublisher) ServeRequests(ctx context.Context, subject, queue string, workers int, h RequestHandler) (*nats.Subscription, error) {
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	sub, err := p.nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		sem <- struct{}{}
		p.inflight.Add(1)
		go func() {
			defer func() {
				<-sem
				p.inflight.Done()
			}()
			if p.logSubjects {
				log.Printf("nats request subject=%s reply=%s", msg.Subject, msg.Reply)
			}
			resp, id := h(ctx, msg.Data)
			if msg.Reply != "" {
				if err := msg.Respond(resp); err != nil {
					log.Printf("nats respond error: %v", err)
				}
			}
			if id != "" {
				if err := p.PublishResult(id, resp); err != nil {
					log.Printf("publish result %s error: %v", id, err)
				}
			}
		}()
	})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()
	log.Printf("serving plan requests on %s (queue %s, %d workers)", subject, queue, workers)
	return sub, nil
}

// PublishResult publishes a response to <resultsPrefix>.<requestID>.
func (p *NATSPublisher) PublishResult(requestID string, payload []byte) error {
	subject := resultSubject(p.resultsPrefix, requestID)
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err := p.nc.Publish(subject, payload)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func resultSubject(prefix, requestID string) string {
	if prefix == "" {
		return subjectToken(requestID)
	}
	return prefix + "." + subjectToken(requestID)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}

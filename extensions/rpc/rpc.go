// Package rpc implements request/response on top of an mqttws client.
// Requests carry a Response Topic and Correlation Data; the responder
// publishes its answer to that topic with the same correlation data.
package rpc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitalvas/mqttws"
)

var (
	ErrTimeout       = errors.New("rpc: request timeout")
	ErrClientClosed  = errors.New("rpc: client closed")
	ErrNilClient     = errors.New("rpc: client is required")
	ErrHandlerClosed = errors.New("rpc: handler closed")
)

// Headers travel as user properties.
type Headers map[string]string

// Request is the payload and metadata of a call.
type Request struct {
	Payload     []byte
	Headers     Headers
	ContentType string
}

// Response is the answer published by the responder.
type Response struct {
	Payload         []byte
	Headers         Headers
	ContentType     string
	CorrelationData []byte
}

// Client is the part of *mqttws.Client the handler needs.
type Client interface {
	Subscribe(ctx context.Context, pkt *mqttws.SubscribePacket, handler mqttws.MessageHandler) (*mqttws.SubackPacket, error)
	Unsubscribe(ctx context.Context, pkt *mqttws.UnsubscribePacket) (*mqttws.UnsubackPacket, error)
	Publish(ctx context.Context, msg *mqttws.Message) error
	IsConnected() bool
}

// HandlerOptions configures NewHandler. A nil *HandlerOptions uses the
// defaults.
type HandlerOptions struct {
	// ResponseTopic defaults to "rpc/response/<random id>".
	ResponseTopic string
	// QoS is used for requests and the response subscription.
	QoS byte
}

// Handler matches responses to outstanding calls by correlation data.
type Handler struct {
	client        Client
	responseTopic string
	qos           byte
	prefix        string
	next          atomic.Uint64

	mu      sync.Mutex
	waiting map[string]chan *Response
	closed  bool
}

// NewHandler subscribes to the response topic.
func NewHandler(ctx context.Context, client Client, opts *HandlerOptions) (*Handler, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if opts == nil {
		opts = &HandlerOptions{}
	}

	prefix, err := randomID()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		client:        client,
		responseTopic: opts.ResponseTopic,
		qos:           opts.QoS,
		prefix:        prefix,
		waiting:       make(map[string]chan *Response),
	}
	if h.responseTopic == "" {
		h.responseTopic = "rpc/response/" + prefix
	}

	_, err = client.Subscribe(ctx, &mqttws.SubscribePacket{
		Subscriptions: []mqttws.Subscription{{TopicFilter: h.responseTopic, QoS: opts.QoS}},
	}, h.handleResponse)
	if err != nil {
		return nil, fmt.Errorf("rpc: subscribe to %s: %w", h.responseTopic, err)
	}

	return h, nil
}

func randomID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("rpc: random id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

func (h *Handler) ResponseTopic() string {
	return h.responseTopic
}

// Call publishes req to topic and waits for the matching response.
func (h *Handler) Call(ctx context.Context, topic string, req *Request) (*Response, error) {
	if !h.client.IsConnected() {
		return nil, ErrClientClosed
	}
	if req == nil {
		req = &Request{}
	}

	correlID := h.prefix + "-" + strconv.FormatUint(h.next.Add(1), 10)
	ch := make(chan *Response, 1)
	if !h.wait(correlID, ch) {
		return nil, ErrHandlerClosed
	}
	defer h.forget(correlID)

	msg := &mqttws.Message{
		Topic:           topic,
		Payload:         req.Payload,
		QoS:             h.qos,
		ResponseTopic:   h.responseTopic,
		CorrelationData: []byte(correlID),
		ContentType:     req.ContentType,
	}
	for k, v := range req.Headers {
		msg.UserProperties = append(msg.UserProperties, mqttws.StringPair{Key: k, Value: v})
	}

	if err := h.client.Publish(ctx, msg); err != nil {
		return nil, fmt.Errorf("rpc: publish request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrHandlerClosed
		}
		return resp, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// CallWithTimeout is Call with a deadline of timeout.
func (h *Handler) CallWithTimeout(topic string, req *Request, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return h.Call(ctx, topic, req)
}

// Request is Call without headers.
func (h *Handler) Request(ctx context.Context, topic string, payload []byte) (*Response, error) {
	return h.Call(ctx, topic, &Request{Payload: payload})
}

// Close fails pending calls and unsubscribes from the response topic.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for id, ch := range h.waiting {
		close(ch)
		delete(h.waiting, id)
	}
	h.mu.Unlock()

	_, err := h.client.Unsubscribe(ctx, &mqttws.UnsubscribePacket{TopicFilters: []string{h.responseTopic}})
	return err
}

func (h *Handler) wait(id string, ch chan *Response) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.waiting[id] = ch
	return true
}

func (h *Handler) forget(id string) {
	h.mu.Lock()
	delete(h.waiting, id)
	h.mu.Unlock()
}

func (h *Handler) handleResponse(msg *mqttws.Message) {
	if msg == nil || len(msg.CorrelationData) == 0 {
		return
	}

	resp := &Response{
		Payload:         msg.Payload,
		ContentType:     msg.ContentType,
		CorrelationData: msg.CorrelationData,
	}
	if len(msg.UserProperties) > 0 {
		resp.Headers = make(Headers, len(msg.UserProperties))
		for _, p := range msg.UserProperties {
			resp.Headers[p.Key] = p.Value
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.waiting[string(msg.CorrelationData)]
	if !ok {
		return
	}
	delete(h.waiting, string(msg.CorrelationData))
	ch <- resp
}

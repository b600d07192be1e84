package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/secstore/lib/store"
	"github.com/ValentinKolb/secstore/rpc/common"
	"github.com/ValentinKolb/secstore/rpc/serializer"
)

// maxErrorLength bounds the error text of error responses, every error
// response must fit into the smallest response ceiling (Version).
const maxErrorLength = 512

// fallbackErrorText is sent if no part of the error text fits the response
const fallbackErrorText = "request failed"

// Dispatcher is the request cycle of one storage domain: decode the request
// sent with a command id, execute it against the store of the domain and
// encode the response into a bounded buffer.
type Dispatcher struct {
	domain     common.StorageDomain
	store      store.IStore
	adapter    IRPCServerAdapter
	serializer serializer.IRPCSerializer
	metrics    *domainMetrics
}

// NewDispatcher creates the dispatcher of domain serving requests from store.
func NewDispatcher(domain common.StorageDomain, store store.IStore, adapter IRPCServerAdapter, serializer serializer.IRPCSerializer) *Dispatcher {
	return &Dispatcher{
		domain:     domain,
		store:      store,
		adapter:    adapter,
		serializer: serializer,
		metrics:    newDomainMetrics(domain),
	}
}

// DecodeRequest decodes raw as a request of command cmd. A request of a
// different variant is rejected with common.ErrCommandMismatch.
func (d *Dispatcher) DecodeRequest(raw []byte, cmd common.CommandID) (common.Request, error) {
	if !cmd.Valid() {
		return nil, fmt.Errorf("%w: %d", common.ErrUnknownCommand, uint32(cmd))
	}
	return serializer.DecodeRequest(d.serializer, raw, cmd)
}

// Handle executes req on behalf of the caller euid.
func (d *Dispatcher) Handle(euid uint32, req common.Request) (common.Response, error) {
	resp, err := d.adapter.Handle(euid, req, d.store)
	if err != nil {
		return nil, err
	}
	if resp.CommandID() != req.CommandID() {
		return nil, fmt.Errorf("%w: %s request answered with %s response", common.ErrCommandMismatch, req.CommandID(), resp.CommandID())
	}
	return resp, nil
}

// EncodeResponse encodes resp into out. Responses larger than the maximum
// response size of their command fail with common.ErrBufferTooSmall.
func (d *Dispatcher) EncodeResponse(resp common.Response, out []byte) (int, error) {
	return serializer.EncodeResponse(d.serializer, resp, out)
}

// Dispatch runs the whole request cycle and writes the response into out.
// Failures are answered with an error response, so the caller always gets a
// reply it can decode.
func (d *Dispatcher) Dispatch(euid uint32, cmd common.CommandID, raw []byte, out []byte) int {
	start := time.Now()

	n, err := d.dispatch(euid, cmd, raw, out)
	if err != nil {
		Logger.Debugf("%s %s for euid 0x%X failed: %v", d.domain, cmd, euid, err)
		d.metrics.failed(cmd)
		n = encodeError(d.serializer, cmd, err, out)
	}

	d.metrics.observe(cmd, n, start)
	return n
}

func (d *Dispatcher) dispatch(euid uint32, cmd common.CommandID, raw []byte, out []byte) (int, error) {
	req, err := d.DecodeRequest(raw, cmd)
	if err != nil {
		return 0, err
	}

	resp, err := d.Handle(euid, req)
	if err != nil {
		return 0, err
	}

	n, err := d.EncodeResponse(resp, out)
	if errors.Is(err, common.ErrBufferTooSmall) {
		return 0, fmt.Errorf("response exceeds the maximum of %d bytes for %s", cmd.MaxResponseSize(), cmd)
	}
	return n, err
}

// encodeError writes an error response for cmd into out. Unknown commands
// cannot be answered with a valid message, the response is empty then.
func encodeError(s serializer.IRPCSerializer, cmd common.CommandID, err error, out []byte) int {
	if !cmd.Valid() {
		return 0
	}
	if limit := int(cmd.MaxResponseSize()); len(out) > limit {
		out = out[:limit]
	}

	// escaping can grow the text beyond the ceiling, it is halved until it fits
	text := truncateText(errorText(err), maxErrorLength)
	if text == "" {
		text = fallbackErrorText
	}
	for {
		n, serr := s.Serialize(common.Message{Cmd: cmd, Err: text}, out)
		if serr == nil {
			return n
		}
		if !errors.Is(serr, common.ErrBufferTooSmall) || text == fallbackErrorText {
			Logger.Errorf("Failed to encode error response for %s: %v", cmd, serr)
			return 0
		}
		if text = truncateText(text, len(text)/2); len(text) < len(fallbackErrorText) {
			text = fallbackErrorText
		}
	}
}

// truncateText cuts s to at most limit bytes and replaces invalid UTF-8, so
// that text based serializers can encode it.
func truncateText(s string, limit int) string {
	if len(s) > limit {
		s = s[:limit]
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// errorText strips the store error decoration, callers only need the message.
func errorText(err error) string {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return fmt.Sprintf("%s: %s", storeErr.Code, storeErr.Msg)
	}
	return err.Error()
}

// Package controller implements the requesting side of the RDM
// protocol: transaction-numbered GET and SET exchanges, the mute
// bookkeeping discovery depends on, and the binary-search discovery
// engine itself.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rdm-protocol/rdm-go/pkg/frame"
	"github.com/rdm-protocol/rdm-go/pkg/log"
	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/port"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// Controller errors.
var (
	// ErrNoResponse indicates the addressed device stayed silent.
	ErrNoResponse = errors.New("no response")

	// ErrBadResponse indicates a response that decodes but does not
	// belong to the request: wrong source, transaction, or parameter.
	ErrBadResponse = errors.New("mismatched response")

	// ErrBroadcast indicates a request that cannot be broadcast.
	ErrBroadcast = errors.New("request cannot be broadcast")
)

// Config configures a Controller.
type Config struct {
	// UID is the controller's own source UID. Required.
	UID uid.UID

	// Port is the bus attachment. Required.
	Port *port.Port

	// PortID is the physical port number reported in request headers,
	// 1-255. Zero defaults to 1.
	PortID uint8

	// Logger receives protocol events. Nil disables capture.
	Logger log.Logger
}

// Controller drives one RDM port. Safe for concurrent use; exchanges
// serialize on the port.
type Controller struct {
	uid    uid.UID
	port   *port.Port
	portID uint8
	logger log.Logger

	mu sync.Mutex
	tn uint8
}

// New builds a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.UID.IsNull() || cfg.UID.IsBroadcast() {
		return nil, fmt.Errorf("unusable controller uid %s", cfg.UID)
	}
	if cfg.Port == nil {
		return nil, errors.New("controller needs a port")
	}
	portID := cfg.PortID
	if portID == 0 {
		portID = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Controller{
		uid:    cfg.UID,
		port:   cfg.Port,
		portID: portID,
		logger: logger,
	}, nil
}

// UID returns the controller's source UID.
func (c *Controller) UID() uid.UID { return c.uid }

// nextTN issues the next transaction number. The counter wraps; only
// inequality with a stale exchange matters.
func (c *Controller) nextTN() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tn++
	return c.tn
}

// Ack is the decoded outcome of one acknowledged exchange.
type Ack struct {
	// Type is the response type the device answered with.
	Type param.ResponseType

	// Reason is set when Type is NACK_REASON.
	Reason param.NackReason

	// Timer is set when Type is ACK_TIMER: how long to wait before
	// retrying.
	Timer time.Duration

	// Data is the response parameter data for ACK and ACK_OVERFLOW.
	Data []byte

	// MessageCount is the device's queued-message count.
	MessageCount uint8
}

// Acked reports whether the response was a plain ACK.
func (a *Ack) Acked() bool { return a.Type == param.ResponseAck }

// Get sends a GET request and decodes the response.
func (c *Controller) Get(ctx context.Context, dest uid.UID, sub param.SubDevice, pid param.PID, data []byte) (*Ack, error) {
	if dest.IsBroadcast() {
		return nil, fmt.Errorf("%w: GET %v", ErrBroadcast, pid)
	}
	return c.request(ctx, dest, sub, param.CCGetCommand, pid, data)
}

// Set sends a SET request. Broadcast destinations are allowed; they
// return a nil Ack since broadcasts draw no response.
func (c *Controller) Set(ctx context.Context, dest uid.UID, sub param.SubDevice, pid param.PID, data []byte) (*Ack, error) {
	return c.request(ctx, dest, sub, param.CCSetCommand, pid, data)
}

// Mute sends DISC_MUTE to one device and decodes the mute response.
func (c *Controller) Mute(ctx context.Context, dest uid.UID) (*param.DiscMute, error) {
	return c.muteCommand(ctx, dest, param.PIDDiscMute)
}

// UnMute sends DISC_UN_MUTE to one device.
func (c *Controller) UnMute(ctx context.Context, dest uid.UID) (*param.DiscMute, error) {
	return c.muteCommand(ctx, dest, param.PIDDiscUnMute)
}

// UnMuteAll broadcasts DISC_UN_MUTE so every device takes part in the
// next discovery sweep.
func (c *Controller) UnMuteAll(ctx context.Context) error {
	req, err := c.encodeRequest(c.nextTN(), uid.BroadcastAll, param.SubDeviceRoot, param.CCDiscCommand, param.PIDDiscUnMute, nil)
	if err != nil {
		return err
	}
	_, err = c.port.Exchange(ctx, req, port.ExpectNone)
	return err
}

func (c *Controller) muteCommand(ctx context.Context, dest uid.UID, pid param.PID) (*param.DiscMute, error) {
	if dest.IsBroadcast() {
		req, err := c.encodeRequest(c.nextTN(), dest, param.SubDeviceRoot, param.CCDiscCommand, pid, nil)
		if err != nil {
			return nil, err
		}
		_, err = c.port.Exchange(ctx, req, port.ExpectNone)
		return nil, err
	}

	tn := c.nextTN()
	req, err := c.encodeRequest(tn, dest, param.SubDeviceRoot, param.CCDiscCommand, pid, nil)
	if err != nil {
		return nil, err
	}
	pkt, err := c.port.Exchange(ctx, req, port.ExpectResponse)
	if err != nil {
		return nil, mapPortErr(err)
	}

	h, pdData, err := frame.Decode(pkt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if err := c.checkResponse(h, dest, tn, param.CCDiscCommandResponse, pid); err != nil {
		return nil, err
	}
	mute, err := param.DecodeDiscMute(pdData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return mute, nil
}

// request runs one non-discovery exchange end to end.
func (c *Controller) request(ctx context.Context, dest uid.UID, sub param.SubDevice, cc param.CommandClass, pid param.PID, data []byte) (*Ack, error) {
	tn := c.nextTN()
	req, err := c.encodeRequest(tn, dest, sub, cc, pid, data)
	if err != nil {
		return nil, err
	}

	if dest.IsBroadcast() {
		_, err := c.port.Exchange(ctx, req, port.ExpectNone)
		return nil, err
	}

	pkt, err := c.port.Exchange(ctx, req, port.ExpectResponse)
	if err != nil {
		return nil, mapPortErr(err)
	}

	h, pdData, err := frame.Decode(pkt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if err := c.checkResponse(h, dest, tn, cc.Response(), pid); err != nil {
		return nil, err
	}

	ack := &Ack{
		Type:         h.ResponseType,
		MessageCount: h.MessageCount,
	}
	switch h.ResponseType {
	case param.ResponseAck, param.ResponseAckOverflow:
		ack.Data = pdData
	case param.ResponseNackReason:
		reason, err := param.DecodeNackReason(pdData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		ack.Reason = reason
	case param.ResponseAckTimer:
		rec, err := param.FormatWord.DecodeRecord(pdData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		ack.Timer = time.Duration(rec[0].(uint16)) * 100 * time.Millisecond
	default:
		return nil, fmt.Errorf("%w: response type %d", ErrBadResponse, h.ResponseType)
	}

	c.logAck(h, ack)
	return ack, nil
}

// checkResponse verifies a response belongs to the request just sent.
func (c *Controller) checkResponse(h *frame.Header, dest uid.UID, tn uint8, cc param.CommandClass, pid param.PID) error {
	switch {
	case h.SrcUID != dest:
		return fmt.Errorf("%w: from %s, asked %s", ErrBadResponse, h.SrcUID, dest)
	case h.DestUID != c.uid:
		return fmt.Errorf("%w: addressed to %s", ErrBadResponse, h.DestUID)
	case h.TN != tn:
		return fmt.Errorf("%w: tn %d, sent %d", ErrBadResponse, h.TN, tn)
	case h.CC != cc:
		return fmt.Errorf("%w: cc %s", ErrBadResponse, h.CC)
	case h.PID != pid:
		return fmt.Errorf("%w: pid %#04x", ErrBadResponse, uint16(h.PID))
	case !h.ResponseType.IsValid():
		return fmt.Errorf("%w: response type %d", ErrBadResponse, h.ResponseType)
	}
	return nil
}

func (c *Controller) encodeRequest(tn uint8, dest uid.UID, sub param.SubDevice, cc param.CommandClass, pid param.PID, data []byte) ([]byte, error) {
	return frame.Encode(&frame.Header{
		DestUID:   dest,
		SrcUID:    c.uid,
		TN:        tn,
		PortID:    c.portID,
		SubDevice: sub,
		CC:        cc,
		PID:       pid,
	}, data)
}

func mapPortErr(err error) error {
	if errors.Is(err, port.ErrTimeout) {
		return ErrNoResponse
	}
	return err
}

func (c *Controller) logAck(h *frame.Header, ack *Ack) {
	rt := uint8(ack.Type)
	event := log.Event{
		Timestamp: time.Now(),
		PortID:    c.port.ID(),
		Direction: log.DirectionIn,
		Layer:     log.LayerFrame,
		Category:  log.CategoryMessage,
		LocalRole: log.RoleController,
		DeviceUID: h.SrcUID.String(),
		Message: &log.MessageEvent{
			TN:           h.TN,
			CC:           uint8(h.CC),
			PID:          uint16(h.PID),
			SubDevice:    uint16(h.SubDevice),
			ResponseType: &rt,
			PDL:          h.PDL,
		},
	}
	if ack.Type == param.ResponseNackReason {
		nr := uint16(ack.Reason)
		event.Message.NackReason = &nr
	}
	c.logger.Log(event)
}

package responder

import (
	"context"
	"time"

	"github.com/rdm-protocol/rdm-go/pkg/frame"
	"github.com/rdm-protocol/rdm-go/pkg/log"
	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/pd"
	"github.com/rdm-protocol/rdm-go/pkg/transport"
)

// Serve consumes packets from the transport until the context is done
// or the transport closes. Responses are written back on the same
// line: normal responses behind a break, discovery responses without
// one.
func (d *Device) Serve(ctx context.Context, tr transport.Transport) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-tr.Packets():
			if !ok {
				return nil
			}
			if resp, breakBefore, respond := d.HandlePacket(pkt); respond {
				if err := tr.Send(resp, breakBefore); err != nil {
					return err
				}
			}
		}
	}
}

// HandlePacket runs one inbound packet through the dispatch ladder.
// It returns the response bytes, whether they need a leading break,
// and whether the device responds at all. Packets that are not
// well-formed requests addressed to this device are dropped without a
// response, as are broadcasts and failed discovery probes.
func (d *Device) HandlePacket(data []byte) ([]byte, bool, bool) {
	if frame.IsDiscResponse(data) {
		// Another responder answering a discovery probe.
		return nil, false, false
	}

	start := time.Now()
	h, pdData, err := frame.Decode(data)
	if err != nil {
		// Damaged packets are dropped silently; the controller's
		// timeout handles recovery.
		return nil, false, false
	}

	if !d.cfg.UID.IsTarget(h.DestUID) || !h.CC.IsRequest() {
		return nil, false, false
	}

	switch h.CC {
	case param.CCDiscCommand:
		return d.handleDiscovery(h, pdData)
	case param.CCGetCommand, param.CCSetCommand:
		resp, respond := d.handleRequest(h, pdData, start)
		return resp, true, respond
	default:
		return nil, false, false
	}
}

// handleDiscovery serves the three discovery parameters. Discovery
// traffic never draws a NACK: anything unexpected is answered with
// silence so a collision-probing controller gets a clean signal.
func (d *Device) handleDiscovery(h *frame.Header, pdData []byte) ([]byte, bool, bool) {
	switch h.PID {
	case param.PIDDiscUniqueBranch:
		if h.SubDevice != param.SubDeviceRoot || d.Muted() {
			return nil, false, false
		}
		branch, err := param.DecodeDiscUniqueBranch(pdData)
		if err != nil || len(pdData) != param.FormatDiscUniqueBranch.RecordSize() {
			return nil, false, false
		}
		if !branch.Contains(d.cfg.UID) {
			return nil, false, false
		}
		d.logDiscovery(log.DiscoveryFound, branch)
		return frame.EncodeDiscResponse(d.cfg.UID), false, true

	case param.PIDDiscMute, param.PIDDiscUnMute:
		if h.SubDevice != param.SubDeviceRoot || len(pdData) != 0 {
			return nil, false, false
		}
		d.mu.Lock()
		d.muted = h.PID == param.PIDDiscMute
		d.mu.Unlock()

		if h.DestUID.IsBroadcast() {
			return nil, false, false
		}
		mute := &param.DiscMute{BindingUID: d.cfg.BindingUID}
		data, err := mute.Encode()
		if err != nil {
			return nil, false, false
		}
		resp := d.respond(h, &Reply{Type: param.ResponseAck, Data: data})
		return resp, true, resp != nil

	default:
		return nil, false, false
	}
}

// handleRequest walks the GET/SET ladder: known PID, supported command
// class, sub-device in range, well-formed request data, then the
// handler. Broadcast requests are processed but never answered.
func (d *Device) handleRequest(h *frame.Header, pdData []byte, start time.Time) ([]byte, bool) {
	broadcast := h.DestUID.IsBroadcast()
	reply := d.evaluate(h, pdData)

	if broadcast || reply == nil {
		return nil, false
	}

	resp := d.respond(h, reply)
	d.logMessage(h, reply, time.Since(start))
	return resp, resp != nil
}

// evaluate produces the reply for one GET or SET without any response
// suppression applied.
func (d *Device) evaluate(h *frame.Header, pdData []byte) *Reply {
	// Message-level validity outranks the parameter checks: a request
	// from a broadcast source, from port 0, or with an oversized
	// parameter-data block is malformed whatever PID it names.
	if h.SrcUID.IsBroadcast() || h.PortID == 0 || len(pdData) > pd.MaxLen {
		return Nack(param.NackFormatError)
	}

	def, ok := d.defs[h.PID]
	if !ok {
		return Nack(param.NackUnknownPID)
	}

	isSet := h.CC == param.CCSetCommand
	if (isSet && !def.Set) || (!isSet && !def.Get) {
		return Nack(param.NackUnsupportedCommandClass)
	}

	if h.SubDevice != param.SubDeviceRoot {
		// No sub-devices are modeled; the all-sub-devices address is
		// still accepted for SET as the root.
		if !(isSet && h.SubDevice == param.SubDeviceAll) {
			return Nack(param.NackSubDeviceOutOfRange)
		}
	}

	reqFormat := def.GetRequest
	if isSet {
		reqFormat = def.SetRequest
	}
	req := &Request{
		CC:        h.CC,
		SubDevice: h.SubDevice,
		PID:       h.PID,
		Data:      pdData,
	}
	if reqFormat == nil {
		if len(pdData) != 0 {
			return Nack(param.NackFormatError)
		}
	} else {
		records, err := reqFormat.DecodeRecord(pdData)
		if err != nil {
			return Nack(param.NackFormatError)
		}
		if !reqFormat.Variable() && len(pdData) != reqFormat.RecordSize() {
			return Nack(param.NackFormatError)
		}
		req.Records = records
	}

	reply := def.Handler(req)
	if reply == nil {
		return nil
	}
	return d.police(def, isSet, reply)
}

// police verifies a handler's output before it reaches the wire. A
// reply type outside the response-type enumeration, or ACK data that
// does not decode exactly through the declared response format, is
// reported as a hardware fault instead of being transmitted.
func (d *Device) police(def *Definition, isSet bool, reply *Reply) *Reply {
	switch reply.Type {
	case param.ResponseAck:
		// Checked against the response format below.
	case param.ResponseAckTimer, param.ResponseNackReason, param.ResponseAckOverflow:
		return reply
	default:
		return d.fault()
	}

	respFormat := def.GetResponse
	if isSet {
		respFormat = def.SetResponse
	}
	bad := false
	switch {
	case respFormat == nil:
		bad = len(reply.Data) != 0
	case len(reply.Data) > pd.MaxLen:
		bad = true
	default:
		// The block must decode with nothing left over; a truncated
		// trailing record means the handler built the data wrong.
		_, err := respFormat.DecodeAll(reply.Data)
		bad = err != nil
	}
	if !bad {
		return reply
	}
	return d.fault()
}

// fault records a misbehaving handler and substitutes the NACK the
// controller sees in its place.
func (d *Device) fault() *Reply {
	d.mu.Lock()
	d.hardwareFault = true
	d.mu.Unlock()
	return Nack(param.NackHardwareFault)
}

// respond builds the response frame for a request header and reply.
func (d *Device) respond(h *frame.Header, reply *Reply) []byte {
	data := reply.Data
	switch reply.Type {
	case param.ResponseNackReason:
		data = param.EncodeNackReason(reply.Reason)
	case param.ResponseAckTimer:
		// Timer is in 100 ms units, rounded up, at least one unit.
		units := (reply.Timer + 100*time.Millisecond - 1) / (100 * time.Millisecond)
		if units < 1 {
			units = 1
		}
		data, _ = param.FormatWord.EncodeRecord(uint16(units))
	}

	resp := &frame.Header{
		DestUID:      h.SrcUID,
		SrcUID:       d.cfg.UID,
		TN:           h.TN,
		ResponseType: reply.Type,
		SubDevice:    h.SubDevice,
		CC:           h.CC.Response(),
		PID:          h.PID,
	}
	out, err := frame.Encode(resp, data)
	if err != nil {
		return nil
	}
	return out
}

func (d *Device) logMessage(h *frame.Header, reply *Reply, took time.Duration) {
	rt := uint8(reply.Type)
	event := log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerFrame,
		Category:  log.CategoryMessage,
		LocalRole: log.RoleResponder,
		DeviceUID: d.cfg.UID.String(),
		Message: &log.MessageEvent{
			TN:             h.TN,
			CC:             uint8(h.CC.Response()),
			PID:            uint16(h.PID),
			SubDevice:      uint16(h.SubDevice),
			ResponseType:   &rt,
			ProcessingTime: &took,
		},
	}
	if reply.Type == param.ResponseNackReason {
		nr := uint16(reply.Reason)
		event.Message.NackReason = &nr
	}
	d.logger.Log(event)
}

func (d *Device) logDiscovery(outcome log.DiscoveryOutcome, branch *param.DiscUniqueBranch) {
	d.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerEngine,
		Category:  log.CategoryDiscovery,
		LocalRole: log.RoleResponder,
		DeviceUID: d.cfg.UID.String(),
		Discovery: &log.DiscoveryEvent{
			Outcome: outcome,
			Lower:   branch.Lower.String(),
			Upper:   branch.Upper.String(),
			Found:   d.cfg.UID.String(),
		},
	})
}

package responder

import (
	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/pd"
)

// formatPersonalityDescription is the DMX_PERSONALITY_DESCRIPTION
// response: personality number, footprint, description text.
var formatPersonalityDescription = pd.MustCompile("bwa")

// registerDefaults installs the parameters every responder carries.
func (d *Device) registerDefaults() {
	defs := []*Definition{
		{
			PID:         param.PIDDeviceInfo,
			Get:         true,
			GetResponse: param.FormatDeviceInfo,
			Handler: func(*Request) *Reply {
				data, err := d.deviceInfo().Encode()
				if err != nil {
					return Nack(param.NackHardwareFault)
				}
				return Ack(data)
			},
		},
		{
			PID:         param.PIDSupportedParameters,
			Get:         true,
			GetResponse: param.FormatPIDList,
			Handler: func(*Request) *Reply {
				data, err := param.EncodePIDList(d.supportedParameters())
				if err != nil {
					return Nack(param.NackHardwareFault)
				}
				return Ack(data)
			},
		},
		{
			PID:         param.PIDParameterDescription,
			Get:         true,
			GetRequest:  param.FormatWord,
			GetResponse: param.FormatParameterDescription,
			Handler:     d.getParameterDescription,
		},
		{
			PID:         param.PIDSoftwareVersionLabel,
			Get:         true,
			GetResponse: param.FormatText,
			Handler:     d.textGetter(func() string { return d.cfg.SoftwareVersionLabel }),
		},
		{
			PID:         param.PIDManufacturerLabel,
			Get:         true,
			GetResponse: param.FormatText,
			Handler:     d.textGetter(func() string { return d.cfg.ManufacturerLabel }),
		},
		{
			PID:         param.PIDDeviceModelDescription,
			Get:         true,
			GetResponse: param.FormatText,
			Handler:     d.textGetter(func() string { return d.cfg.DeviceModelDescription }),
		},
		{
			PID:         param.PIDDeviceLabel,
			Get:         true,
			Set:         true,
			GetResponse: param.FormatText,
			SetRequest:  param.FormatText,
			Handler:     d.handleDeviceLabel,
		},
		{
			PID:         param.PIDDMXStartAddress,
			Get:         true,
			Set:         true,
			GetResponse: param.FormatWord,
			SetRequest:  param.FormatWord,
			Handler:     d.handleStartAddress,
		},
		{
			PID:         param.PIDIdentifyDevice,
			Get:         true,
			Set:         true,
			GetResponse: param.FormatByte,
			SetRequest:  param.FormatByte,
			Handler:     d.handleIdentify,
		},
		{
			PID:         param.PIDDMXPersonality,
			Get:         true,
			Set:         true,
			GetResponse: param.FormatPersonality,
			SetRequest:  param.FormatByte,
			Handler:     d.handlePersonality,
		},
		{
			PID:         param.PIDDMXPersonalityDescription,
			Get:         true,
			GetRequest:  param.FormatByte,
			GetResponse: formatPersonalityDescription,
			Handler:     d.getPersonalityDescription,
		},
		{
			PID:        param.PIDResetDevice,
			Set:        true,
			SetRequest: param.FormatByte,
			Handler:    d.handleReset,
		},
	}
	for _, def := range defs {
		d.defs[def.PID] = def
	}
}

// textGetter builds a GET handler for a fixed text parameter.
func (d *Device) textGetter(get func() string) Handler {
	return func(*Request) *Reply {
		data, err := param.FormatText.EncodeRecord(get())
		if err != nil {
			return Nack(param.NackHardwareFault)
		}
		return Ack(data)
	}
}

func (d *Device) getParameterDescription(req *Request) *Reply {
	pid := param.PID(req.Records[0].(uint16))
	def, ok := d.defs[pid]
	if !ok || !pid.IsManufacturerSpecific() || def.Description == nil {
		return Nack(param.NackDataOutOfRange)
	}
	data, err := def.Description.Encode()
	if err != nil {
		return Nack(param.NackHardwareFault)
	}
	return Ack(data)
}

func (d *Device) handleDeviceLabel(req *Request) *Reply {
	if req.CC == param.CCGetCommand {
		d.mu.Lock()
		label := d.deviceLabel
		d.mu.Unlock()
		data, err := param.FormatText.EncodeRecord(label)
		if err != nil {
			return Nack(param.NackHardwareFault)
		}
		return Ack(data)
	}

	label := req.Records[0].(string)
	if len(req.Data) > MaxLabelLen {
		return Nack(param.NackFormatError)
	}
	d.mu.Lock()
	d.deviceLabel = label
	d.mu.Unlock()
	d.persist()
	return Ack(nil)
}

func (d *Device) handleStartAddress(req *Request) *Reply {
	if req.CC == param.CCGetCommand {
		data, err := param.FormatWord.EncodeRecord(d.StartAddress())
		if err != nil {
			return Nack(param.NackHardwareFault)
		}
		return Ack(data)
	}

	addr := req.Records[0].(uint16)
	d.mu.Lock()
	if d.footprint() == 0 || !d.validStartAddressLocked(addr) {
		d.mu.Unlock()
		return Nack(param.NackDataOutOfRange)
	}
	d.startAddress = addr
	d.mu.Unlock()
	d.persist()
	return Ack(nil)
}

func (d *Device) handleIdentify(req *Request) *Reply {
	if req.CC == param.CCGetCommand {
		state := uint8(0)
		if d.Identify() {
			state = 1
		}
		data, err := param.FormatByte.EncodeRecord(state)
		if err != nil {
			return Nack(param.NackHardwareFault)
		}
		return Ack(data)
	}

	state := req.Records[0].(uint8)
	if state > 1 {
		return Nack(param.NackDataOutOfRange)
	}
	d.mu.Lock()
	d.identify = state == 1
	d.mu.Unlock()
	return Ack(nil)
}

func (d *Device) handlePersonality(req *Request) *Reply {
	if req.CC == param.CCGetCommand {
		d.mu.Lock()
		current := d.personality
		d.mu.Unlock()
		data, err := param.FormatPersonality.EncodeRecord(current, uint8(len(d.cfg.Personalities)))
		if err != nil {
			return Nack(param.NackHardwareFault)
		}
		return Ack(data)
	}

	n := req.Records[0].(uint8)
	if n < 1 || int(n) > len(d.cfg.Personalities) {
		return Nack(param.NackDataOutOfRange)
	}
	d.mu.Lock()
	d.personality = n
	// A smaller footprint can leave the address valid; a larger one can
	// push the footprint past slot 512, in which case the address slides
	// back to the highest legal slot.
	if fp := d.footprint(); fp > 0 && uint32(d.startAddress)+uint32(fp)-1 > 512 {
		d.startAddress = 512 - fp + 1
	}
	d.mu.Unlock()
	d.persist()
	return Ack(nil)
}

func (d *Device) getPersonalityDescription(req *Request) *Reply {
	n := req.Records[0].(uint8)
	if n < 1 || int(n) > len(d.cfg.Personalities) {
		return Nack(param.NackDataOutOfRange)
	}
	p := d.cfg.Personalities[n-1]
	data, err := formatPersonalityDescription.EncodeRecord(n, p.Footprint, p.Description)
	if err != nil {
		return Nack(param.NackHardwareFault)
	}
	return Ack(data)
}

func (d *Device) handleReset(req *Request) *Reply {
	kind := req.Records[0].(uint8)
	if kind != 0x01 && kind != 0xff {
		return Nack(param.NackDataOutOfRange)
	}
	d.mu.Lock()
	d.identify = false
	d.muted = false
	d.hardwareFault = false
	d.mu.Unlock()
	return Ack(nil)
}

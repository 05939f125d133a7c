// Package interactive implements the rdm-controller command console.
package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/rdm-protocol/rdm-go/pkg/controller"
	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/persistence"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// Console is an interactive shell over one controller port.
type Console struct {
	ctrl  *controller.Controller
	store *persistence.ControllerStateStore

	known []persistence.KnownDevice
	out   io.Writer
}

// New builds a console. store may be nil to skip persistence of
// discovered devices.
func New(ctrl *controller.Controller, store *persistence.ControllerStateStore) *Console {
	return &Console{ctrl: ctrl, store: store}
}

// Run reads and executes commands until EOF or "exit".
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rdm> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	c.out = rl.Stdout()

	c.restore()
	c.printf("rdm controller %s ready, type 'help' for commands\n", c.ctrl.UID())

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if err := c.dispatch(ctx, fields[0], fields[1:]); err != nil {
			c.printf("error: %v\n", err)
		}
	}
}

func (c *Console) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		c.printHelp()
		return nil
	case "discover":
		return c.cmdDiscover(ctx)
	case "list":
		return c.cmdList()
	case "info":
		return c.cmdInfo(ctx, args)
	case "address":
		return c.cmdAddress(ctx, args)
	case "label":
		return c.cmdLabel(ctx, args)
	case "personality":
		return c.cmdPersonality(ctx, args)
	case "identify":
		return c.cmdIdentify(ctx, args)
	case "get":
		return c.cmdGet(ctx, args)
	case "mute":
		return c.cmdMute(ctx, args, param.PIDDiscMute)
	case "unmute":
		return c.cmdMute(ctx, args, param.PIDDiscUnMute)
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}

func (c *Console) printHelp() {
	c.printf(`commands:
  discover                     run a discovery sweep
  list                         list known devices
  info <uid>                   query DEVICE_INFO
  address <uid> [n]            get or set the DMX start address
  label <uid> [text]           get or set the device label
  personality <uid> [n]        get or set the DMX personality
  identify <uid> on|off        switch the identify indicator
  get <uid> <pid>              GET any parameter by name or hex ID
  mute <uid>|all               mute a device
  unmute <uid>|all             un-mute a device
  exit                         leave the console
`)
}

func (c *Console) cmdDiscover(ctx context.Context) error {
	start := time.Now()
	report, err := c.ctrl.Discover(ctx, func(u uid.UID) {
		c.printf("  found %s\n", u)
	})
	if err != nil {
		return err
	}
	c.printf("%d device(s), %d probe(s), %v\n", len(report.Devices), report.Probes, time.Since(start).Round(time.Millisecond))
	for _, a := range report.Anomalies {
		c.printf("  anomaly %s..%s: %s\n", a.Lower, a.Upper, a.Reason)
	}

	now := time.Now()
	c.known = c.known[:0]
	for _, u := range report.Devices {
		known := persistence.KnownDevice{UID: u.String(), FoundAt: now, LastSeenAt: now}
		if ack, err := c.ctrl.Get(ctx, u, param.SubDeviceRoot, param.PIDDeviceInfo, nil); err == nil && ack.Acked() {
			if info, err := param.DecodeDeviceInfo(ack.Data); err == nil {
				known.Model = info.ModelID
			}
		}
		if ack, err := c.ctrl.Get(ctx, u, param.SubDeviceRoot, param.PIDDeviceLabel, nil); err == nil && ack.Acked() {
			if rec, err := param.FormatText.DecodeRecord(ack.Data); err == nil {
				known.Label = rec[0].(string)
			}
		}
		c.known = append(c.known, known)
	}
	c.persist()
	return nil
}

func (c *Console) cmdList() error {
	if len(c.known) == 0 {
		c.printf("no known devices, run 'discover'\n")
		return nil
	}
	for _, d := range c.known {
		c.printf("  %s  model %#04x  %q\n", d.UID, d.Model, d.Label)
	}
	return nil
}

func (c *Console) cmdInfo(ctx context.Context, args []string) error {
	dest, err := c.parseTarget(args, 1)
	if err != nil {
		return err
	}
	ack, err := c.get(ctx, dest, param.PIDDeviceInfo)
	if err != nil {
		return err
	}
	info, err := param.DecodeDeviceInfo(ack.Data)
	if err != nil {
		return err
	}
	c.printf("model %#04x  category %#04x  software %#08x\n", info.ModelID, uint16(info.ProductCategory), info.SoftwareVersionID)
	c.printf("footprint %d  personality %d/%d  start address %d\n", info.Footprint, info.CurrentPersonality, info.PersonalityCount, info.StartAddress)
	c.printf("sub-devices %d  sensors %d\n", info.SubDeviceCount, info.SensorCount)
	return nil
}

func (c *Console) cmdAddress(ctx context.Context, args []string) error {
	dest, err := c.parseTarget(args, 2)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		ack, err := c.get(ctx, dest, param.PIDDMXStartAddress)
		if err != nil {
			return err
		}
		rec, err := param.FormatWord.DecodeRecord(ack.Data)
		if err != nil {
			return err
		}
		c.printf("start address %d\n", rec[0])
		return nil
	}

	addr, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return fmt.Errorf("bad address %q", args[1])
	}
	data, err := param.FormatWord.EncodeRecord(uint16(addr))
	if err != nil {
		return err
	}
	return c.set(ctx, dest, param.PIDDMXStartAddress, data)
}

func (c *Console) cmdLabel(ctx context.Context, args []string) error {
	dest, err := c.parseTarget(args, len(args))
	if err != nil {
		return err
	}
	if len(args) == 1 {
		ack, err := c.get(ctx, dest, param.PIDDeviceLabel)
		if err != nil {
			return err
		}
		rec, err := param.FormatText.DecodeRecord(ack.Data)
		if err != nil {
			return err
		}
		c.printf("label %q\n", rec[0])
		return nil
	}

	label := strings.Join(args[1:], " ")
	data, err := param.FormatText.EncodeRecord(label)
	if err != nil {
		return err
	}
	return c.set(ctx, dest, param.PIDDeviceLabel, data)
}

func (c *Console) cmdPersonality(ctx context.Context, args []string) error {
	dest, err := c.parseTarget(args, 2)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		ack, err := c.get(ctx, dest, param.PIDDMXPersonality)
		if err != nil {
			return err
		}
		rec, err := param.FormatPersonality.DecodeRecord(ack.Data)
		if err != nil {
			return err
		}
		c.printf("personality %d of %d\n", rec[0], rec[1])
		return nil
	}

	n, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return fmt.Errorf("bad personality %q", args[1])
	}
	data, err := param.FormatByte.EncodeRecord(uint8(n))
	if err != nil {
		return err
	}
	return c.set(ctx, dest, param.PIDDMXPersonality, data)
}

func (c *Console) cmdIdentify(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: identify <uid> on|off")
	}
	dest, err := uid.Parse(args[0])
	if err != nil {
		return err
	}
	var state uint8
	switch args[1] {
	case "on":
		state = 1
	case "off":
		state = 0
	default:
		return fmt.Errorf("identify state must be on or off, not %q", args[1])
	}
	data, err := param.FormatByte.EncodeRecord(state)
	if err != nil {
		return err
	}
	return c.set(ctx, dest, param.PIDIdentifyDevice, data)
}

func (c *Console) cmdGet(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: get <uid> <pid>")
	}
	dest, err := uid.Parse(args[0])
	if err != nil {
		return err
	}
	pid, ok := param.ResolvePIDName(args[1])
	if !ok {
		n, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 16)
		if err != nil {
			return fmt.Errorf("unknown parameter %q", args[1])
		}
		pid = param.PID(n)
	}
	ack, err := c.get(ctx, dest, pid)
	if err != nil {
		return err
	}
	if len(ack.Data) == 0 {
		c.printf("ack, no data\n")
		return nil
	}
	c.printf("ack, %d byte(s): %s\n", len(ack.Data), hex.EncodeToString(ack.Data))
	return nil
}

func (c *Console) cmdMute(ctx context.Context, args []string, pid param.PID) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mute|unmute <uid>|all")
	}
	if args[0] == "all" {
		if pid == param.PIDDiscMute {
			return fmt.Errorf("muting the whole bus breaks discovery, mute devices one by one")
		}
		if err := c.ctrl.UnMuteAll(ctx); err != nil {
			return err
		}
		c.printf("un-muted all devices\n")
		return nil
	}

	dest, err := uid.Parse(args[0])
	if err != nil {
		return err
	}
	var mute *param.DiscMute
	if pid == param.PIDDiscMute {
		mute, err = c.ctrl.Mute(ctx, dest)
	} else {
		mute, err = c.ctrl.UnMute(ctx, dest)
	}
	if err != nil {
		return err
	}
	c.printf("ok, control field %#04x\n", mute.ControlField())
	return nil
}

// parseTarget validates the argument count and parses the UID in
// args[0]. maxArgs bounds how many arguments the command takes.
func (c *Console) parseTarget(args []string, maxArgs int) (uid.UID, error) {
	if len(args) < 1 || len(args) > maxArgs {
		return uid.Null, fmt.Errorf("expected a device UID")
	}
	return uid.Parse(args[0])
}

func (c *Console) get(ctx context.Context, dest uid.UID, pid param.PID) (*controller.Ack, error) {
	ack, err := c.ctrl.Get(ctx, dest, param.SubDeviceRoot, pid, nil)
	if err != nil {
		return nil, err
	}
	if !ack.Acked() {
		return nil, fmt.Errorf("device answered %s (%s)", ack.Type, ack.Reason)
	}
	c.touch(dest)
	return ack, nil
}

func (c *Console) set(ctx context.Context, dest uid.UID, pid param.PID, data []byte) error {
	ack, err := c.ctrl.Set(ctx, dest, param.SubDeviceRoot, pid, data)
	if err != nil {
		return err
	}
	if ack == nil {
		c.printf("broadcast sent\n")
		return nil
	}
	if !ack.Acked() {
		return fmt.Errorf("device answered %s (%s)", ack.Type, ack.Reason)
	}
	c.touch(dest)
	c.printf("ok\n")
	return nil
}

// touch updates the last-seen time of a known device.
func (c *Console) touch(dest uid.UID) {
	for i := range c.known {
		if c.known[i].UID == dest.String() {
			c.known[i].LastSeenAt = time.Now()
			c.persist()
			return
		}
	}
}

func (c *Console) restore() {
	if c.store == nil {
		return
	}
	state, err := c.store.Load()
	if err != nil {
		c.printf("warning: load controller state: %v\n", err)
		return
	}
	if state != nil {
		c.known = state.Devices
	}
}

func (c *Console) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(&persistence.ControllerState{Devices: c.known}); err != nil {
		c.printf("warning: save controller state: %v\n", err)
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

package controller

import (
	"context"
	"errors"
	"time"

	"github.com/rdm-protocol/rdm-go/pkg/frame"
	"github.com/rdm-protocol/rdm-go/pkg/log"
	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/port"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

// rangeStackSize bounds the pending-range stack. Splitting the 48-bit
// UID space in half at every level needs at most one pending range per
// level, so 49 entries cover the worst case without allocation.
const rangeStackSize = 49

// muteRetries is how often a freshly found device is asked to mute
// before discovery gives up on it.
const muteRetries = 3

// singleUIDRetries is how often a single-UID range that keeps
// colliding is re-probed before being reported as an anomaly. A
// persistent collision on one UID means two devices share it.
const singleUIDRetries = 3

// Anomaly records a part of the UID space discovery could not settle.
type Anomaly struct {
	// Lower and Upper bound the troubled range.
	Lower uid.UID
	Upper uid.UID

	// Reason says what went wrong.
	Reason string
}

// DiscoveryReport is the outcome of one full discovery sweep.
type DiscoveryReport struct {
	// Devices lists every device found and muted, in discovery order.
	Devices []uid.UID

	// Anomalies lists ranges that did not resolve cleanly.
	Anomalies []Anomaly

	// Probes counts the DISC_UNIQUE_BRANCH requests sent.
	Probes int
}

// probeOutcome classifies one branch probe.
type probeOutcome uint8

const (
	probeSilent probeOutcome = iota
	probeFound
	probeCollision
)

// Discover runs a full discovery sweep: un-mute everything, then
// binary-search the UID space, muting each device as it is found so it
// stops answering subsequent probes. onFound, when non-nil, is called
// once per device as it is confirmed.
func (c *Controller) Discover(ctx context.Context, onFound func(uid.UID)) (*DiscoveryReport, error) {
	report := &DiscoveryReport{}

	if err := c.UnMuteAll(ctx); err != nil {
		return nil, err
	}
	c.logSweep("start")
	defer c.logSweep("end")

	type branch struct{ lower, upper uint64 }
	var stack [rangeStackSize]branch
	sp := 0
	stack[sp] = branch{uid.Null.Uint64(), uid.Max.Uint64()}
	sp++

	seen := make(map[uid.UID]bool)

	for sp > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sp--
		b := stack[sp]
		lower, upper := uid.FromUint64(b.lower), uid.FromUint64(b.upper)

		retries := 0
	probe:
		for {
			outcome, found, err := c.probeBranch(ctx, lower, upper)
			if err != nil {
				return report, err
			}
			report.Probes++

			switch outcome {
			case probeSilent:
				break probe

			case probeFound:
				if seen[found] {
					// A device that keeps answering after a mute is
					// stuck; leave the branch before looping forever.
					report.Anomalies = append(report.Anomalies, Anomaly{
						Lower: lower, Upper: upper,
						Reason: "device " + found.String() + " answers while muted",
					})
					break probe
				}
				if !c.confirm(ctx, found) {
					report.Anomalies = append(report.Anomalies, Anomaly{
						Lower: lower, Upper: upper,
						Reason: "device " + found.String() + " refused mute",
					})
					break probe
				}
				seen[found] = true
				report.Devices = append(report.Devices, found)
				if onFound != nil {
					onFound(found)
				}
				// More devices may share the branch; probe it again
				// now that this one is muted.

			case probeCollision:
				if b.lower == b.upper {
					// Cannot split further. Retry a few times in case
					// the collision was line noise, then report: two
					// physical devices answering on one UID.
					retries++
					if retries <= singleUIDRetries {
						continue
					}
					report.Anomalies = append(report.Anomalies, Anomaly{
						Lower: lower, Upper: upper,
						Reason: "persistent collision on a single UID",
					})
					break probe
				}
				if sp+2 > rangeStackSize {
					report.Anomalies = append(report.Anomalies, Anomaly{
						Lower: lower, Upper: upper,
						Reason: "range stack overflow",
					})
					break probe
				}
				mid := b.lower + (b.upper-b.lower)/2
				stack[sp] = branch{b.lower, mid}
				stack[sp+1] = branch{mid + 1, b.upper}
				sp += 2
				break probe
			}
		}
	}

	return report, nil
}

// probeBranch sends one DISC_UNIQUE_BRANCH and classifies what came
// back. A checksum failure on the discovery response is the collision
// signal, not an error.
func (c *Controller) probeBranch(ctx context.Context, lower, upper uid.UID) (probeOutcome, uid.UID, error) {
	pdData, err := (&param.DiscUniqueBranch{Lower: lower, Upper: upper}).Encode()
	if err != nil {
		return probeSilent, uid.Null, err
	}
	req, err := c.encodeRequest(c.nextTN(), uid.BroadcastAll, param.SubDeviceRoot, param.CCDiscCommand, param.PIDDiscUniqueBranch, pdData)
	if err != nil {
		return probeSilent, uid.Null, err
	}

	pkt, err := c.port.Exchange(ctx, req, port.ExpectDiscResponse)
	switch {
	case errors.Is(err, port.ErrTimeout):
		c.logProbe(log.DiscoverySilent, lower, upper, uid.Null)
		return probeSilent, uid.Null, nil
	case err != nil:
		return probeSilent, uid.Null, err
	}

	found, err := frame.DecodeDiscResponse(pkt)
	if err != nil {
		// Checksum damage, missing delimiter, or a trampled normal
		// packet: in every case several transmitters overlapped.
		c.logProbe(log.DiscoveryCollision, lower, upper, uid.Null)
		return probeCollision, uid.Null, nil
	}

	c.logProbe(log.DiscoveryFound, lower, upper, found)
	return probeFound, found, nil
}

// confirm mutes a freshly found device and verifies it acknowledges.
func (c *Controller) confirm(ctx context.Context, device uid.UID) bool {
	for i := 0; i < muteRetries; i++ {
		if _, err := c.Mute(ctx, device); err == nil {
			return true
		} else if ctx.Err() != nil {
			return false
		}
	}
	return false
}

func (c *Controller) logProbe(outcome log.DiscoveryOutcome, lower, upper, found uid.UID) {
	event := log.Event{
		Timestamp: time.Now(),
		PortID:    c.port.ID(),
		Direction: log.DirectionOut,
		Layer:     log.LayerEngine,
		Category:  log.CategoryDiscovery,
		LocalRole: log.RoleController,
		Discovery: &log.DiscoveryEvent{
			Outcome: outcome,
			Lower:   lower.String(),
			Upper:   upper.String(),
		},
	}
	if outcome == log.DiscoveryFound {
		event.DeviceUID = found.String()
		event.Discovery.Found = found.String()
	}
	c.logger.Log(event)
}

func (c *Controller) logSweep(state string) {
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		PortID:    c.port.ID(),
		Direction: log.DirectionOut,
		Layer:     log.LayerEngine,
		Category:  log.CategoryState,
		LocalRole: log.RoleController,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDiscovery,
			NewState: state,
		},
	})
}

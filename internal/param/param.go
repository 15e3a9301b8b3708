// Package param implements timestamped parameter automation.
//
// A Param holds a list of events scheduled against the audio clock. The
// renderer evaluates ValueAt for each sample it produces, so the audible
// result depends only on the timestamps, never on when the scheduling code
// happened to run.
package param

import "math"

// history is how long already-elapsed automation is kept before Hold folds
// it into a single event. The renderer may still evaluate times up to one
// frame before the control clock.
const history = 1.0

// minExp keeps exponential ramps away from zero.
const minExp = 1e-6

type kind int

const (
	setValue kind = iota
	linearRamp
	exponentialRamp
	setTarget
)

type event struct {
	kind  kind
	time  float64
	value float64
	tc    float64 // time constant, setTarget only
}

// Param is an automatable value. Not safe for concurrent use.
type Param struct {
	initial float64
	events  []event
}

// New creates a Param holding value until automation says otherwise.
func New(value float64) *Param {
	return &Param{initial: value}
}

// SetValueAtTime jumps to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(event{kind: setValue, time: t, value: v})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v,
// arriving at time t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(event{kind: linearRamp, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps geometrically from the previous event
// to v, arriving at time t. Values are kept strictly positive.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(event{kind: exponentialRamp, time: t, value: math.Max(v, minExp)})
}

// SetTargetAtTime approaches target exponentially from time t with the given
// time constant in seconds.
func (p *Param) SetTargetAtTime(target, t, timeConstant float64) {
	if timeConstant <= 0 {
		p.SetValueAtTime(target, t)
		return
	}
	p.insert(event{kind: setTarget, time: t, value: target, tc: timeConstant})
}

// cancelScheduledValues drops every event at or after t.
func (p *Param) cancelScheduledValues(t float64) {
	for i, e := range p.events {
		if e.time >= t {
			p.events = p.events[:i]
			return
		}
	}
}

// Hold cancels automation from t on and pins the value the param has at t,
// so that new automation starts from where the old curve was. Elapsed
// history older than a second is folded away.
func (p *Param) Hold(t float64) {
	v := p.ValueAt(t)

	i := 0
	for i < len(p.events) && p.events[i].time < t {
		i++
	}
	inRamp := i < len(p.events) &&
		(p.events[i].kind == linearRamp || p.events[i].kind == exponentialRamp)
	cut := event{kind: setValue, time: t, value: v}
	if inRamp {
		// Truncate the running ramp at t so the part already rendered keeps
		// its shape.
		cut.kind = p.events[i].kind
	}
	p.cancelScheduledValues(t)
	p.insert(cut)
	p.compact(t - history)
}

// Target returns the value the automation settles on once every scheduled
// event has played out.
func (p *Param) Target() float64 {
	if len(p.events) == 0 {
		return p.initial
	}
	return p.events[len(p.events)-1].value
}

// Len returns the number of scheduled events.
func (p *Param) Len() int { return len(p.events) }

// ValueAt evaluates the automation curve at clock time t.
func (p *Param) ValueAt(t float64) float64 {
	v := p.initial
	vt := math.Inf(-1)
	var target *event

	for i := range p.events {
		e := &p.events[i]
		if e.time > t {
			switch e.kind {
			case linearRamp:
				return lerp(v, e.value, vt, e.time, t)
			case exponentialRamp:
				return expInterp(v, e.value, vt, e.time, t)
			}
			break
		}

		if target != nil {
			v = approach(v, target, e.time)
			vt = e.time
		}
		target = nil

		switch e.kind {
		case setTarget:
			target = e
			vt = e.time
		default:
			v = e.value
			vt = e.time
		}
	}

	if target != nil {
		return approach(v, target, t)
	}
	return v
}

// compact folds every event at or before h into an equivalent head so the
// curve is unchanged for times after h.
func (p *Param) compact(h float64) {
	k := 0
	for k < len(p.events) && p.events[k].time <= h {
		k++
	}
	if k == 0 {
		return
	}

	v := p.ValueAt(h)
	last := p.events[k-1]
	head := []event{{kind: setValue, time: h, value: v}}
	if last.kind == setTarget {
		head = append(head, event{kind: setTarget, time: h, value: last.value, tc: last.tc})
	}

	rest := p.events[k:]
	events := make([]event, 0, len(head)+len(rest))
	events = append(events, head...)
	events = append(events, rest...)
	p.events = events
	p.initial = v
}

// insert keeps events sorted by time; equal times keep insertion order.
func (p *Param) insert(e event) {
	i := len(p.events)
	for i > 0 && p.events[i-1].time > e.time {
		i--
	}
	p.events = append(p.events, event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

func approach(from float64, e *event, t float64) float64 {
	if t <= e.time {
		return from
	}
	return e.value + (from-e.value)*math.Exp(-(t-e.time)/e.tc)
}

func lerp(v0, v1, t0, t1, t float64) float64 {
	if math.IsInf(t0, -1) || t1 <= t0 {
		return v0
	}
	return v0 + (v1-v0)*(t-t0)/(t1-t0)
}

func expInterp(v0, v1, t0, t1, t float64) float64 {
	if math.IsInf(t0, -1) || t1 <= t0 || v0 <= 0 || v1 <= 0 {
		return v0
	}
	return v0 * math.Pow(v1/v0, (t-t0)/(t1-t0))
}

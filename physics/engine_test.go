package physics

import (
	"errors"
	"math"
	"testing"

	"skirace/config"
	"skirace/world"
)

const dt = 0.05

func newEngine() (*Engine, config.Tuning) {
	tu := config.DefaultTuning()
	return NewEngine(tu, 0), tu
}

func TestStepFirstTickNoInput(t *testing.T) {
	e, tu := newEngine()
	s := NewPlayerState("p1", tu.MinSpeed)

	events := e.Step(&s, Intent{}, dt, nil, 0)
	if len(events) != 0 {
		t.Fatalf("unexpected events: %+v", events)
	}

	speed := math.Min(tu.MinSpeed+tu.Acceleration*dt, tu.MaxSpeed)
	wantVY := speed * tu.Friction
	if s.Velocity.Y != wantVY || s.Velocity.X != 0 {
		t.Fatalf("velocity = %+v, want (0, %v)", s.Velocity, wantVY)
	}
	if s.Position.Y != wantVY*dt {
		t.Fatalf("position.y = %v, want %v", s.Position.Y, wantVY*dt)
	}
	if want := int(math.Floor(wantVY * dt)); s.Score != want {
		t.Fatalf("score = %d, want %d", s.Score, want)
	}
	if s.Distance != s.Position.Y {
		t.Fatalf("distance = %v, want %v", s.Distance, s.Position.Y)
	}
}

func TestStepSpeedClampedToMax(t *testing.T) {
	e, tu := newEngine()
	s := NewPlayerState("p1", tu.MinSpeed)
	for i := 0; i < 400; i++ {
		e.Step(&s, Intent{Tuck: true}, dt, nil, 0)
		if s.Speed > tu.MaxSpeed {
			t.Fatalf("tick %d: speed %v above max", i, s.Speed)
		}
	}
	if s.Speed < tu.MaxSpeed*tu.Friction-1e-9 {
		t.Fatalf("tucking should reach the cap, speed = %v", s.Speed)
	}
}

func TestBrakeOverridesTuck(t *testing.T) {
	e, tu := newEngine()
	a := NewPlayerState("a", tu.MinSpeed)
	a.Velocity = Vec2{Y: 500}
	b := a

	e.Step(&a, Intent{Brake: true, Tuck: true}, dt, nil, 0)
	e.Step(&b, Intent{Brake: true}, dt, nil, 0)
	if a.Velocity != b.Velocity {
		t.Fatalf("brake+tuck %+v differs from brake %+v", a.Velocity, b.Velocity)
	}
	if a.Speed >= 500 {
		t.Fatalf("braking did not slow down: %v", a.Speed)
	}
}

func TestSteerTurnsOnlyOnGround(t *testing.T) {
	e, tu := newEngine()
	s := NewPlayerState("p", tu.MinSpeed)
	e.Step(&s, Intent{Steer: 1}, dt, nil, 0)
	if s.Velocity.X <= 0 {
		t.Fatalf("steer right should add +x velocity, got %+v", s.Velocity)
	}

	air := NewPlayerState("q", tu.MinSpeed)
	e.Step(&air, Intent{Jump: true}, dt, nil, 0)
	e.Step(&air, Intent{Steer: 1}, dt, nil, 0)
	if air.Velocity.X != 0 {
		t.Fatalf("airborne steering changed heading: %+v", air.Velocity)
	}
}

func TestHeadingClamped(t *testing.T) {
	e, tu := newEngine()
	s := NewPlayerState("p", tu.MinSpeed)
	for i := 0; i < 200; i++ {
		e.Step(&s, Intent{Steer: -1}, dt, nil, 0)
	}
	h := math.Atan2(s.Velocity.X, s.Velocity.Y)
	if h < -tu.MaxHeading-1e-9 {
		t.Fatalf("heading %v beyond clamp", h)
	}
	if s.Velocity.Y <= 0 {
		t.Fatalf("player turned uphill: %+v", s.Velocity)
	}
}

func TestJumpAndTrickLanding(t *testing.T) {
	e, tu := newEngine()
	s := NewPlayerState("p", tu.MinSpeed)

	e.Step(&s, Intent{Jump: true}, dt, nil, 0)
	if s.Status != Jumping {
		t.Fatalf("status = %v, want jumping", s.Status)
	}
	if want := tu.JumpImpulse - tu.Gravity*dt; math.Abs(s.VZ-want) > 1e-9 {
		t.Fatalf("vz = %v, want %v", s.VZ, want)
	}

	var trick *Event
	for i := 0; i < 40 && s.Status == Jumping; i++ {
		for _, ev := range e.Step(&s, Intent{}, dt, nil, 0) {
			if ev.Type == EventTrick {
				ev := ev
				trick = &ev
			}
		}
	}
	if s.Status != Skiing {
		t.Fatalf("never landed, status = %v", s.Status)
	}
	if trick == nil || trick.Score <= 0 || trick.PlayerID != "p" {
		t.Fatalf("expected trick event, got %+v", trick)
	}
}

func TestShortHopNoTrick(t *testing.T) {
	tu := config.DefaultTuning()
	tu.JumpImpulse = 50
	tu.MinAirTime = 0.1
	e := NewEngine(tu, 0)
	s := NewPlayerState("p", tu.MinSpeed)
	e.Step(&s, Intent{Jump: true}, dt, nil, 0)
	for i := 0; i < 20 && s.Status == Jumping; i++ {
		for _, ev := range e.Step(&s, Intent{}, dt, nil, 0) {
			if ev.Type == EventTrick {
				t.Fatalf("hop below trick window produced %+v", ev)
			}
		}
	}
	if s.Status != Skiing {
		t.Fatalf("did not land")
	}
}

func TestCollisionScenario(t *testing.T) {
	e, tu := newEngine()
	first := &world.Object{ID: "tree_0_100", Kind: world.KindTree, X: 0, Y: 100, Radius: 15, Active: true}
	second := &world.Object{ID: "tree_0_400", Kind: world.KindTree, X: 0, Y: 400, Radius: 15, Active: true}
	nearby := []*world.Object{first, second}

	s := NewPlayerState("p", tu.MinSpeed)
	var hit []Event
	for i := 0; i < 100 && s.Status == Skiing; i++ {
		before := s
		hit = e.Step(&s, Intent{}, dt, nearby, 0)
		if s.Status == Crashed {
			gain := int(math.Floor(s.Position.Y - before.Position.Y))
			if want := before.Score + gain + tu.CrashPenalty; s.Score != want {
				t.Fatalf("score = %d, want %d", s.Score, want)
			}
		}
	}
	if s.Status != Crashed {
		t.Fatalf("never crashed")
	}
	threshold := first.Y - (tu.PlayerRadius + first.Radius)
	if s.Position.Y <= threshold || s.Position.Y > threshold+tu.MaxSpeed*dt {
		t.Fatalf("crash at y=%v, want just past %v", s.Position.Y, threshold)
	}
	if s.Velocity != (Vec2{}) {
		t.Fatalf("velocity not zeroed: %+v", s.Velocity)
	}
	if len(hit) != 1 || hit[0].Type != EventCollision || hit[0].ObjectID != first.ID {
		t.Fatalf("events = %+v", hit)
	}
}

func TestCrashedIsIdempotent(t *testing.T) {
	e, tu := newEngine()
	s := NewPlayerState("p", tu.MinSpeed)
	Crash(&s, tu.CrashPenalty)
	frozen := s
	obj := &world.Object{ID: "rock_0_0", Kind: world.KindRock, Radius: 50, Active: true}
	for i := 0; i < 10; i++ {
		if ev := e.Step(&s, Intent{Jump: true, Tuck: true, Steer: 1}, dt, []*world.Object{obj}, 0); len(ev) != 0 {
			t.Fatalf("crashed player emitted %+v", ev)
		}
	}
	if s != frozen {
		t.Fatalf("crashed state changed: %+v -> %+v", frozen, s)
	}
}

func TestOverlapsBoundary(t *testing.T) {
	if Overlaps(Vec2{}, 2, Vec2{X: 3, Y: 4}, 3) {
		t.Fatalf("touching circles must not collide")
	}
	if !Overlaps(Vec2{}, 2, Vec2{X: 3, Y: 4}, 3.0001) {
		t.Fatalf("overlapping circles must collide")
	}
	if Overlaps(Vec2{}, 1, Vec2{X: 10}, 1) {
		t.Fatalf("distant circles must not collide")
	}
}

func TestPickupGrantsEffectAndShieldProtects(t *testing.T) {
	e, tu := newEngine()
	s := NewPlayerState("p", tu.MinSpeed)
	shield := &world.Object{ID: "pickup_shield_0_5", Kind: world.KindPickupShield, Y: 5, Radius: 12, Active: true}

	events := e.Step(&s, Intent{}, dt, []*world.Object{shield}, 1000)
	if len(events) != 1 || events[0].Type != EventPickup || events[0].PickupType != "pickup_shield" || events[0].ObjectID != shield.ID {
		t.Fatalf("events = %+v", events)
	}
	if !s.Effects.Active(EffectShield, 1000) || s.Effects.Active(EffectBoost, 1000) {
		t.Fatalf("effects = %+v", s.Effects)
	}
	if s.Effects[EffectShield] != 1000+tu.EffectDurationMs {
		t.Fatalf("expiry = %d", s.Effects[EffectShield])
	}
	if s.Score < tu.PickupScore {
		t.Fatalf("pickup score not awarded: %d", s.Score)
	}

	tree := &world.Object{ID: "tree", Kind: world.KindTree, X: s.Position.X, Y: s.Position.Y + 5, Radius: 15, Active: true}
	if ev := e.Step(&s, Intent{}, dt, []*world.Object{tree}, 2000); len(ev) != 0 || s.Status != Skiing {
		t.Fatalf("shielded player crashed: %+v %v", ev, s.Status)
	}

	expired := 1000 + tu.EffectDurationMs
	tree.Y = s.Position.Y + 5
	e.Step(&s, Intent{}, dt, []*world.Object{tree}, expired)
	if s.Status != Crashed {
		t.Fatalf("expired shield still protects")
	}
}

func TestBoostRaisesAcceleration(t *testing.T) {
	e, tu := newEngine()
	plain := NewPlayerState("a", tu.MinSpeed)
	boosted := plain
	boosted.Effects.Grant(EffectBoost, 10_000)

	e.Step(&plain, Intent{}, dt, nil, 0)
	e.Step(&boosted, Intent{}, dt, nil, 0)
	if boosted.Speed <= plain.Speed {
		t.Fatalf("boost did not help: %v <= %v", boosted.Speed, plain.Speed)
	}
}

func TestRampLaunchesInsteadOfCrash(t *testing.T) {
	e, tu := newEngine()
	s := NewPlayerState("p", tu.MinSpeed)
	s.Position.Y = 1000
	ramp := &world.Object{ID: "ramp", Kind: world.KindRamp, Y: 1005, Radius: 20, Active: true}

	e.Step(&s, Intent{}, dt, []*world.Object{ramp}, 0)
	if s.Status != Jumping {
		t.Fatalf("status = %v, want jumping", s.Status)
	}
	if s.LastJumpY != s.Position.Y {
		t.Fatalf("LastJumpY = %v, want %v", s.LastJumpY, s.Position.Y)
	}
}

func TestFinishDistance(t *testing.T) {
	tu := config.DefaultTuning()
	e := NewEngine(tu, 20)
	s := NewPlayerState("p", tu.MinSpeed)
	for i := 0; i < 10 && s.Status == Skiing; i++ {
		e.Step(&s, Intent{}, dt, nil, 0)
	}
	if s.Status != Finished {
		t.Fatalf("status = %v, want finished", s.Status)
	}
	pos := s.Position
	e.Step(&s, Intent{}, dt, nil, 0)
	if s.Position != pos {
		t.Fatalf("finished player moved")
	}
}

func TestValidateAcceptsHonestSteps(t *testing.T) {
	e, tu := newEngine()
	s := NewPlayerState("p", tu.MinSpeed)
	for i := 0; i < 200; i++ {
		old := s
		in := Intent{Tuck: i%3 == 0, Brake: i%7 == 0, Steer: math.Sin(float64(i))}
		e.Step(&s, in, dt, nil, 0)
		if err := e.Validate(old, s, dt); err != nil {
			t.Fatalf("tick %d: honest step rejected: %v", i, err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	e, tu := newEngine()
	old := NewPlayerState("p", tu.MinSpeed)

	cases := map[string]PlayerState{}

	fast := old
	fast.Velocity = Vec2{Y: tu.MaxSpeed * 2}
	cases[ViolationSpeed] = fast

	jerk := old
	jerk.Velocity = Vec2{Y: tu.MaxSpeed}
	cases[ViolationAcceleration] = jerk

	warp := old
	warp.Position = Vec2{X: 500, Y: 500}
	cases[ViolationTeleport] = warp

	for kind, next := range cases {
		err := e.Validate(old, next, dt)
		var v *Violation
		if !errors.As(err, &v) || v.Kind != kind {
			t.Fatalf("%s: got %v", kind, err)
		}
	}
}

func TestValidateAllowsCrashStop(t *testing.T) {
	e, tu := newEngine()
	old := NewPlayerState("p", tu.MinSpeed)
	old.Velocity = Vec2{Y: tu.MaxSpeed}
	crashed := old
	Crash(&crashed, tu.CrashPenalty)
	if err := e.Validate(old, crashed, dt); err != nil {
		t.Fatalf("crash stop rejected: %v", err)
	}
}

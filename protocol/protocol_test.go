package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"skirace/match"
	"skirace/physics"
)

func TestDecodeValid(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"input","seq":4,"tick":10,"dtMs":16.6,"intent":{"steer":-0.5,"brake":0,"tuck":1,"jump":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	in, ok := msg.(Input)
	if !ok {
		t.Fatalf("got %T", msg)
	}
	want := Input{Seq: 4, Tick: 10, DtMs: 17, Intent: physics.Intent{Steer: -0.5, Tuck: true, Jump: true}}
	if in != want {
		t.Fatalf("input = %+v, want %+v", in, want)
	}

	msg, err = Decode([]byte(`{"type":"auth","token":"","mode":"quick","roomCode":"ABC234"}`))
	if err != nil {
		t.Fatal(err)
	}
	if a := msg.(Auth); a.Mode != "quick" || a.RoomCode != "ABC234" || a.Token != "" {
		t.Fatalf("auth = %+v", a)
	}

	msg, err = Decode([]byte(`{"type":"ping","clientTime":1700000000123.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if p := msg.(Ping); p.ClientTime != 1700000000123.5 {
		t.Fatalf("ping = %+v", p)
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"type":`,
		"array":           `[1,2]`,
		"no type":         `{"seq":1}`,
		"unknown type":    `{"type":"teleport"}`,
		"unknown field":   `{"type":"ping","clientTime":1,"admin":true}`,
		"trailing":        `{"type":"ping","clientTime":1}{"type":"ping","clientTime":2}`,
		"missing token":   `{"type":"auth","mode":"quick"}`,
		"missing mode":    `{"type":"auth","token":"x"}`,
		"missing intent":  `{"type":"input","seq":1,"tick":1,"dtMs":16}`,
		"negative seq":    `{"type":"input","seq":-1,"tick":1,"dtMs":16,"intent":{"steer":0,"brake":0,"tuck":0,"jump":0}}`,
		"fractional seq":  `{"type":"input","seq":1.5,"tick":1,"dtMs":16,"intent":{"steer":0,"brake":0,"tuck":0,"jump":0}}`,
		"negative tick":   `{"type":"input","seq":1,"tick":-3,"dtMs":16,"intent":{"steer":0,"brake":0,"tuck":0,"jump":0}}`,
		"dt too large":    `{"type":"input","seq":1,"tick":1,"dtMs":101,"intent":{"steer":0,"brake":0,"tuck":0,"jump":0}}`,
		"steer too large": `{"type":"input","seq":1,"tick":1,"dtMs":16,"intent":{"steer":1.01,"brake":0,"tuck":0,"jump":0}}`,
		"brake is 2":      `{"type":"input","seq":1,"tick":1,"dtMs":16,"intent":{"steer":0,"brake":2,"tuck":0,"jump":0}}`,
		"bool flag":       `{"type":"input","seq":1,"tick":1,"dtMs":16,"intent":{"steer":0,"brake":true,"tuck":0,"jump":0}}`,
		"missing jump":    `{"type":"input","seq":1,"tick":1,"dtMs":16,"intent":{"steer":0,"brake":0,"tuck":0}}`,
		"intent extra":    `{"type":"input","seq":1,"tick":1,"dtMs":16,"intent":{"steer":0,"brake":0,"tuck":0,"jump":0,"fly":1}}`,
		"missing clock":   `{"type":"ping"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if Code(err) != CodeInvalidMessage {
				t.Fatalf("code = %s", Code(err))
			}
		})
	}

	big := `{"type":"auth","token":"` + strings.Repeat("x", MaxMessageSize) + `","mode":"quick"}`
	if _, err := Decode([]byte(big)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("oversized message err = %v", err)
	}
}

func TestCodeMapping(t *testing.T) {
	if got := Code(Errorf(CodeMatchFull, "match %s is full", "m1")); got != CodeMatchFull {
		t.Fatalf("code = %s", got)
	}
	if got := Code(errors.New("boom")); got != CodeServerError {
		t.Fatalf("code = %s", got)
	}
	e := NewError(Errorf(CodeMatchNotFound, "no room %q", "ZZZ"))
	if e.Type != TypeError || e.Code != CodeMatchNotFound || e.Message != `no room "ZZZ"` {
		t.Fatalf("error message = %+v", e)
	}
}

func testFrame() match.Frame {
	a := physics.NewPlayerState("a", 100)
	a.Position = physics.Vec2{X: 3, Y: 40}
	a.Status = physics.Jumping
	a.VZ = 120
	a.Airborne = 0.2
	a.Effects.Grant(physics.EffectShield, 5000)
	b := physics.NewPlayerState("b", 100)
	c := physics.NewPlayerState("c", 100)
	return match.Frame{
		State: match.State{
			Tick:       12,
			ServerTime: 99,
			Players: []match.PlayerView{
				{ID: "a", Connected: true, Physics: a},
				{ID: "b", Connected: true, Physics: b},
				{ID: "c", Connected: false, Physics: c},
			},
		},
		Acks:   map[string]int64{"a": 5, "b": -1},
		Events: []physics.Event{{Type: physics.EventTrick, PlayerID: "a", Score: 80}},
	}
}

func TestBuildSnapshotPersonalised(t *testing.T) {
	f := testFrame()
	sa := BuildSnapshot(f, "a")
	sb := BuildSnapshot(f, "b")

	if sa.Type != TypeSnapshot || sa.Tick != 12 || sa.ServerTime != 99 {
		t.Fatalf("header = %+v", sa)
	}
	if len(sa.Players) != 2 {
		t.Fatalf("disconnected player included: %+v", sa.Players)
	}
	if !sa.Players[0].IsYou || sa.Players[1].IsYou || sa.You.AckSeq != 5 {
		t.Fatalf("snapshot for a = %+v", sa)
	}
	if sb.Players[0].IsYou || !sb.Players[1].IsYou || sb.You.AckSeq != -1 {
		t.Fatalf("snapshot for b = %+v", sb)
	}
	if sa.Players[0].State != "jumping" {
		t.Fatalf("state = %s", sa.Players[0].State)
	}
	// 旁观者没有确认记录
	if BuildSnapshot(f, "zz").You.AckSeq != -1 {
		t.Fatal("unknown connection got an ack")
	}
}

func TestSnapshotStateRoundTrip(t *testing.T) {
	f := testFrame()
	orig := f.Players[0].Physics
	got := FromState(orig).ToState()
	if got != orig {
		t.Fatalf("round trip = %+v, want %+v", got, orig)
	}
}

func TestSnapshotWireShape(t *testing.T) {
	data, err := JSON.Encode(BuildSnapshot(testFrame(), "a"))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"type", "tick", "serverTime", "players", "you", "events"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("missing %q in %s", k, data)
		}
	}
	if _, ok := raw["objectsDelta"]; ok {
		t.Fatalf("empty objectsDelta serialised: %s", data)
	}
	p := raw["players"].([]any)[1].(map[string]any)
	if _, ok := p["isYou"]; ok {
		t.Fatalf("isYou present for other player: %v", p)
	}
}

func TestMsgpackUsesJSONNames(t *testing.T) {
	data, err := Msgpack.Encode(Pong{Type: TypePong, ClientTime: 1.5, ServerTime: 7})
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["type"] != TypePong || raw["clientTime"] != 1.5 {
		t.Fatalf("decoded = %v", raw)
	}
	if !Msgpack.Binary() || JSON.Binary() {
		t.Fatal("binary flags wrong")
	}
}

func TestMsgpackDecode(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{"type": "ping", "clientTime": 42})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := Msgpack.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if p := msg.(Ping); p.ClientTime != 42 {
		t.Fatalf("ping = %+v", p)
	}
	if _, err := Msgpack.Decode([]byte(`{"type":"ping","clientTime":1}`)); err != nil {
		t.Fatalf("json over msgpack codec: %v", err)
	}
	if _, err := Msgpack.Decode([]byte{0xc1}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("garbage err = %v", err)
	}
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]Codec{"": JSON, "json": JSON, "msgpack": Msgpack} {
		got, err := CodecByName(name)
		if err != nil || got != want {
			t.Fatalf("CodecByName(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Fatal("unknown codec accepted")
	}
}

func TestSchemaListsClientMessages(t *testing.T) {
	data, err := json.Marshal(Schema())
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"oneOf"`, `"clientTime"`, `"dtMs"`, `"steer"`, `"roomCode"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("schema missing %s: %s", want, s)
		}
	}
}

func TestMatchEndFromResults(t *testing.T) {
	res := &match.MatchResult{Results: []match.Result{
		{PlayerID: "a", DisplayName: "A", Placement: 1, Score: 300, Distance: 250},
		{PlayerID: "b", DisplayName: "B", Placement: 2, Score: 10, Distance: 20},
	}}
	end := NewMatchEnd(res)
	if end.Type != TypeMatchEnd || len(end.FinalResults) != 2 || end.FinalResults[1].Placement != 2 {
		t.Fatalf("match_end = %+v", end)
	}
}

package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nadzzz/carvoice/internal/dispatch"
	"github.com/nadzzz/carvoice/internal/interpreter/gateway"
	"github.com/nadzzz/carvoice/internal/interpreter/realtime"
	"github.com/nadzzz/carvoice/internal/message"
	"github.com/nadzzz/carvoice/internal/tools"
	"github.com/nadzzz/carvoice/internal/tts"
)

type fakeConn struct {
	mu       sync.Mutex
	subs     map[string]nats.MsgHandler
	requests []*nats.Msg
	reply    func(subj string, data []byte) (*nats.Msg, error)
	pubCh    chan *nats.Msg
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		subs:  make(map[string]nats.MsgHandler),
		pubCh: make(chan *nats.Msg, 16),
		reply: func(string, []byte) (*nats.Msg, error) {
			return &nats.Msg{Data: []byte(`{"ok":true}`)}, nil
		},
	}
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	c.pubCh <- &nats.Msg{Subject: subj, Data: data}
	return nil
}

func (c *fakeConn) PublishMsg(m *nats.Msg) error {
	c.pubCh <- m
	return nil
}

func (c *fakeConn) RequestWithContext(_ context.Context, subj string, data []byte) (*nats.Msg, error) {
	c.mu.Lock()
	c.requests = append(c.requests, &nats.Msg{Subject: subj, Data: data})
	reply := c.reply
	c.mu.Unlock()
	return reply(subj, data)
}

func (c *fakeConn) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[subj] = cb
	return &nats.Subscription{Subject: subj}, nil
}

func (c *fakeConn) handler(subj string) (nats.MsgHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.subs[subj]
	return h, ok
}

func (c *fakeConn) deliver(t *testing.T, subj, reply string, data string) {
	t.Helper()
	h, ok := c.handler(subj)
	if !ok {
		t.Fatalf("no subscription on %s", subj)
	}
	h(&nats.Msg{Subject: subj, Reply: reply, Data: []byte(data)})
}

func (c *fakeConn) next(t *testing.T) *nats.Msg {
	t.Helper()
	select {
	case m := <-c.pubCh:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publish")
		return nil
	}
}

type stubTool struct{}

func (stubTool) Name() string        { return "web_search" }
func (stubTool) Description() string { return "search" }
func (stubTool) Invoke(_ context.Context, q string) string {
	return "answer to " + q
}

type stubSynth struct{ err error }

func (stubSynth) Name() string { return "cartesia" }
func (stubSynth) SynthesisSpec() tts.Spec {
	return tts.Spec{Kind: "cartesia", Voice: "abc", InProcess: true}
}
func (s stubSynth) Synthesize(_ context.Context, text string, _ tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &tts.SynthesizeResult{Audio: []byte("pcm:" + text), ContentType: tts.ContentType, SampleRate: tts.SampleRate, Channels: 1}, nil
}
func (stubSynth) Close() error { return nil }

func realtimePlan() dispatch.Plan {
	m := realtime.New("cartesia/sonic-3:abc")
	return dispatch.Plan{
		JobID:        "job-1",
		Room:         "car-42",
		RoomURL:      "wss://rooms.example.com",
		Token:        "tok",
		Identity:     "carvoice-agent",
		Instructions: dispatch.Instructions,
		Backends:     dispatch.Backends{Understanding: m, Synthesis: m},
		Tools:        tools.NewSet(stubTool{}),
	}
}

func TestSubjectsFor(t *testing.T) {
	s := SubjectsFor("carvoice.sessions", "job-1")
	if s.Start != "carvoice.sessions.job-1.start" || s.Ended != "carvoice.sessions.job-1.ended" {
		t.Errorf("subjects = %+v", s)
	}
	if got := s.Tool("web_search"); got != "carvoice.sessions.job-1.tools.web_search" {
		t.Errorf("Tool() = %q", got)
	}
}

func TestRuntime_Start(t *testing.T) {
	conn := newFakeConn()
	rt := New(conn, Options{}).Connect("job-1")

	if err := rt.Start(context.Background(), realtimePlan()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(conn.requests) != 1 || conn.requests[0].Subject != "carvoice.sessions.job-1.start" {
		t.Fatalf("requests = %v", conn.requests)
	}
	var req startRequest
	if err := json.Unmarshal(conn.requests[0].Data, &req); err != nil {
		t.Fatalf("decoding start request: %v", err)
	}
	if req.Understanding.Kind != "realtime" || req.Synthesis.Kind != "realtime" {
		t.Errorf("backends = %+v / %+v", req.Understanding, req.Synthesis)
	}
	if req.Token != "tok" || req.Instructions != dispatch.Instructions {
		t.Errorf("request = %+v", req)
	}
	if len(req.Tools) != 1 || req.Tools[0].Subject != "carvoice.sessions.job-1.tools.web_search" {
		t.Errorf("tools = %+v", req.Tools)
	}
	if req.Subjects.TTS != "" {
		t.Errorf("tts subject should be empty without in-process synthesis, got %q", req.Subjects.TTS)
	}

	for _, subj := range []string{
		"carvoice.sessions.job-1.transcripts",
		"carvoice.sessions.job-1.ended",
		"carvoice.sessions.job-1.tools.web_search",
	} {
		if _, ok := conn.handler(subj); !ok {
			t.Errorf("missing subscription on %s", subj)
		}
	}
	if _, ok := conn.handler("carvoice.sessions.job-1.tts"); ok {
		t.Error("unexpected tts subscription")
	}
}

func TestRuntime_StartFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply func(string, []byte) (*nats.Msg, error)
		want  string
	}{
		{"timeout", func(string, []byte) (*nats.Msg, error) { return nil, nats.ErrTimeout }, "timeout"},
		{"refused", func(string, []byte) (*nats.Msg, error) {
			return &nats.Msg{Data: []byte(`{"ok":false,"error":"no capacity"}`)}, nil
		}, "no capacity"},
		{"garbage", func(string, []byte) (*nats.Msg, error) {
			return &nats.Msg{Data: []byte(`nope`)}, nil
		}, "decoding start reply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn()
			conn.reply = tt.reply
			rt := New(conn, Options{}).Connect("job-1").(*Runtime)

			err := rt.Start(context.Background(), realtimePlan())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Start error = %v, want containing %q", err, tt.want)
			}
			if len(rt.subs) != 0 {
				t.Errorf("subscriptions not released: %d", len(rt.subs))
			}
		})
	}
}

func TestRuntime_Transcripts(t *testing.T) {
	conn := newFakeConn()
	rt := New(conn, Options{}).Connect("job-1")
	if err := rt.Start(context.Background(), realtimePlan()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []string
	rt.OnTranscript(func(speaker message.Speaker, text string) {
		got = append(got, string(speaker)+":"+text)
	})

	subj := "carvoice.sessions.job-1.transcripts"
	conn.deliver(t, subj, "", `{"speaker":"user","text":"hello"}`)
	conn.deliver(t, subj, "", `not json`)
	conn.deliver(t, subj, "", `{"speaker":"assistant","text":"Hi! How can I help?"}`)

	if len(got) != 2 || got[0] != "user:hello" || got[1] != "assistant:Hi! How can I help?" {
		t.Errorf("transcripts = %v", got)
	}
}

func TestRuntime_ToolCall(t *testing.T) {
	conn := newFakeConn()
	rt := New(conn, Options{}).Connect("job-1")
	if err := rt.Start(context.Background(), realtimePlan()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn.deliver(t, "carvoice.sessions.job-1.tools.web_search", "_INBOX.1", `{"query":"weather"}`)

	m := conn.next(t)
	if m.Subject != "_INBOX.1" {
		t.Errorf("reply subject = %q", m.Subject)
	}
	var resp toolResponse
	json.Unmarshal(m.Data, &resp)
	if resp.Text != "answer to weather" {
		t.Errorf("tool response = %q", resp.Text)
	}
}

func TestRuntime_InProcessSynthesis(t *testing.T) {
	conn := newFakeConn()
	plan := realtimePlan()
	plan.Backends = dispatch.Backends{
		Understanding: gateway.New("openai/gpt-4.1-mini"),
		Synthesis:     stubSynth{},
	}

	rt := New(conn, Options{}).Connect("job-1")
	if err := rt.Start(context.Background(), plan); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var req startRequest
	json.Unmarshal(conn.requests[0].Data, &req)
	if req.Subjects.TTS != "carvoice.sessions.job-1.tts" || !req.Synthesis.InProcess {
		t.Errorf("start request = %+v", req)
	}

	conn.deliver(t, "carvoice.sessions.job-1.tts", "_INBOX.2", `{"text":"turn left"}`)
	m := conn.next(t)
	if string(m.Data) != "pcm:turn left" {
		t.Errorf("audio = %q", m.Data)
	}
	if m.Header.Get(HeaderContentType) != tts.ContentType || m.Header.Get(HeaderSampleRate) != "24000" {
		t.Errorf("headers = %v", m.Header)
	}
}

func TestRuntime_SynthesisError(t *testing.T) {
	conn := newFakeConn()
	plan := realtimePlan()
	plan.Backends = dispatch.Backends{
		Understanding: gateway.New("openai/gpt-4.1-mini"),
		Synthesis:     stubSynth{err: errors.New("quota exceeded")},
	}

	rt := New(conn, Options{}).Connect("job-1")
	if err := rt.Start(context.Background(), plan); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn.deliver(t, "carvoice.sessions.job-1.tts", "_INBOX.3", `{"text":"turn left"}`)
	m := conn.next(t)
	if !strings.Contains(m.Header.Get(HeaderError), "quota exceeded") || len(m.Data) != 0 {
		t.Errorf("error reply = %v / %q", m.Header, m.Data)
	}
}

func TestRuntime_GenerateReply(t *testing.T) {
	conn := newFakeConn()
	rt := New(conn, Options{SubjectPrefix: "cv"}).Connect("job-1")

	if err := rt.GenerateReply(context.Background(), dispatch.GreetingInstructions); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	m := conn.next(t)
	if m.Subject != "cv.job-1.reply" {
		t.Errorf("subject = %q", m.Subject)
	}
	var req replyRequest
	json.Unmarshal(m.Data, &req)
	if req.Instructions != dispatch.GreetingInstructions {
		t.Errorf("instructions = %q", req.Instructions)
	}
}

func TestRuntime_Ended(t *testing.T) {
	conn := newFakeConn()
	rt := New(conn, Options{}).Connect("job-1")
	if err := rt.Start(context.Background(), realtimePlan()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn.deliver(t, "carvoice.sessions.job-1.ended", "", `{}`)
	conn.deliver(t, "carvoice.sessions.job-1.ended", "", `{}`)

	select {
	case <-rt.Done():
	default:
		t.Fatal("Done() should be closed after the session ended")
	}
}

func TestBridge_Listen(t *testing.T) {
	conn := newFakeConn()
	b := New(conn, Options{})

	var (
		mu   sync.Mutex
		jobs []message.Job
	)
	handler := func(_ context.Context, job message.Job) (*message.StartResult, error) {
		mu.Lock()
		jobs = append(jobs, job)
		mu.Unlock()
		if job.Room == "broken" {
			return nil, errors.New("starting session: worker down")
		}
		return &message.StartResult{JobID: "job-9", Room: job.Room, Mode: "hybrid", Tools: []string{}}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.Listen(ctx, handler) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := conn.handler(DefaultJobSubject); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job subscription not created")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.deliver(t, DefaultJobSubject, "_INBOX.4", `{"room":"car-42","metadata":{"session_id":"s1"}}`)
	m := conn.next(t)
	var ok map[string]any
	json.Unmarshal(m.Data, &ok)
	if ok["id"] != "job-9" || ok["room"] != "car-42" || ok["error"] != nil {
		t.Errorf("reply = %s", m.Data)
	}

	conn.deliver(t, DefaultJobSubject, "_INBOX.5", `{"metadata":"{}"}`)
	m = conn.next(t)
	if !strings.Contains(string(m.Data), "room is required") {
		t.Errorf("reply = %s", m.Data)
	}

	conn.deliver(t, DefaultJobSubject, "_INBOX.6", `{"room":"broken"}`)
	m = conn.next(t)
	if !strings.Contains(string(m.Data), "worker down") {
		t.Errorf("reply = %s", m.Data)
	}

	for i, id := range []string{"*", ">", "a.b", "job 1"} {
		body, _ := json.Marshal(map[string]string{"id": id, "room": "car-42"})
		conn.deliver(t, DefaultJobSubject, fmt.Sprintf("_INBOX.bad.%d", i), string(body))
		m = conn.next(t)
		if !strings.Contains(string(m.Data), `"error"`) || !strings.Contains(string(m.Data), "job id") {
			t.Errorf("id %q: reply = %s", id, m.Data)
		}
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Listen returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(jobs) != 2 || jobs[0].Metadata != `{"session_id":"s1"}` {
		t.Errorf("jobs = %+v", jobs)
	}
}

package registry

import (
	"testing"
)

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case msg, ok := <-c.Outbound():
			if !ok {
				return out
			}
			out = append(out, string(msg.Type))
		default:
			return out
		}
	}
}

func TestCreateSessionAutoJoinsCreatorSilently(t *testing.T) {
	r := New(8, nil)
	creator := r.NewClient()

	sess, err := r.CreateSession(creator, "30", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.MemberCount() != 1 {
		t.Fatalf("expected creator auto-joined, count=%d", sess.MemberCount())
	}
	// Auto-join must not itself enqueue a session_joined; the caller sends
	// session_created.
	for _, t2 := range drain(creator) {
		if t2 == "session_joined" {
			t.Fatal("auto-join should not send session_joined")
		}
	}
}

func TestCreateSessionUnknownFramerateIsRejected(t *testing.T) {
	r := New(8, nil)
	creator := r.NewClient()
	if _, err := r.CreateSession(creator, "25", ""); err == nil {
		t.Fatal("expected error for unsupported framerate")
	}
}

func TestCreateSessionInvalidInitialTimecodeIsRejected(t *testing.T) {
	r := New(8, nil)
	creator := r.NewClient()
	if _, err := r.CreateSession(creator, "29.97", "00:01:00:00"); err == nil {
		t.Fatal("expected error for a dropped-value initial timecode")
	}
}

func TestJoinSessionUnknownIDReturnsSessionNotFound(t *testing.T) {
	r := New(8, nil)
	client := r.NewClient()
	_, err := r.JoinSession(client, "nope")
	if _, ok := err.(*ErrSessionNotFound); !ok {
		t.Fatalf("expected *ErrSessionNotFound, got %T (%v)", err, err)
	}
}

func TestJoinSessionMovesClientLeavingPrior(t *testing.T) {
	r := New(8, nil)
	creatorA := r.NewClient()
	sessA, _ := r.CreateSession(creatorA, "30", "")

	creatorB := r.NewClient()
	sessB, _ := r.CreateSession(creatorB, "30", "")

	client := r.NewClient()
	if _, err := r.JoinSession(client, sessA.ID); err != nil {
		t.Fatalf("join A: %v", err)
	}
	if sessA.MemberCount() != 2 {
		t.Fatalf("expected client joined A, count=%d", sessA.MemberCount())
	}

	if _, err := r.JoinSession(client, sessB.ID); err != nil {
		t.Fatalf("join B: %v", err)
	}
	if sessA.MemberCount() != 1 {
		t.Fatalf("expected client left A, count=%d", sessA.MemberCount())
	}
	if sessB.MemberCount() != 2 {
		t.Fatalf("expected client joined B, count=%d", sessB.MemberCount())
	}
}

func TestCreateSessionLeavesPriorSession(t *testing.T) {
	r := New(8, nil)
	client := r.NewClient()

	sessA, err := r.CreateSession(client, "30", "")
	if err != nil {
		t.Fatalf("create A: %v", err)
	}

	sessB, err := r.CreateSession(client, "24", "")
	if err != nil {
		t.Fatalf("create B: %v", err)
	}

	if sessA.MemberCount() != 0 {
		t.Fatalf("expected client left A, count=%d", sessA.MemberCount())
	}
	if sessB.MemberCount() != 1 {
		t.Fatalf("expected client joined B, count=%d", sessB.MemberCount())
	}
	if current, ok := r.CurrentSession(client); !ok || current.ID != sessB.ID {
		t.Fatalf("expected client's current session to be B, got %+v ok=%v", current, ok)
	}
}

func TestLeaveSessionIsNoOpWithoutMembership(t *testing.T) {
	r := New(8, nil)
	client := r.NewClient()
	r.LeaveSession(client) // must not panic
	if _, ok := r.CurrentSession(client); ok {
		t.Fatal("client should have no current session")
	}
}

func TestOnClientDisconnectRemovesFromSessionAndClosesChannel(t *testing.T) {
	r := New(8, nil)
	creator := r.NewClient()
	sess, _ := r.CreateSession(creator, "30", "")

	r.OnClientDisconnect(creator)

	if sess.MemberCount() != 0 {
		t.Fatalf("expected member removed, count=%d", sess.MemberCount())
	}
	if r.ClientCount() != 0 {
		t.Fatalf("expected client removed from registry, count=%d", r.ClientCount())
	}
	if _, ok := <-creator.Outbound(); ok {
		t.Fatal("expected outbound channel closed")
	}
}

func TestShutdownStopsSessionsAndNotifiesClients(t *testing.T) {
	r := New(8, nil)
	creator := r.NewClient()
	sess, _ := r.CreateSession(creator, "30", "")
	sess.Start()

	r.Shutdown()

	_, running := sess.Snapshot()
	if running {
		t.Fatal("expected session stopped after shutdown")
	}

	found := false
	for _, typ := range drain(creator) {
		if typ == "server_shutdown" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected server_shutdown notice")
	}
}

func TestStatusesReportsSessionSummaries(t *testing.T) {
	r := New(8, nil)
	creator := r.NewClient()
	sess, _ := r.CreateSession(creator, "24", "")
	_ = sess

	statuses := r.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("expected one status, got %d", len(statuses))
	}
	if statuses[0].FramerateKey != "24" || statuses[0].Timecode != "00:00:00:00" {
		t.Fatalf("unexpected status: %+v", statuses[0])
	}
}

func TestCreateSessionGeneratesDistinctIDs(t *testing.T) {
	r := New(8, nil)
	c1 := r.NewClient()
	c2 := r.NewClient()
	s1, _ := r.CreateSession(c1, "30", "")
	s2, _ := r.CreateSession(c2, "30", "")
	if s1.ID == s2.ID {
		t.Fatal("expected distinct session ids")
	}
}

package core

import "testing"

func TestMessageScope(t *testing.T) {
	project := Message{ID: "1", ProjectID: "42", Sender: Sender{ID: "u1"}}
	if got := project.Scope("u1"); got != ProjectScope("42") {
		t.Fatalf("unexpected project scope: %v", got)
	}

	outgoing := Message{ID: "2", RecipientID: "u2", Sender: Sender{ID: "u1"}}
	if got := outgoing.Scope("u1"); got != DirectScope("u2") {
		t.Fatalf("outgoing direct message scoped to %v", got)
	}

	incoming := Message{ID: "3", RecipientID: "u1", Sender: Sender{ID: "u2"}}
	if got := incoming.Scope("u1"); got != DirectScope("u2") {
		t.Fatalf("incoming direct message scoped to %v", got)
	}
}

func TestScopeString(t *testing.T) {
	if s := ProjectScope("42").String(); s != "project:42" {
		t.Fatalf("unexpected scope string %q", s)
	}
	if s := DirectScope("u7").String(); s != "direct:u7" {
		t.Fatalf("unexpected scope string %q", s)
	}
}

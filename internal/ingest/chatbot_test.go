package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/deskgate/internal/model"
)

// menuEnv seeds one queue with a two-level menu:
//
//	1 Billing  -> 1 Invoices, 2 Refunds
//	2 Technical (leaf)
func menuEnv(t *testing.T) (*env, *model.Queue, map[string]*model.QueueOption) {
	e := newEnv(t, Options{})
	q := e.addQueue("Support", "How can we help?", 0)
	opts := map[string]*model.QueueOption{}
	opts["billing"] = e.addOption(q, nil, "1", "Billing", "Billing questions:")
	opts["technical"] = e.addOption(q, nil, "2", "Technical", "Describe your issue.")
	opts["invoices"] = e.addOption(q, opts["billing"], "1", "Invoices", "Invoice help text.")
	opts["refunds"] = e.addOption(q, opts["billing"], "2", "Refunds", "Refund policy text.")
	return e, q, opts
}

func (e *env) lastSent(t *testing.T) string {
	t.Helper()
	bodies := e.session.sentBodies()
	if len(bodies) == 0 {
		t.Fatal("nothing sent")
	}
	return bodies[len(bodies)-1]
}

func TestChatbotDescendAndBack(t *testing.T) {
	e, _, opts := menuEnv(t)
	ctx := context.Background()
	from := "5511666660001"

	e.pipe.HandleEvent(ctx, inbound(from, "hi"))
	waitFor(t, func() bool { return e.session.sentCount() >= 1 })

	// Pick Billing.
	e.pipe.HandleEvent(ctx, inbound(from, "1"))
	tk := e.openTicket(t, from)
	if tk.OptionID == nil || *tk.OptionID != opts["billing"].ID {
		t.Fatalf("menu position = %v, want billing", tk.OptionID)
	}
	waitFor(t, func() bool { return e.session.sentCount() >= 2 })
	menu := e.lastSent(t)
	for _, want := range []string{"Billing questions:", "*1* - Invoices", "*2* - Refunds", "*0* - *Back*", "*00* - *Main menu*"} {
		if !strings.Contains(menu, want) {
			t.Fatalf("billing menu missing %q:\n%s", want, menu)
		}
	}

	// Then Refunds.
	e.pipe.HandleEvent(ctx, inbound(from, "2"))
	tk = e.openTicket(t, from)
	if tk.OptionID == nil || *tk.OptionID != opts["refunds"].ID {
		t.Fatalf("menu position = %v, want refunds", tk.OptionID)
	}
	waitFor(t, func() bool { return e.session.sentCount() >= 3 })
	leaf := e.lastSent(t)
	if !strings.Contains(leaf, "*#* - *Talk to an agent*") {
		t.Fatalf("leaf view missing hand-off footer:\n%s", leaf)
	}

	// Back up to Billing.
	e.pipe.HandleEvent(ctx, inbound(from, "0"))
	tk = e.openTicket(t, from)
	if tk.OptionID == nil || *tk.OptionID != opts["billing"].ID {
		t.Fatalf("back should return to billing, got %v", tk.OptionID)
	}
}

func TestChatbotMainMenuResets(t *testing.T) {
	e, q, opts := menuEnv(t)
	ctx := context.Background()
	from := "5511666660002"

	e.pipe.HandleEvent(ctx, inbound(from, "hi"))
	e.pipe.HandleEvent(ctx, inbound(from, "1"))
	tk := e.openTicket(t, from)
	if tk.OptionID == nil || *tk.OptionID != opts["billing"].ID {
		t.Fatal("setup: should sit on billing")
	}

	e.pipe.HandleEvent(ctx, inbound(from, "00"))
	tk = e.openTicket(t, from)
	// Single-queue account: the reset re-routes straight back into the queue
	// at the root of its menu.
	if tk.QueueID == nil || *tk.QueueID != q.ID {
		t.Fatalf("reset should re-route into the only queue, got %v", tk.QueueID)
	}
	if tk.OptionID != nil {
		t.Fatal("reset must land at the menu root")
	}
	if !tk.Chatbot {
		t.Fatal("re-routed ticket should be chatbot-active again")
	}
}

func TestChatbotHandOffToAgent(t *testing.T) {
	e, _, _ := menuEnv(t)
	ctx := context.Background()
	from := "5511666660003"

	e.pipe.HandleEvent(ctx, inbound(from, "hi"))
	e.pipe.HandleEvent(ctx, inbound(from, "1"))
	waitFor(t, func() bool { return e.session.sentCount() >= 1 })
	before := e.session.sentCount()

	e.pipe.HandleEvent(ctx, inbound(from, "#"))
	tk := e.openTicket(t, from)
	if tk.Chatbot {
		t.Fatal("hand-off must leave chatbot mode")
	}
	if tk.OptionID != nil {
		t.Fatal("hand-off must clear the menu position")
	}

	waitFor(t, func() bool { return e.session.sentCount() > before })
	var found bool
	for _, b := range e.session.sentBodies() {
		if strings.Contains(b, agentNotice) {
			found = true
		}
	}
	if !found {
		t.Fatalf("hand-off should send the agent notice, sent: %v", e.session.sentBodies())
	}
}

func TestChatbotHashAtRootIsNotHandOff(t *testing.T) {
	e, _, _ := menuEnv(t)
	ctx := context.Background()
	from := "5511666660004"

	e.pipe.HandleEvent(ctx, inbound(from, "hi"))
	e.pipe.HandleEvent(ctx, inbound(from, "#"))

	tk := e.openTicket(t, from)
	if !tk.Chatbot {
		t.Fatal("# at the menu root has no hand-off meaning")
	}
}

func TestChatbotSingleChildAutoTaken(t *testing.T) {
	e := newEnv(t, Options{})
	q := e.addQueue("Support", "Hello", 0)
	parent := e.addOption(q, nil, "1", "Docs", "Pick a topic")
	child := e.addOption(q, parent, "1", "Getting started", "Read the guide at docs.example.com")
	ctx := context.Background()
	from := "5511666660005"

	e.pipe.HandleEvent(ctx, inbound(from, "hi"))
	e.pipe.HandleEvent(ctx, inbound(from, "1"))
	tk := e.openTicket(t, from)
	if tk.OptionID == nil || *tk.OptionID != parent.ID {
		t.Fatal("setup: should sit on the parent node")
	}

	// Any input descends the single child, even a non-matching one.
	e.pipe.HandleEvent(ctx, inbound(from, "whatever"))
	tk = e.openTicket(t, from)
	if tk.OptionID == nil || *tk.OptionID != child.ID {
		t.Fatalf("single child should always be taken, got %v", tk.OptionID)
	}
}

func TestChatbotNonMatchingInputReRendersMenu(t *testing.T) {
	e, _, _ := menuEnv(t)
	ctx := context.Background()
	from := "5511666660006"

	e.pipe.HandleEvent(ctx, inbound(from, "hi"))
	waitFor(t, func() bool { return e.session.sentCount() >= 1 })

	e.pipe.HandleEvent(ctx, inbound(from, "banana"))
	tk := e.openTicket(t, from)
	if tk.OptionID != nil {
		t.Fatal("non-matching input must not move the menu position")
	}
	waitFor(t, func() bool { return e.session.sentCount() >= 2 })
	if !strings.Contains(e.lastSent(t), "*1* - Billing") {
		t.Fatalf("expected the root menu again, got %q", e.lastSent(t))
	}
}

func TestMultiQueueSelectionNotConsumedAsOption(t *testing.T) {
	e := newEnv(t, Options{})
	qa := e.addQueue("Sales", "Sales menu", 0)
	e.addQueue("Support", "", 1)
	root := e.addOption(qa, nil, "1", "Pricing", "Our prices")
	_ = root
	e.addOption(qa, nil, "2", "Partners", "")

	ctx := context.Background()
	from := "5511666660007"

	// "1" selects the Sales queue. The same body must not also select the
	// queue's root option labeled "1".
	e.pipe.HandleEvent(ctx, inbound(from, "1"))
	tk := e.openTicket(t, from)
	if tk.QueueID == nil || *tk.QueueID != qa.ID {
		t.Fatal("selection should assign the first queue")
	}
	if tk.OptionID != nil {
		t.Fatal("queue selection must not double as a menu option choice")
	}

	// The next "1" does select the option.
	e.pipe.HandleEvent(ctx, inbound(from, "1"))
	tk = e.openTicket(t, from)
	if tk.OptionID == nil {
		t.Fatal("second input should select the root option")
	}
}

func TestRenderRootOrdering(t *testing.T) {
	q := &model.Queue{Greeting: "Hi"}
	roots := []model.QueueOption{
		{Option: "1", Title: "First"},
		{Option: "2", Title: "Second"},
	}
	out := renderRoot(q, roots)
	if !strings.HasPrefix(out, "Hi\n\n*1* - First\n*2* - Second") {
		t.Fatalf("unexpected root render:\n%s", out)
	}
	if !strings.HasSuffix(out, "*00* - *Main menu*") {
		t.Fatalf("root render missing main-menu footer:\n%s", out)
	}
}

package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/deskgate/internal/channel"
	"github.com/nextlevelbuilder/deskgate/internal/model"
)

// Navigation keys understood while a ticket is chatbot-active.
const (
	keyMainMenu = "00" // reset routing and re-run the queue router
	keyToAgent  = "#"  // leave the menu, hand off to a human
	keyBack     = "0"  // one level up
)

const agentNotice = "Please wait, an agent will assist you shortly."

// handleChatbot advances the per-ticket menu state machine on an inbound
// body and schedules the rendered view of the new state through the debounce
// coalescer. skipFirstSelection marks a body that was already consumed as a
// queue-number selection this event; it must not double as a root option
// choice.
func (p *Pipeline) handleChatbot(ctx context.Context, ev channel.Event, ticket *model.Ticket, contact *model.Contact, skipFirstSelection bool) error {
	if ticket.QueueID == nil {
		return nil
	}
	queue, err := p.stores.Queues.GetQueue(ctx, *ticket.QueueID)
	if err != nil {
		return err
	}

	body := strings.TrimSpace(ev.Body)

	switch {
	case body == keyMainMenu:
		ticket.QueueID = nil
		ticket.Chatbot = false
		ticket.OptionID = nil
		if err := p.stores.Tickets.Save(ctx, ticket); err != nil {
			return err
		}
		queues, err := p.stores.Queues.ListQueues(ctx, ev.AccountID)
		if err != nil {
			return err
		}
		// Brand-new routing decision, as if the ticket had just arrived.
		return p.routeQueue(ctx, ev, ticket, contact, queues)

	case ticket.OptionID != nil && body == keyToAgent:
		ticket.OptionID = nil
		ticket.Chatbot = false
		if err := p.stores.Tickets.Save(ctx, ticket); err != nil {
			return err
		}
		_, err := p.sendAndRecord(ctx, ev.AccountID, contact, ticket.ID, agentNotice)
		return err

	case ticket.OptionID != nil && body == keyBack:
		opt, err := p.stores.Queues.GetOption(ctx, *ticket.OptionID)
		if err != nil {
			return err
		}
		ticket.OptionID = opt.ParentID
		if err := p.stores.Tickets.Save(ctx, ticket); err != nil {
			return err
		}

	case ticket.OptionID != nil:
		children, err := p.stores.Queues.ListOptions(ctx, queue.ID, ticket.OptionID)
		if err != nil {
			return err
		}
		var next *model.QueueOption
		if len(children) == 1 {
			// A single child is always taken, whatever was typed.
			next = &children[0]
		} else {
			for i := range children {
				if children[i].Option == body {
					next = &children[i]
					break
				}
			}
		}
		if next != nil {
			ticket.OptionID = &next.ID
			if err := p.stores.Tickets.Save(ctx, ticket); err != nil {
				return err
			}
		}

	default: // at the queue's top-level menu
		if !skipFirstSelection {
			roots, err := p.stores.Queues.ListOptions(ctx, queue.ID, nil)
			if err != nil {
				return err
			}
			for i := range roots {
				if roots[i].Option == body {
					ticket.OptionID = &roots[i].ID
					if err := p.stores.Tickets.Save(ctx, ticket); err != nil {
						return err
					}
					break
				}
			}
		}
	}

	return p.renderMenu(ctx, ev.AccountID, queue, ticket, contact)
}

// renderMenu renders the view for the ticket's current menu state and
// schedules it via the debounce path, never synchronously, so rapid
// repeated keystrokes collapse into one reply.
func (p *Pipeline) renderMenu(ctx context.Context, accountID string, queue *model.Queue, ticket *model.Ticket, contact *model.Contact) error {
	var body string

	if ticket.OptionID == nil {
		roots, err := p.stores.Queues.ListOptions(ctx, queue.ID, nil)
		if err != nil {
			return err
		}
		body = renderRoot(queue, roots)
	} else {
		current, err := p.stores.Queues.GetOption(ctx, *ticket.OptionID)
		if err != nil {
			return err
		}
		children, err := p.stores.Queues.ListOptions(ctx, queue.ID, ticket.OptionID)
		if err != nil {
			return err
		}
		body = renderNode(current, children)
	}

	p.scheduleReply(accountID, contact, ticket.ID, body)
	return nil
}

// renderRoot formats the queue greeting plus the ordered top-level options.
func renderRoot(queue *model.Queue, roots []model.QueueOption) string {
	var b strings.Builder
	if queue.Greeting != "" {
		b.WriteString(queue.Greeting + "\n\n")
	}
	for i, o := range roots {
		fmt.Fprintf(&b, "*%s* - %s", o.Option, o.Title)
		if i < len(roots)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\n*00* - *Main menu*")
	return b.String()
}

// renderNode formats a non-root node. One child renders that child directly
// (auto-descend-and-display before the state actually advances on the next
// input); none offers the hand-off footer.
func renderNode(current *model.QueueOption, children []model.QueueOption) string {
	switch {
	case len(children) > 1:
		var b strings.Builder
		if current.Message != "" {
			b.WriteString(current.Message + "\n\n")
		}
		for _, o := range children {
			fmt.Fprintf(&b, "*%s* - %s\n", o.Option, o.Title)
		}
		b.WriteString("\n*0* - *Back*\n*00* - *Main menu*")
		return b.String()

	case len(children) == 1:
		child := children[0]
		body := child.Title
		if child.Message != "" {
			body += "\n\n" + child.Message
		}
		return body

	default:
		return "*#* - *Talk to an agent*\n\n*0* - *Back*\n*00* - *Main menu*"
	}
}

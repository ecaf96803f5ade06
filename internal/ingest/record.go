package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/deskgate/internal/bus"
	"github.com/nextlevelbuilder/deskgate/internal/channel"
	"github.com/nextlevelbuilder/deskgate/internal/model"
	"github.com/nextlevelbuilder/deskgate/internal/store"
)

// recordText persists an inbound or echoed text message against the ticket
// and refreshes the ticket's last-message summary. Recording is idempotent by
// channel-native id.
func (p *Pipeline) recordText(ctx context.Context, ev channel.Event, ticket *model.Ticket, contact *model.Contact) (*model.Message, error) {
	m := &model.Message{
		NativeID:    ev.NativeID,
		TicketID:    ticket.ID,
		Body:        ev.Body,
		FromMe:      ev.FromMe,
		Read:        ev.FromMe,
		MediaType:   ev.MsgType,
		QuotedMsgID: p.lookupQuoted(ctx, ev.QuotedNativeID),
	}
	if !ev.FromMe {
		m.ContactID = &contact.ID
	}
	return p.record(ctx, ticket, m, ev.Body)
}

// recordMedia downloads the binary payload, persists it, and records the
// message. A failed download aborts recording with ErrMediaDownload.
func (p *Pipeline) recordMedia(ctx context.Context, ev channel.Event, ticket *model.Ticket, contact *model.Contact) (*model.Message, error) {
	sess, err := p.sessions.Get(ev.AccountID)
	if err != nil {
		return nil, err
	}

	media, err := sess.DownloadMedia(ctx, ev.NativeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaDownload, err)
	}
	if media == nil || len(media.Data) == 0 {
		return nil, ErrMediaDownload
	}

	filename := media.Filename
	if filename == "" {
		filename = fmt.Sprintf("%d.%s", time.Now().UnixMilli(), mimeExt(media.MimeType))
	}

	if p.saveMedia != nil {
		if err := p.saveMedia(filename, media.Data); err != nil {
			slog.Error("failed to persist media payload", "filename", filename, "error", err)
		}
	}

	body := ev.Body
	if body == "" {
		body = filename
	}

	m := &model.Message{
		NativeID:    ev.NativeID,
		TicketID:    ticket.ID,
		Body:        body,
		FromMe:      ev.FromMe,
		Read:        ev.FromMe,
		MediaURL:    filename,
		MediaType:   mimeKind(media.MimeType),
		QuotedMsgID: p.lookupQuoted(ctx, ev.QuotedNativeID),
	}
	if !ev.FromMe {
		m.ContactID = &contact.ID
	}
	return p.record(ctx, ticket, m, body)
}

// sendAndRecord sends text through the account's session with the self
// marker prefixed and records the resulting message, so the protocol's echo
// of it is suppressed on arrival.
func (p *Pipeline) sendAndRecord(ctx context.Context, accountID string, contact *model.Contact, ticketID uuid.UUID, text string) (*model.Message, error) {
	sess, err := p.sessions.Get(accountID)
	if err != nil {
		return nil, err
	}

	body := SelfMarker + text
	nativeID, err := sess.Send(ctx, contact.NativeID, channel.Outbound{Body: body})
	if err != nil {
		return nil, err
	}

	ticket, err := p.stores.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	m := &model.Message{
		NativeID:  nativeID,
		TicketID:  ticket.ID,
		Body:      body,
		FromMe:    true,
		Read:      true,
		MediaType: channel.TypeChat,
	}
	return p.record(ctx, ticket, m, body)
}

// record inserts the message, refreshes the ticket summary, and broadcasts
// the creation. Insert is idempotent: a re-delivered native id returns the
// existing row without a second broadcast. Insert comes first so the summary
// never references a message that failed to record.
func (p *Pipeline) record(ctx context.Context, ticket *model.Ticket, m *model.Message, summary string) (*model.Message, error) {
	if existing, err := p.stores.Messages.GetByNativeID(ctx, m.NativeID); err == nil {
		return existing, nil
	}

	created, err := p.stores.Messages.Create(ctx, m)
	if err != nil {
		return nil, err
	}

	ticket.LastMessage = summary
	if err := p.stores.Tickets.Save(ctx, ticket); err != nil {
		return nil, err
	}

	p.events.Broadcast(bus.Event{
		Name:    bus.EventMessage,
		Action:  bus.ActionCreate,
		Rooms:   []string{string(ticket.Status), bus.RoomNotification, ticket.ID.String()},
		Payload: created,
	})
	return created, nil
}

// lookupQuoted resolves a quoted native id against recorded messages.
// Unknown ids are dropped: the message is recorded without the reference.
func (p *Pipeline) lookupQuoted(ctx context.Context, quotedNativeID string) *uuid.UUID {
	if quotedNativeID == "" {
		return nil
	}
	m, err := p.stores.Messages.GetByNativeID(ctx, quotedNativeID)
	if err != nil {
		if !errors.Is(err, store.ErrMessageNotFound) {
			slog.Warn("quoted message lookup failed", "native_id", quotedNativeID, "error", err)
		}
		return nil
	}
	return &m.ID
}

// mimeExt extracts the extension from a MIME type: "image/jpeg" -> "jpeg",
// "audio/ogg; codecs=opus" -> "ogg".
func mimeExt(mimeType string) string {
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok {
		return "bin"
	}
	if ext, _, found := strings.Cut(sub, ";"); found {
		return strings.TrimSpace(ext)
	}
	return sub
}

// mimeKind extracts the media kind: "image/jpeg" -> "image".
func mimeKind(mimeType string) string {
	kind, _, _ := strings.Cut(mimeType, "/")
	return kind
}

package ingest

import (
	"context"

	"github.com/nextlevelbuilder/deskgate/internal/channel"
	"github.com/nextlevelbuilder/deskgate/internal/model"
)

// resolveContact maps a channel-native identity to a stored contact,
// creating it or refreshing the mutable fields. Missing names fall back to
// the native id; this never fails on optional fields.
func (p *Pipeline) resolveContact(ctx context.Context, info channel.ContactInfo) (*model.Contact, error) {
	name := info.Name
	if name == "" {
		name = info.NativeID
	}
	return p.stores.Contacts.Upsert(ctx, &model.Contact{
		NativeID:   info.NativeID,
		Name:       name,
		IsGroup:    info.IsGroup,
		ProfilePic: info.ProfilePic,
	})
}

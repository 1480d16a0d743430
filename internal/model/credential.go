package model

import "time"

// ChannelCredential is a tenant's connection to one channel implementation.
// PhoneNumberID is the channel-specific sender identifier used to resolve
// which tenant an inbound webhook delivery belongs to.
type ChannelCredential struct {
	ID            string           `db:"id" json:"id"`
	TenantID      string           `db:"tenant_id" json:"tenantId"`
	Channel       string           `db:"channel" json:"channel"`
	AccessToken   string           `db:"access_token" json:"-"`
	PhoneNumberID string           `db:"phone_number_id" json:"phoneNumberId"`
	Status        CredentialStatus `db:"status" json:"status"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// ChannelWhatsAppCloud is the only channel implementation currently served.
const ChannelWhatsAppCloud = "whatsapp_cloud"

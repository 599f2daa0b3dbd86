// internal/model/recipient.go
package model

// Channel is a message transport.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelEmail
}

func (c Channel) String() string { return string(c) }

// Recipient is an applicant that opted in to a channel. It is owned by the case repository.
type Recipient struct {
	ID         int    `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Phone      string `db:"phone" json:"phone,omitempty"`
	Email      string `db:"email" json:"email,omitempty"`
	SMSOptIn   bool   `db:"sms_opt_in" json:"sms_opt_in"`
	EmailOptIn bool   `db:"email_opt_in" json:"email_opt_in"`
}

// Address returns the raw contact address for a channel.
func (r Recipient) Address(ch Channel) string {
	if ch == ChannelEmail {
		return r.Email
	}
	return r.Phone
}

package repository

import (
	"context"
	"database/sql"
	"strings"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

// RecipientRepositoryInterface defines methods used by the blast service
type RecipientRepositoryInterface interface {
	ListOptedIn(ctx context.Context, channel model.Channel) ([]model.Recipient, error)
}

// RecipientRepository reads applicants from the case database
type RecipientRepository struct {
	DB *sql.DB
}

const listSMSRecipients = `
        SELECT id, first_name, last_name, COALESCE(phone, ''), COALESCE(email, ''), sms_opt_in, email_opt_in
        FROM applicants
        WHERE archived = FALSE AND sms_opt_in = TRUE AND COALESCE(phone, '') <> ''
        ORDER BY id
    `

const listEmailRecipients = `
        SELECT id, first_name, last_name, COALESCE(phone, ''), COALESCE(email, ''), sms_opt_in, email_opt_in
        FROM applicants
        WHERE archived = FALSE AND email_opt_in = TRUE AND COALESCE(email, '') <> ''
        ORDER BY id
    `

// ListOptedIn returns active applicants that opted in to channel and have an address for it.
func (r *RecipientRepository) ListOptedIn(ctx context.Context, channel model.Channel) ([]model.Recipient, error) {
	var query string
	switch channel {
	case model.ChannelSMS:
		query = listSMSRecipients
	case model.ChannelEmail:
		query = listEmailRecipients
	default:
		return nil, appErrors.ErrInvalidChannel
	}

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, appErrors.Wrap(err, "list opted-in recipients")
	}
	defer rows.Close()

	recipients := []model.Recipient{}
	for rows.Next() {
		var (
			rc          model.Recipient
			first, last string
		)
		if err := rows.Scan(&rc.ID, &first, &last, &rc.Phone, &rc.Email, &rc.SMSOptIn, &rc.EmailOptIn); err != nil {
			return nil, err
		}
		rc.Name = strings.TrimSpace(first + " " + last)
		recipients = append(recipients, rc)
	}
	return recipients, rows.Err()
}

package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

var recipientColumns = []string{"id", "first_name", "last_name", "phone", "email", "sms_opt_in", "email_opt_in"}

func TestRecipientRepository_ListOptedIn_SMS(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("sms_opt_in = TRUE AND COALESCE(phone, '') <> ''")).
		WillReturnRows(sqlmock.NewRows(recipientColumns).
			AddRow(1, "Ada", "Lovelace", "2045551234", "", true, false).
			AddRow(2, "Grace", "", "+447700900123", "g@example.com", true, true))

	repo := &RecipientRepository{DB: db}
	got, err := repo.ListOptedIn(context.Background(), model.ChannelSMS)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.Recipient{ID: 1, Name: "Ada Lovelace", Phone: "2045551234", SMSOptIn: true}, got[0])
	assert.Equal(t, "Grace", got[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepository_ListOptedIn_Email(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("email_opt_in = TRUE AND COALESCE(email, '') <> ''")).
		WillReturnRows(sqlmock.NewRows(recipientColumns))

	repo := &RecipientRepository{DB: db}
	got, err := repo.ListOptedIn(context.Background(), model.ChannelEmail)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepository_ListOptedIn_Errors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &RecipientRepository{DB: db}

	_, err = repo.ListOptedIn(context.Background(), model.Channel("fax"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidChannel))

	mock.ExpectQuery("FROM applicants").WillReturnError(errors.New("connection lost"))
	_, err = repo.ListOptedIn(context.Background(), model.ChannelSMS)
	assert.ErrorContains(t, err, "connection lost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimelineRepository_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO case_timeline")).
		WithArgs(7, "sms_blast", "Bulk SMS sent", "jdoe", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	repo := &TimelineRepository{DB: db}
	ev := &model.TimelineEvent{RecipientID: 7, Type: "sms_blast", Description: "Bulk SMS sent", User: "jdoe", CreatedAt: at}

	require.NoError(t, repo.Insert(context.Background(), ev))
	assert.Equal(t, 42, ev.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

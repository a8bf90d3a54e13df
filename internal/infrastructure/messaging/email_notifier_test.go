package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovia/agrovia-api/internal/domain/event"
	"github.com/agrovia/agrovia-api/pkg/mailer"
)

type fakeEmailQueue struct {
	jobs []mailer.EmailJob
	err  error
}

func (f *fakeEmailQueue) PublishJSON(_ context.Context, body any) error {
	if f.err != nil {
		return f.err
	}
	job, ok := body.(*mailer.EmailJob)
	if !ok {
		return errors.New("unexpected body type")
	}
	f.jobs = append(f.jobs, *job)
	return nil
}

func TestEmailNotifier_WelcomeOnRegistration(t *testing.T) {
	q := &fakeEmailQueue{}
	n := NewEmailNotifier(q, true, nil)

	ev := event.UserRegistered{
		Base:   event.NewBase("cred-1"),
		UserID: "user-1",
		Email:  "farmer@agrovia.io",
		Name:   "Bob",
		Source: "registration",
	}
	require.NoError(t, n.Handle(context.Background(), ev))

	require.Len(t, q.jobs, 1)
	assert.Equal(t, "farmer@agrovia.io", q.jobs[0].To)
	assert.Equal(t, "welcome", q.jobs[0].Template)
	assert.Equal(t, "Bob", q.jobs[0].Data["Name"])
}

func TestEmailNotifier_LoginAlert(t *testing.T) {
	q := &fakeEmailQueue{}
	n := NewEmailNotifier(q, true, nil)

	ev := event.UserLoggedIn{
		Base:      event.NewBase("cred-1"),
		UserID:    "user-1",
		Email:     "farmer@agrovia.io",
		IPAddress: "10.0.0.1",
		UserAgent: "ua",
	}
	require.NoError(t, n.Handle(context.Background(), ev))

	require.Len(t, q.jobs, 1)
	assert.Equal(t, "login_alert", q.jobs[0].Template)
	assert.Equal(t, "10.0.0.1", q.jobs[0].Data["IP"])
}

func TestEmailNotifier_IgnoresOtherEvents(t *testing.T) {
	q := &fakeEmailQueue{}
	n := NewEmailNotifier(q, true, nil)

	require.NoError(t, n.Handle(context.Background(), event.UserLoggedOut{Base: event.NewBase("cred-1")}))
	assert.Empty(t, q.jobs)
}

func TestEmailNotifier_DisabledOrFailing(t *testing.T) {
	q := &fakeEmailQueue{}
	n := NewEmailNotifier(q, false, nil)
	require.NoError(t, n.Handle(context.Background(), event.UserRegistered{Base: event.NewBase("cred-1")}))
	assert.Empty(t, q.jobs)

	// Enqueue failures are swallowed; mail is best-effort.
	failing := NewEmailNotifier(&fakeEmailQueue{err: errors.New("amqp down")}, true, nil)
	assert.NoError(t, failing.Handle(context.Background(), event.UserRegistered{Base: event.NewBase("cred-1"), Email: "x@y.io"}))
}

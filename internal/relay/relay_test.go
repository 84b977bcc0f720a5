package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubrelay/internal/notifications/dispatch"
	"hubrelay/internal/notifications/slack"
	"hubrelay/internal/types"
)

type fakeForms struct {
	latest map[string]*types.Submission
	err    error
	calls  []string
}

func (f *fakeForms) ListForms(context.Context) ([]types.FormRef, error) { return nil, nil }

func (f *fakeForms) ListSubmissions(context.Context, string, int) ([]types.Submission, error) {
	return nil, nil
}

func (f *fakeForms) LatestSubmission(_ context.Context, formKey string) (*types.Submission, error) {
	f.calls = append(f.calls, formKey)
	if f.err != nil {
		return nil, f.err
	}
	return f.latest[formKey], nil
}

type fakeSink struct {
	mu       sync.Mutex
	payloads []slack.Payload
	fail     error
}

func (s *fakeSink) Send(_ context.Context, _ string, p slack.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.payloads = append(s.payloads, p)
	return nil
}

type fakePublisher struct {
	published []types.CanonicalEvent
	failFor   string
}

func (p *fakePublisher) Publish(_ context.Context, ev types.CanonicalEvent) error {
	if ev.ObjectID == p.failFor {
		return errors.New("queue unavailable")
	}
	p.published = append(p.published, ev)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func formEvent(formID string) types.CanonicalEvent {
	return types.CanonicalEvent{
		Kind:            types.EventFormSubmission,
		OccurredAt:      1700000000000,
		PortalID:        111,
		ObjectID:        formID,
		FormID:          formID,
		DisplayName:     types.StringPtr("Contact us"),
		ApproximateTime: true,
	}
}

func newPipeline(sink *fakeSink, enricher Enricher) *Pipeline {
	d := dispatch.NewDispatcher(sink, nil, quietLogger())
	return NewPipeline(enricher, d, slack.DefaultOptions(), quietLogger())
}

func TestSubmissionEnricher_MergesLatest(t *testing.T) {
	forms := &fakeForms{latest: map[string]*types.Submission{
		"f1": {
			SubmittedAt: 1700000123000,
			PageURL:     "https://example.com/contact",
			Values:      []types.Field{{Name: "email", Value: "a@example.com"}},
		},
	}}
	e := NewSubmissionEnricher(forms, quietLogger())

	got := e.Enrich(context.Background(), formEvent("f1"))

	assert.Equal(t, []string{"f1"}, forms.calls)
	assert.Equal(t, int64(1700000123000), got.OccurredAt)
	assert.False(t, got.ApproximateTime)
	require.NotNil(t, got.PageURL)
	assert.Equal(t, "https://example.com/contact", *got.PageURL)
	v, ok := got.Fields.Get("email")
	assert.True(t, ok)
	assert.Equal(t, "a@example.com", v)
}

func TestSubmissionEnricher_FailureKeepsEvent(t *testing.T) {
	forms := &fakeForms{err: errors.New("502")}
	e := NewSubmissionEnricher(forms, quietLogger())

	in := formEvent("f1")
	got := e.Enrich(context.Background(), in)
	assert.Equal(t, in.OccurredAt, got.OccurredAt)
	assert.Zero(t, got.Fields.Len())
}

func TestSubmissionEnricher_SkipsContacts(t *testing.T) {
	forms := &fakeForms{}
	e := NewSubmissionEnricher(forms, quietLogger())

	e.Enrich(context.Background(), types.CanonicalEvent{Kind: types.EventContactCreated, ObjectID: "9"})
	e.Enrich(context.Background(), types.CanonicalEvent{Kind: types.EventFormSubmission, ObjectID: "9"})
	assert.Empty(t, forms.calls)
}

func TestSubmissionEnricher_LeavesPolledEventsAlone(t *testing.T) {
	forms := &fakeForms{latest: map[string]*types.Submission{
		"f1": {SubmittedAt: 1700000999000, Values: []types.Field{{Name: "email", Value: "latest@example.com"}}},
	}}
	e := NewSubmissionEnricher(forms, quietLogger())

	in := formEvent("f1")
	in.Fields = types.NewFieldSet(types.Field{Name: "email", Value: "own@example.com"})
	got := e.Enrich(types.WithDispatchSource(context.Background(), types.SourcePoll), in)

	assert.Empty(t, forms.calls)
	v, _ := got.Fields.Get("email")
	assert.Equal(t, "own@example.com", v)
	assert.Equal(t, in.OccurredAt, got.OccurredAt)
}

func TestPipeline_ProcessSendsOnePerEvent(t *testing.T) {
	sink := &fakeSink{}
	p := newPipeline(sink, nil)

	evs := []types.CanonicalEvent{
		formEvent("f1"),
		{Kind: types.EventContactCreated, OccurredAt: 1700000000000, PortalID: 111, ObjectID: "42"},
	}
	res := p.Process(context.Background(), evs, "https://hooks.slack.test/x")

	assert.Equal(t, 2, res.Sent)
	require.Len(t, sink.payloads, 2)
	assert.Equal(t, "Form submission: Contact us", sink.payloads[0].Text)
	assert.Contains(t, sink.payloads[1].Text, "New contact")
}

func TestPipeline_ProcessCountsFailures(t *testing.T) {
	sink := &fakeSink{fail: errors.New("slack 500")}
	p := newPipeline(sink, nil)

	res := p.Process(context.Background(), []types.CanonicalEvent{formEvent("f1"), formEvent("f2")}, "https://hooks.slack.test/x")
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 2, res.Failed)
}

func TestAsyncFanout_SurvivesCanceledRequest(t *testing.T) {
	sink := &fakeSink{}
	f := NewAsyncFanout(newPipeline(sink, nil))

	ctx, cancel := context.WithCancel(context.Background())
	f.Fanout(ctx, []types.CanonicalEvent{formEvent("f1")}, "https://hooks.slack.test/x")
	cancel()
	f.Wait()

	assert.Len(t, sink.payloads, 1)
}

func TestAsyncFanout_EmptyIsNoop(t *testing.T) {
	sink := &fakeSink{}
	f := NewAsyncFanout(newPipeline(sink, nil))
	f.Fanout(context.Background(), nil, "https://hooks.slack.test/x")
	f.Wait()
	assert.Empty(t, sink.payloads)
}

func TestQueueFanout_PublishesEachAndContinuesOnError(t *testing.T) {
	pub := &fakePublisher{failFor: "f2"}
	f := NewQueueFanout(pub, quietLogger())

	f.Fanout(context.Background(), []types.CanonicalEvent{formEvent("f1"), formEvent("f2"), formEvent("f3")}, "")

	require.Len(t, pub.published, 2)
	assert.Equal(t, "f1", pub.published[0].ObjectID)
	assert.Equal(t, "f3", pub.published[1].ObjectID)
}

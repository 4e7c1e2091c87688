package fulfillment

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/domain"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/queue"
)

type fakeQueue struct {
	msgs       []queue.Message
	receiveErr error
	deleteErr  error

	lastReceiveOpts queue.ReceiveOptions
	deleted         []string
}

func (f *fakeQueue) Receive(_ context.Context, opts queue.ReceiveOptions) ([]queue.Message, error) {
	f.lastReceiveOpts = opts
	return f.msgs, f.receiveErr
}

func (f *fakeQueue) Delete(_ context.Context, receiptHandle string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

type fakeSampler struct {
	refs []domain.RestaurantRef
	err  error

	calls       int
	lastCuisine string
	lastSeed    int64
	lastSize    int
}

func (f *fakeSampler) SampleByCuisine(_ context.Context, cuisine string, seed int64, size int) ([]domain.RestaurantRef, error) {
	f.calls++
	f.lastCuisine = cuisine
	f.lastSeed = seed
	f.lastSize = size
	return f.refs, f.err
}

type fakeStore struct {
	out  []domain.Restaurant
	err  error
	echo bool // fabricate one record per requested id, in request order

	lastIDs []string
	calls   int
}

func (f *fakeStore) BatchGetRestaurants(_ context.Context, ids []string) ([]domain.Restaurant, error) {
	f.calls++
	f.lastIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	if f.echo {
		out := make([]domain.Restaurant, 0, len(ids))
		for _, id := range ids {
			out = append(out, domain.Restaurant{BusinessID: id, Name: "Name " + id})
		}
		return out, nil
	}
	return f.out, nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	err  error
	sent []sentEmail
}

func (f *fakeMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: htmlBody})
	return nil
}

const validBody = `{"location":"Manhattan","cuisine":"japanese","dining_time":"19:00","party_size":4,"email":"diner@example.com","requested_at_iso":"2026-08-25T12:00:00Z"}`

func makeRefs(ids ...string) []domain.RestaurantRef {
	refs := make([]domain.RestaurantRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, domain.RestaurantRef{RestaurantID: id, Cuisine: "japanese"})
	}
	return refs
}

func mustNewWorker(t *testing.T, q MessageSource, s Sampler, st DetailStore, m Mailer, opts ...Option) *Worker {
	t.Helper()
	opts = append([]Option{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	w, err := New(q, s, st, m, 3, opts...)
	require.NoError(t, err)
	return w
}

func TestNew_Validations(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeSampler{}
	st := &fakeStore{}
	m := &fakeMailer{}

	_, err := New(nil, s, st, m, 3)
	require.Error(t, err)
	_, err = New(q, nil, st, m, 3)
	require.Error(t, err)
	_, err = New(q, s, nil, m, 3)
	require.Error(t, err)
	_, err = New(q, s, st, nil, 3)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_EmptyQueue(t *testing.T) {
	q := &fakeQueue{}
	w := mustNewWorker(t, q, &fakeSampler{}, &fakeStore{}, &fakeMailer{})

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{}, res)
	require.Equal(t, queue.ReceiveOptions{MaxMessages: 2, VisibilityTimeout: 60, WaitTime: 0}, q.lastReceiveOpts)
}

func TestRun_ReceiveError(t *testing.T) {
	q := &fakeQueue{receiveErr: errors.New("queue down")}
	w := mustNewWorker(t, q, &fakeSampler{}, &fakeStore{}, &fakeMailer{})

	_, err := w.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "receive work items")
}

func TestRun_HappyPathEmailsAndDeletes(t *testing.T) {
	q := &fakeQueue{msgs: []queue.Message{{Body: validBody, ReceiptHandle: "rh-1", ReceiveCount: 1}}}
	sampler := &fakeSampler{refs: makeRefs("r1", "r2", "r3", "r1", "r4", "r5")}
	store := &fakeStore{echo: true}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, sampler, store, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Processed: 1}, res)

	require.Equal(t, "japanese", sampler.lastCuisine)
	require.Equal(t, 20, sampler.lastSize)
	require.GreaterOrEqual(t, sampler.lastSeed, int64(1))
	require.LessOrEqual(t, sampler.lastSeed, int64(1_000_000))

	require.Len(t, store.lastIDs, 3)
	seen := map[string]bool{}
	for _, id := range store.lastIDs {
		require.False(t, seen[id], "selected ids must be unique")
		seen[id] = true
	}

	require.Len(t, mail.sent, 1)
	require.Equal(t, "diner@example.com", mail.sent[0].to)
	require.Equal(t, "Japanese picks for you", mail.sent[0].subject)
	require.Contains(t, mail.sent[0].body, "Japanese restaurant suggestion(s) in Manhattan")

	// Selection order carries through to the rendered rows.
	prev := -1
	for _, id := range store.lastIDs {
		idx := strings.Index(mail.sent[0].body, "Name "+id)
		require.Greater(t, idx, prev)
		prev = idx
	}

	require.Equal(t, []string{"rh-1"}, q.deleted)
}

func TestRun_NoCandidatesSendsFallbackAndDeletes(t *testing.T) {
	q := &fakeQueue{msgs: []queue.Message{{Body: validBody, ReceiptHandle: "rh-1", ReceiveCount: 1}}}
	sampler := &fakeSampler{}
	store := &fakeStore{}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, sampler, store, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Processed: 1}, res)

	require.Len(t, mail.sent, 1)
	require.Equal(t, "No Japanese suggestions right now", mail.sent[0].subject)
	require.Equal(t, "Sorry—couldn't find any japanese results.", mail.sent[0].body)
	require.Zero(t, store.calls, "no lookup should happen without candidates")
	require.Equal(t, []string{"rh-1"}, q.deleted)
}

func TestRun_EmptyLookupSendsTroubleNoticeAndDeletes(t *testing.T) {
	q := &fakeQueue{msgs: []queue.Message{{Body: validBody, ReceiptHandle: "rh-1", ReceiveCount: 1}}}
	sampler := &fakeSampler{refs: makeRefs("r1", "r2", "r3")}
	store := &fakeStore{}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, sampler, store, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Processed: 1}, res)

	require.Len(t, mail.sent, 1)
	require.Equal(t, "Japanese suggestions", mail.sent[0].subject)
	require.Equal(t, "We had trouble fetching details—please try again.", mail.sent[0].body)
	require.Equal(t, []string{"rh-1"}, q.deleted)
}

func TestRun_SamplerErrorLeavesItemForRetry(t *testing.T) {
	q := &fakeQueue{msgs: []queue.Message{{Body: validBody, ReceiptHandle: "rh-1", ReceiveCount: 1}}}
	sampler := &fakeSampler{err: errors.New("search unreachable")}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, sampler, &fakeStore{}, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Failed: 1}, res)
	require.Empty(t, q.deleted)
	require.Empty(t, mail.sent)
}

func TestRun_LookupErrorLeavesItemForRetry(t *testing.T) {
	q := &fakeQueue{msgs: []queue.Message{{Body: validBody, ReceiptHandle: "rh-1", ReceiveCount: 1}}}
	sampler := &fakeSampler{refs: makeRefs("r1", "r2", "r3")}
	store := &fakeStore{err: errors.New("throughput exceeded")}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, sampler, store, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Failed: 1}, res)
	require.Empty(t, q.deleted)
	require.Empty(t, mail.sent)
}

func TestRun_MailerErrorLeavesItemForRetry(t *testing.T) {
	q := &fakeQueue{msgs: []queue.Message{{Body: validBody, ReceiptHandle: "rh-1", ReceiveCount: 1}}}
	sampler := &fakeSampler{refs: makeRefs("r1", "r2", "r3")}
	store := &fakeStore{echo: true}
	mail := &fakeMailer{err: errors.New("ses throttled")}
	w := mustNewWorker(t, q, sampler, store, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Failed: 1}, res)
	require.Empty(t, q.deleted)
}

func TestRun_MalformedBodyLeftForRedelivery(t *testing.T) {
	q := &fakeQueue{msgs: []queue.Message{{Body: "not-json", ReceiptHandle: "rh-1", ReceiveCount: 1}}}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, &fakeSampler{}, &fakeStore{}, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Failed: 1}, res)
	require.Empty(t, q.deleted)
	require.Empty(t, mail.sent)
}

func TestRun_MalformedBodyDroppedAfterMaxReceives(t *testing.T) {
	q := &fakeQueue{msgs: []queue.Message{{Body: "not-json", ReceiptHandle: "rh-1", ReceiveCount: 3}}}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, &fakeSampler{}, &fakeStore{}, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Processed: 1}, res)
	require.Equal(t, []string{"rh-1"}, q.deleted)
	require.Empty(t, mail.sent)
}

func TestRun_MissingEmailTreatedAsMalformed(t *testing.T) {
	body := `{"location":"Manhattan","cuisine":"japanese","dining_time":"19:00","party_size":4,"email":"","requested_at_iso":"2026-08-25T12:00:00Z"}`
	q := &fakeQueue{msgs: []queue.Message{{Body: body, ReceiptHandle: "rh-1", ReceiveCount: 3}}}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, &fakeSampler{}, &fakeStore{}, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Processed: 1}, res)
	require.Equal(t, []string{"rh-1"}, q.deleted)
	require.Empty(t, mail.sent)
}

func TestRun_OneBadItemDoesNotAbortBatch(t *testing.T) {
	q := &fakeQueue{msgs: []queue.Message{
		{Body: "not-json", ReceiptHandle: "rh-1", ReceiveCount: 1},
		{Body: validBody, ReceiptHandle: "rh-2", ReceiveCount: 1},
	}}
	sampler := &fakeSampler{refs: makeRefs("r1", "r2", "r3")}
	store := &fakeStore{echo: true}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, sampler, store, mail)

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 2, Processed: 1, Failed: 1}, res)
	require.Equal(t, []string{"rh-2"}, q.deleted)
	require.Len(t, mail.sent, 1)
}

func TestRun_DeleteErrorCountsAsFailed(t *testing.T) {
	q := &fakeQueue{
		msgs:      []queue.Message{{Body: validBody, ReceiptHandle: "rh-1", ReceiveCount: 1}},
		deleteErr: errors.New("receipt expired"),
	}
	sampler := &fakeSampler{refs: makeRefs("r1", "r2", "r3")}
	w := mustNewWorker(t, q, sampler, &fakeStore{echo: true}, &fakeMailer{})

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Failed: 1}, res)
}

func TestRun_RedeliveryOnlyDuplicatesNotification(t *testing.T) {
	// First delivery: the delete fails after the email went out, so the
	// item comes back after its lease expires.
	q := &fakeQueue{
		msgs:      []queue.Message{{Body: validBody, ReceiptHandle: "rh-1", ReceiveCount: 1}},
		deleteErr: errors.New("receipt expired"),
	}
	sampler := &fakeSampler{refs: makeRefs("r1", "r2", "r3")}
	store := &fakeStore{echo: true}
	mail := &fakeMailer{}
	w := mustNewWorker(t, q, sampler, store, mail)

	_, err := w.Run(context.Background())
	require.NoError(t, err)

	// Second delivery of the same item succeeds end to end.
	q.deleteErr = nil
	q.msgs = []queue.Message{{Body: validBody, ReceiptHandle: "rh-1b", ReceiveCount: 2}}

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Received: 1, Processed: 1}, res)

	// Both passes only read from the stores; the diner just gets the
	// suggestions twice.
	require.Len(t, mail.sent, 2)
	require.Equal(t, mail.sent[0].to, mail.sent[1].to)
	require.Equal(t, 2, sampler.calls)
	require.Equal(t, 2, store.calls)
	require.Equal(t, []string{"rh-1b"}, q.deleted)
}

// ---------------------------------------------------------------------------
// selectUnique
// ---------------------------------------------------------------------------

func TestSelectUnique_DedupesToTarget(t *testing.T) {
	w := mustNewWorker(t, &fakeQueue{}, &fakeSampler{}, &fakeStore{}, &fakeMailer{})
	refs := makeRefs("a", "a", "b", "b", "c", "c", "d", "d")

	ids := w.selectUnique(refs)
	require.Len(t, ids, 3)
	seen := map[string]bool{}
	for _, id := range ids {
		require.Contains(t, []string{"a", "b", "c", "d"}, id)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestSelectUnique_FewerCandidatesThanTarget(t *testing.T) {
	w := mustNewWorker(t, &fakeQueue{}, &fakeSampler{}, &fakeStore{}, &fakeMailer{})
	refs := makeRefs("a", "a", "", "b")

	ids := w.selectUnique(refs)
	require.Len(t, ids, 2)
	require.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestSelectUnique_DeterministicForFixedSource(t *testing.T) {
	refs := makeRefs("a", "b", "c", "d", "e", "f")

	w1 := mustNewWorker(t, &fakeQueue{}, &fakeSampler{}, &fakeStore{}, &fakeMailer{})
	w2 := mustNewWorker(t, &fakeQueue{}, &fakeSampler{}, &fakeStore{}, &fakeMailer{})
	require.Equal(t, w1.selectUnique(refs), w2.selectUnique(refs))
}

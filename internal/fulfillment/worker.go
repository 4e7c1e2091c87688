package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/domain"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/queue"
)

const (
	defaultHitsPerEmail = 3
	defaultMaxReceives  = 3
	defaultCallTimeout  = 10 * time.Second

	// One bounded poll-and-drain pass per invocation: a short poll for a
	// small batch, leased long enough to finish all downstream calls.
	receiveMaxMessages      = 2
	receiveVisibilitySecs   = 60
	receiveWaitSecs         = 0
	minCandidateOversample  = 20
	candidateOversampleMult = 4
)

// MessageSource leases and deletes work items on the durable queue.
// *queue.Client satisfies this interface.
type MessageSource interface {
	Receive(ctx context.Context, opts queue.ReceiveOptions) ([]queue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Sampler returns randomized thin references for a cuisine.
// *search.Client satisfies this interface.
type Sampler interface {
	SampleByCuisine(ctx context.Context, cuisine string, seed int64, size int) ([]domain.RestaurantRef, error)
}

// DetailStore fetches full restaurant records by business ID.
// *repository.Client satisfies this interface.
type DetailStore interface {
	BatchGetRestaurants(ctx context.Context, ids []string) ([]domain.Restaurant, error)
}

// Mailer dispatches one notification email.
// *mailer.Client satisfies this interface.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Worker drains queued dining requests: for each leased item it samples
// candidate restaurants from the search index, enriches them from the
// detail store, emails the suggestions, and deletes the item. An item
// is deleted only once its flow fully succeeded; anything left behind
// becomes visible again after the lease expires and is retried.
type Worker struct {
	queue        MessageSource
	sampler      Sampler
	store        DetailStore
	mailer       Mailer
	hitsPerEmail int
	maxReceives  int
	callTimeout  time.Duration
	rnd          *rand.Rand
}

type Option func(*Worker)

// WithRand fixes the randomness source, for reproducible selection.
func WithRand(r *rand.Rand) Option {
	return func(w *Worker) {
		w.rnd = r
	}
}

// WithCallTimeout bounds each downstream call so one hung collaborator
// cannot stall a whole invocation.
func WithCallTimeout(d time.Duration) Option {
	return func(w *Worker) {
		w.callTimeout = d
	}
}

// WithMaxReceives sets how many deliveries a malformed item survives
// before it is dropped instead of retried.
func WithMaxReceives(n int) Option {
	return func(w *Worker) {
		w.maxReceives = n
	}
}

func New(q MessageSource, sampler Sampler, store DetailStore, m Mailer, hitsPerEmail int, opts ...Option) (*Worker, error) {
	if q == nil {
		return nil, errors.New("fulfillment: message source must not be nil")
	}
	if sampler == nil {
		return nil, errors.New("fulfillment: sampler must not be nil")
	}
	if store == nil {
		return nil, errors.New("fulfillment: detail store must not be nil")
	}
	if m == nil {
		return nil, errors.New("fulfillment: mailer must not be nil")
	}
	if hitsPerEmail <= 0 {
		hitsPerEmail = defaultHitsPerEmail
	}
	w := &Worker{
		queue:        q,
		sampler:      sampler,
		store:        store,
		mailer:       m,
		hitsPerEmail: hitsPerEmail,
		maxReceives:  defaultMaxReceives,
		callTimeout:  defaultCallTimeout,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Result summarizes one poll-and-drain pass.
type Result struct {
	Received  int
	Processed int
	Failed    int
}

// Run performs one bounded pass: lease a small batch and process each
// item independently. A failing item is logged and left leased so it
// retries after the visibility timeout; it never aborts the batch.
func (w *Worker) Run(ctx context.Context) (Result, error) {
	rctx, cancel := context.WithTimeout(ctx, w.callTimeout)
	msgs, err := w.queue.Receive(rctx, queue.ReceiveOptions{
		MaxMessages:       receiveMaxMessages,
		VisibilityTimeout: receiveVisibilitySecs,
		WaitTime:          receiveWaitSecs,
	})
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("fulfillment: receive work items: %w", err)
	}

	res := Result{Received: len(msgs)}
	if len(msgs) == 0 {
		slog.Info("no work items to process")
		return res, nil
	}

	for _, msg := range msgs {
		if err := w.processOne(ctx, msg); err != nil {
			slog.Error("work item failed, leaving for retry", "receive_count", msg.ReceiveCount, "err", err)
			res.Failed++
			continue
		}
		res.Processed++
	}
	return res, nil
}

// processOne handles a single leased work item end to end. A nil return
// means the item was fully handled and deleted from the queue.
func (w *Worker) processOne(ctx context.Context, msg queue.Message) error {
	var item domain.WorkItem
	if err := json.Unmarshal([]byte(msg.Body), &item); err != nil {
		return w.handleMalformed(ctx, msg, fmt.Errorf("fulfillment: decode work item: %w", err))
	}

	cuisine := strings.ToLower(strings.TrimSpace(item.Cuisine))
	email := strings.TrimSpace(item.Email)
	if cuisine == "" || email == "" {
		return w.handleMalformed(ctx, msg, errors.New("fulfillment: work item is missing cuisine or email"))
	}

	size := candidateOversampleMult * w.hitsPerEmail
	if size < minCandidateOversample {
		size = minCandidateOversample
	}
	seed := int64(w.rnd.Intn(1_000_000) + 1)

	sctx, cancel := context.WithTimeout(ctx, w.callTimeout)
	refs, err := w.sampler.SampleByCuisine(sctx, cuisine, seed, size)
	cancel()
	if err != nil {
		return fmt.Errorf("fulfillment: sample candidates: %w", err)
	}

	title := titleCase(cuisine)
	if len(refs) == 0 {
		subject := fmt.Sprintf("No %s suggestions right now", title)
		body := fmt.Sprintf("Sorry—couldn't find any %s results.", cuisine)
		if err := w.sendMail(ctx, email, subject, body); err != nil {
			return fmt.Errorf("fulfillment: send no-results notice: %w", err)
		}
		return w.deleteItem(ctx, msg)
	}

	ids := w.selectUnique(refs)

	gctx, cancel := context.WithTimeout(ctx, w.callTimeout)
	details, err := w.store.BatchGetRestaurants(gctx, ids)
	cancel()
	if err != nil {
		return fmt.Errorf("fulfillment: fetch details: %w", err)
	}
	if len(details) == 0 {
		subject := fmt.Sprintf("%s suggestions", title)
		if err := w.sendMail(ctx, email, subject, "We had trouble fetching details—please try again."); err != nil {
			return fmt.Errorf("fulfillment: send lookup notice: %w", err)
		}
		return w.deleteItem(ctx, msg)
	}

	html, err := renderSuggestionsHTML(title, details, nowUTC())
	if err != nil {
		return fmt.Errorf("fulfillment: render suggestions email: %w", err)
	}
	if err := w.sendMail(ctx, email, fmt.Sprintf("%s picks for you", title), html); err != nil {
		return fmt.Errorf("fulfillment: send suggestions: %w", err)
	}
	return w.deleteItem(ctx, msg)
}

// handleMalformed drops an item that can never succeed once it has been
// delivered maxReceives times; before that it is left for redelivery in
// case the malformation was a transient producer bug.
func (w *Worker) handleMalformed(ctx context.Context, msg queue.Message, cause error) error {
	if msg.ReceiveCount < w.maxReceives {
		return cause
	}
	slog.Warn("dropping malformed work item", "receive_count", msg.ReceiveCount, "err", cause)
	return w.deleteItem(ctx, msg)
}

// selectUnique shuffles the sampled references and keeps the first
// appearance of each identity, up to hitsPerEmail. The returned order is
// the selection order that presentation must preserve.
func (w *Worker) selectUnique(refs []domain.RestaurantRef) []string {
	shuffled := make([]domain.RestaurantRef, len(refs))
	copy(shuffled, refs)
	w.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	ids := make([]string, 0, w.hitsPerEmail)
	seen := make(map[string]struct{}, w.hitsPerEmail)
	for _, ref := range shuffled {
		if ref.RestaurantID == "" {
			continue
		}
		if _, ok := seen[ref.RestaurantID]; ok {
			continue
		}
		seen[ref.RestaurantID] = struct{}{}
		ids = append(ids, ref.RestaurantID)
		if len(ids) >= w.hitsPerEmail {
			break
		}
	}
	return ids
}

func (w *Worker) sendMail(ctx context.Context, to, subject, body string) error {
	cctx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()
	return w.mailer.Send(cctx, to, subject, body)
}

func (w *Worker) deleteItem(ctx context.Context, msg queue.Message) error {
	cctx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()
	if err := w.queue.Delete(cctx, msg.ReceiptHandle); err != nil {
		return fmt.Errorf("fulfillment: delete work item: %w", err)
	}
	return nil
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

var nowUTC = func() time.Time {
	return time.Now().UTC()
}

package inventory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nixlim/herd-top/internal/api"
	"go.uber.org/zap"
)

// Submitter posts a movement. *api.Client implements it.
type Submitter interface {
	CreateInventoryMovement(ctx context.Context, farmID, idempotencyKey string, body any) (*api.MovementResult, error)
}

type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeReplayed
	OutcomeNetwork
	OutcomeConflict
	OutcomeForbidden
	OutcomeValidation
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeReplayed:
		return "replayed"
	case OutcomeNetwork:
		return "network"
	case OutcomeConflict:
		return "conflict"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeValidation:
		return "validation"
	default:
		return "failed"
	}
}

// Success reports whether the backend holds the movement.
func (o Outcome) Success() bool {
	return o == OutcomeCreated || o == OutcomeReplayed
}

// Result is what the form shows after a submission.
type Result struct {
	Outcome     Outcome
	Message     string
	Key         string
	Movement    *api.InventoryMovement
	FieldErrors []api.FieldError
	// Retryable is set only when resubmitting the same payload with the same
	// key is safe.
	Retryable bool
	Err       error
}

const (
	msgCreated    = "Movimentação registrada."
	msgReplayed   = "Repetição idempotente confirmada: a movimentação já estava registrada."
	msgNetwork    = "Sem resposta do servidor. É seguro tentar novamente com a mesma chave."
	msgConflict   = "Conflito: esta chave já foi usada com outros dados. Revise o formulário e envie novamente."
	msgForbidden  = "Você não tem permissão para registrar movimentações nesta fazenda."
	msgValidation = "Dados inválidos. Corrija os campos indicados e envie novamente."
)

// Draft is the movement form controller for one farm. It is safe for
// concurrent use.
type Draft struct {
	farmID    string
	store     *RetryStore
	submitter Submitter
	logger    *zap.SugaredLogger
	now       func() time.Time

	mu      sync.Mutex
	payload Payload
	key     DraftKey
	pending bool
}

type DraftOption func(*Draft)

func WithNow(now func() time.Time) DraftOption {
	return func(d *Draft) { d.now = now }
}

func NewDraft(farmID string, store *RetryStore, submitter Submitter, logger *zap.SugaredLogger, opts ...DraftOption) *Draft {
	d := &Draft{
		farmID:    farmID,
		store:     store,
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Draft) FarmID() string { return d.farmID }

// Open restores a pending snapshot into the form, if one exists.
func (d *Draft) Open() (Snapshot, bool) {
	snap, ok := d.store.Load(d.farmID)
	if !ok {
		return Snapshot{}, false
	}

	d.mu.Lock()
	d.payload = snap.Payload
	d.key = snap.DraftKey()
	d.pending = true
	d.mu.Unlock()

	d.logger.Infow("retry snapshot restored",
		"farm", d.farmID,
		"idempotency_key", snap.IdempotencyKey,
		"age", d.now().Sub(snap.CreatedAt),
	)
	return snap, true
}

// Edit replaces the form values. When the payload hash changes the key is
// rotated and any pending snapshot is discarded. It reports whether the key
// changed.
func (d *Draft) Edit(p Payload) bool {
	d.mu.Lock()
	next, changed := SyncDraftKey(d.key, p)
	d.payload = p
	d.key = next
	drop := changed && d.pending
	if drop {
		d.pending = false
	}
	d.mu.Unlock()

	if drop {
		if err := d.store.Clear(d.farmID); err != nil {
			d.logger.Warnw("clearing stale retry snapshot failed", "farm", d.farmID, "error", err)
		} else {
			d.logger.Infow("retry snapshot discarded after edit", "farm", d.farmID)
		}
	}
	return changed
}

func (d *Draft) Payload() Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payload
}

func (d *Draft) Key() DraftKey {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.key
}

// Pending reports whether a retry snapshot is held for this form.
func (d *Draft) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Discard drops the snapshot and resets the form.
func (d *Draft) Discard() error {
	d.reset()
	return d.store.Clear(d.farmID)
}

func (d *Draft) reset() {
	d.mu.Lock()
	d.payload = Payload{}
	d.key = DraftKey{}
	d.pending = false
	d.mu.Unlock()
}

// Submit posts the current payload under the current key and applies the
// retry policy for the outcome.
func (d *Draft) Submit(ctx context.Context) Result {
	d.mu.Lock()
	if next, changed := SyncDraftKey(d.key, d.payload); changed {
		d.key = next
	}
	payload := d.payload
	key := d.key
	d.mu.Unlock()

	res, err := d.submitter.CreateInventoryMovement(ctx, d.farmID, key.Key, RequestBody(payload))
	if err == nil {
		return d.succeeded(key, res)
	}

	switch status := api.StatusCode(err); {
	case api.IsTransport(err):
		return d.networkFailure(key, payload, err)
	case status == http.StatusConflict:
		return d.conflict(payload, err)
	case status == http.StatusForbidden:
		d.dropSnapshot()
		d.logger.Warnw("inventory movement forbidden", "farm", d.farmID)
		return Result{Outcome: OutcomeForbidden, Message: msgForbidden, Key: key.Key, Err: err}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		d.dropSnapshot()
		fields := api.FieldErrors(err)
		d.logger.Infow("inventory movement rejected", "farm", d.farmID, "status", status, "fields", len(fields))
		return Result{Outcome: OutcomeValidation, Message: msgValidation, Key: key.Key, FieldErrors: fields, Err: err}
	default:
		d.logger.Warnw("inventory movement failed", "farm", d.farmID, "status", status, "error", err)
		msg := "Falha ao registrar movimentação."
		if status != 0 {
			msg = fmt.Sprintf("Falha ao registrar movimentação (HTTP %d).", status)
		}
		return Result{Outcome: OutcomeFailed, Message: msg, Key: key.Key, Err: err}
	}
}

func (d *Draft) succeeded(key DraftKey, res *api.MovementResult) Result {
	if err := d.store.Clear(d.farmID); err != nil {
		d.logger.Warnw("clearing retry snapshot failed", "farm", d.farmID, "error", err)
	}
	d.reset()

	movement := res.Movement
	if res.DecodeErr != nil {
		d.logger.Warnw("inventory movement stored without readable response",
			"farm", d.farmID,
			"idempotency_key", key.Key,
			"status", res.StatusCode,
			"error", res.DecodeErr,
		)
	}
	if res.Replayed {
		d.logger.Infow("inventory movement replayed", "farm", d.farmID, "idempotency_key", key.Key, "movement", movement.ID)
		return Result{Outcome: OutcomeReplayed, Message: msgReplayed, Key: key.Key, Movement: &movement}
	}
	d.logger.Infow("inventory movement created", "farm", d.farmID, "idempotency_key", key.Key, "movement", movement.ID)
	return Result{Outcome: OutcomeCreated, Message: msgCreated, Key: key.Key, Movement: &movement}
}

func (d *Draft) networkFailure(key DraftKey, payload Payload, err error) Result {
	snap := NewSnapshot(d.farmID, key.Key, payload, d.now())
	if saveErr := d.store.Save(snap); saveErr != nil {
		d.logger.Errorw("saving retry snapshot failed", "farm", d.farmID, "error", saveErr)
	} else {
		d.mu.Lock()
		d.pending = true
		d.mu.Unlock()
	}
	d.logger.Warnw("inventory movement got no response", "farm", d.farmID, "idempotency_key", key.Key, "error", err)
	return Result{Outcome: OutcomeNetwork, Message: msgNetwork, Key: key.Key, Retryable: true, Err: err}
}

func (d *Draft) conflict(payload Payload, err error) Result {
	d.dropSnapshot()

	next := DraftKey{Key: NewIdempotencyKey(), PayloadHash: PayloadHash(payload)}
	d.mu.Lock()
	d.key = next
	d.mu.Unlock()

	d.logger.Warnw("idempotency conflict, key rotated", "farm", d.farmID, "idempotency_key", next.Key)
	return Result{Outcome: OutcomeConflict, Message: msgConflict, Key: next.Key, Err: err}
}

// dropSnapshot clears retry state after the backend answered definitively.
func (d *Draft) dropSnapshot() {
	d.mu.Lock()
	had := d.pending
	d.pending = false
	d.mu.Unlock()

	if !had {
		return
	}
	if err := d.store.Clear(d.farmID); err != nil {
		d.logger.Warnw("clearing retry snapshot failed", "farm", d.farmID, "error", err)
	}
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/argom2011/TangoWEB/internal/clock"
	"github.com/argom2011/TangoWEB/internal/domain"
	"github.com/argom2011/TangoWEB/internal/inventory"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCommitTimeout = 5 * time.Second
	DefaultEventTopic    = "orders.confirmed"
)

// DefaultPriceTolerance is how far a cart's unit price may drift from the
// catalog price before the commit is refused.
var DefaultPriceTolerance = decimal.New(1, -2)

// CommitService is the order commit engine. It re-validates an aggregate,
// re-verifies its references and then persists order, lines, stock
// decrements and the confirmation event in one unit of work.
type CommitService struct {
	catalog   Catalog
	gateway   Gateway
	clock     clock.Clock
	timeout   time.Duration
	retry     RetryConfig
	epsilon   decimal.Decimal
	tolerance decimal.Decimal
	topic     string
	logger    *log.Logger
	recorder  CommitRecorder
	observer  func(from, to domain.AggregateState)
	tracer    trace.Tracer
}

type CommitOption func(*CommitService)

// WithCommitTimeout bounds each unit-of-work attempt.
func WithCommitTimeout(d time.Duration) CommitOption {
	return func(s *CommitService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithRetryConfig(cfg RetryConfig) CommitOption {
	return func(s *CommitService) {
		s.retry = cfg
	}
}

func WithPriceTolerance(tol decimal.Decimal) CommitOption {
	return func(s *CommitService) {
		if !tol.IsNegative() {
			s.tolerance = tol
		}
	}
}

func WithTotalEpsilon(eps decimal.Decimal) CommitOption {
	return func(s *CommitService) {
		if !eps.IsNegative() {
			s.epsilon = eps
		}
	}
}

func WithEventTopic(topic string) CommitOption {
	return func(s *CommitService) {
		if topic != "" {
			s.topic = topic
		}
	}
}

func WithLogger(logger *log.Logger) CommitOption {
	return func(s *CommitService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRecorder(r CommitRecorder) CommitOption {
	return func(s *CommitService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithStateObserver is called on every aggregate state transition.
func WithStateObserver(fn func(from, to domain.AggregateState)) CommitOption {
	return func(s *CommitService) {
		s.observer = fn
	}
}

func NewCommitService(catalog Catalog, gateway Gateway, clk clock.Clock, opts ...CommitOption) *CommitService {
	svc := &CommitService{
		catalog:   catalog,
		gateway:   gateway,
		clock:     clk,
		timeout:   defaultCommitTimeout,
		retry:     DefaultRetryConfig(),
		epsilon:   domain.DefaultTotalEpsilon,
		tolerance: DefaultPriceTolerance,
		topic:     DefaultEventTopic,
		logger:    log.Default(),
		recorder:  nopRecorder{},
		tracer:    otel.Tracer("github.com/argom2011/TangoWEB/internal/app"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CommitResult struct {
	OrderID   string
	Total     decimal.Decimal
	CreatedAt time.Time
	Warnings  []domain.LowStockWarning
	Attempts  int
}

// Commit persists agg atomically. On failure the returned error is always a
// *domain.CommitError and nothing has been persisted.
func (s *CommitService) Commit(ctx context.Context, agg domain.Aggregate) (CommitResult, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "orders.commit", trace.WithAttributes(
		attribute.Int64("customer.id", agg.CustomerID),
		attribute.Int("order.lines", len(agg.Items)),
	))
	defer span.End()

	st := &stateTracker{state: domain.StateBuilt, observer: s.observer}
	res, attempts, err := s.commit(ctx, agg, st)
	elapsed := time.Since(started)

	if err != nil {
		st.move(domain.StateRejected)
		cerr := domain.NewCommitError(err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Kind))
		s.recorder.ObserveCommit(string(cerr.Kind), attempts, elapsed.Seconds())
		s.logger.Printf("commit outcome=rejected kind=%s customer_id=%d attempts=%d duration=%s err=%q",
			cerr.Kind, agg.CustomerID, attempts, elapsed, cerr.Detail)
		return CommitResult{}, cerr
	}

	st.move(domain.StateConfirmed)
	res.Attempts = attempts
	span.SetAttributes(attribute.String("order.id", res.OrderID), attribute.Int("commit.attempts", attempts))
	s.recorder.ObserveCommit("confirmed", attempts, elapsed.Seconds())
	s.logger.Printf("commit outcome=confirmed order_id=%s customer_id=%d total=%s attempts=%d warnings=%d duration=%s",
		res.OrderID, agg.CustomerID, res.Total.StringFixed(2), attempts, len(res.Warnings), elapsed)
	return res, nil
}

func (s *CommitService) commit(ctx context.Context, agg domain.Aggregate, st *stateTracker) (CommitResult, int, error) {
	st.move(domain.StateValidating)
	if err := agg.Validate(s.epsilon); err != nil {
		return CommitResult{}, 0, err
	}
	if err := s.verifyCustomer(ctx, agg.CustomerID); err != nil {
		return CommitResult{}, 0, err
	}
	order, err := s.priceOrder(ctx, agg)
	if err != nil {
		return CommitResult{}, 0, err
	}

	st.move(domain.StateCommitting)
	var res CommitResult
	attempts, err := retryOnConflict(ctx, s.retry, func(attempt int) error {
		r, err := s.attempt(ctx, order, attempt)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return CommitResult{}, attempts, classifyAttemptError(err)
	}
	return res, attempts, nil
}

func (s *CommitService) verifyCustomer(ctx context.Context, customerID int64) error {
	active, err := s.catalog.IsCustomerActive(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCustomer) {
			return &domain.ReferenceError{Entity: "customer", ID: customerID, Err: domain.ErrUnknownCustomer}
		}
		return fmt.Errorf("lookup customer %d: %w", customerID, err)
	}
	if !active {
		return &domain.ReferenceError{Entity: "customer", ID: customerID, Err: domain.ErrInactiveCustomer}
	}
	return nil
}

// priceOrder resolves every line against the catalog and builds the order
// that will be persisted, priced at the authoritative catalog price.
func (s *CommitService) priceOrder(ctx context.Context, agg domain.Aggregate) (domain.Order, error) {
	order := domain.Order{
		ID:         newOrderID(),
		CustomerID: agg.CustomerID,
		CreatedAt:  s.clock.Now(),
		Status:     domain.OrderStatusConfirmed,
		Lines:      make([]domain.OrderLine, 0, len(agg.Items)),
	}

	refs := make(map[int64]domain.ProductRef, len(agg.Items))
	total := decimal.Zero
	for _, it := range agg.Items {
		ref, ok := refs[it.ProductID]
		if !ok {
			var err error
			ref, err = s.catalog.GetActiveProduct(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, domain.ErrUnknownProduct) {
					return domain.Order{}, &domain.ReferenceError{Entity: "product", ID: it.ProductID, Err: domain.ErrUnknownProduct}
				}
				return domain.Order{}, fmt.Errorf("lookup product %d: %w", it.ProductID, err)
			}
			refs[it.ProductID] = ref
		}
		if !ref.Active {
			return domain.Order{}, &domain.ReferenceError{Entity: "product", ID: it.ProductID, Err: domain.ErrInactiveProduct}
		}
		if it.UnitPrice.Sub(ref.Price).Abs().GreaterThan(s.tolerance) {
			return domain.Order{}, &domain.PriceMismatchError{ProductID: it.ProductID, Quoted: it.UnitPrice, Catalog: ref.Price}
		}

		subtotal := ref.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		order.Lines = append(order.Lines, domain.OrderLine{
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: ref.Price,
			Subtotal:  subtotal,
		})
		total = total.Add(subtotal)
	}
	order.Total = total
	return order, nil
}

func (s *CommitService) attempt(ctx context.Context, order domain.Order, attempt int) (CommitResult, error) {
	ctx, span := s.tracer.Start(ctx, "orders.commit.attempt", trace.WithAttributes(attribute.Int("commit.attempt", attempt)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		orderID  string
		warnings []domain.LowStockWarning
	)
	err := s.gateway.WithinTx(ctx, func(txCtx context.Context, uow UnitOfWork) error {
		warnings = nil
		demands := make([]inventory.Demand, 0, len(order.Lines))
		for _, line := range order.Lines {
			demands = append(demands, inventory.Demand{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		reserved, err := inventory.NewLedger(uow).Reserve(txCtx, order.ID, demands, order.CreatedAt)
		if err != nil {
			return err
		}
		movements := make([]domain.StockMovement, 0, len(reserved))
		for _, r := range reserved {
			movements = append(movements, r.Movement)
			if r.Warning != nil {
				warnings = append(warnings, *r.Warning)
			}
		}

		id, err := uow.InsertOrder(txCtx, order)
		if err != nil {
			return err
		}
		if err := uow.InsertStockMovements(txCtx, movements); err != nil {
			return err
		}
		msg, err := s.confirmedEvent(order, warnings)
		if err != nil {
			return err
		}
		if err := uow.AppendOutbox(txCtx, msg); err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if err != nil {
		if ctx.Err() != nil && domain.KindOf(err) == domain.KindPersistence {
			err = fmt.Errorf("%w: %w", err, ctx.Err())
		}
		span.RecordError(err)
		return CommitResult{}, err
	}

	return CommitResult{
		OrderID:   orderID,
		Total:     order.Total,
		CreatedAt: order.CreatedAt,
		Warnings:  warnings,
	}, nil
}

func classifyAttemptError(err error) error {
	if domain.KindOf(err) != domain.KindPersistence {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}

type orderConfirmedItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type orderConfirmedEvent struct {
	EventID    string                   `json:"eventId"`
	Type       string                   `json:"type"`
	OrderID    string                   `json:"orderId"`
	CustomerID int64                    `json:"customerId"`
	Total      decimal.Decimal          `json:"total"`
	CreatedAt  time.Time                `json:"createdAt"`
	Items      []orderConfirmedItem     `json:"items"`
	LowStock   []domain.LowStockWarning `json:"lowStock,omitempty"`
}

func (s *CommitService) confirmedEvent(order domain.Order, warnings []domain.LowStockWarning) (domain.OutboxMessage, error) {
	evt := orderConfirmedEvent{
		EventID:    newEventID(),
		Type:       "OrderConfirmed",
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total,
		CreatedAt:  order.CreatedAt,
		Items:      make([]orderConfirmedItem, 0, len(order.Lines)),
		LowStock:   warnings,
	}
	for _, l := range order.Lines {
		evt.Items = append(evt.Items, orderConfirmedItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal order confirmed event: %w", err)
	}
	return domain.OutboxMessage{
		EventID:   evt.EventID,
		Topic:     s.topic,
		Key:       order.ID,
		Payload:   payload,
		CreatedAt: order.CreatedAt,
	}, nil
}

type stateTracker struct {
	state    domain.AggregateState
	observer func(from, to domain.AggregateState)
}

func (t *stateTracker) move(to domain.AggregateState) {
	if !t.state.CanTransition(to) {
		return
	}
	from := t.state
	t.state = to
	if t.observer != nil {
		t.observer(from, to)
	}
}

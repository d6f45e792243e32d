package shipper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a carrier call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Recorder receives per-call metrics. telemetry.Metrics implements it.
type Recorder interface {
	RecordRequest(operation, carrier, status string, duration float64)
	RecordError(carrier, errorType string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, string, string, float64) {}
func (nopRecorder) RecordError(string, string)                   {}

// trackingRoutes sends tracking queries for a carrier to the adapter that
// actually tracks its parcels. Colissimo parcels are followed through the
// La Poste tracking service.
var trackingRoutes = map[Carrier]Carrier{
	CarrierColissimo: CarrierLaPoste,
}

// relayCarrier is the only carrier offering relay point search.
const relayCarrier = CarrierMondialRelay

// DispatcherConfig holds dispatcher options.
type DispatcherConfig struct {
	// Timeout is the deadline applied to every carrier call.
	Timeout time.Duration
}

// Dispatcher is the entry point used by the fulfillment workflow. It picks
// the adapter, resolves credentials, bounds the call with a deadline and
// records the outcome.
type Dispatcher struct {
	registry *Registry
	resolver CredentialResolver
	logger   *otelzap.Logger
	metrics  Recorder
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(cfg DispatcherConfig, registry *Registry, resolver CredentialResolver, logger *otelzap.Logger, metrics Recorder) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Dispatcher{
		registry: registry,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		timeout:  timeout,
	}
}

// Carriers returns the registered carriers.
func (d *Dispatcher) Carriers() []Carrier {
	return d.registry.Carriers()
}

// GenerateLabel creates a label with the given carrier.
func (d *Dispatcher) GenerateLabel(ctx context.Context, c Carrier, req *LabelRequest) (*LabelResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return dispatch(ctx, d, OpGenerateLabel, c, func(ctx context.Context, s Shipper, creds Credentials) (*LabelResult, error) {
		return s.GenerateLabel(ctx, creds, req)
	})
}

// TrackShipment returns the tracking state of a parcel shipped with c.
func (d *Dispatcher) TrackShipment(ctx context.Context, c Carrier, trackingNumber string) (*TrackingResult, error) {
	if trackingNumber == "" {
		return nil, fmt.Errorf("%w: empty tracking number", ErrInvalidRequest)
	}
	if routed, ok := trackingRoutes[c]; ok {
		c = routed
	}
	return dispatch(ctx, d, OpTrackShipment, c, func(ctx context.Context, s Shipper, creds Credentials) (*TrackingResult, error) {
		return s.TrackShipment(ctx, creds, trackingNumber)
	})
}

// SearchRelayPoints lists relay points around a postal code.
func (d *Dispatcher) SearchRelayPoints(ctx context.Context, q *RelayQuery) ([]RelayPoint, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return dispatch(ctx, d, OpSearchRelayPoints, relayCarrier, func(ctx context.Context, s Shipper, creds Credentials) ([]RelayPoint, error) {
		return s.SearchRelayPoints(ctx, creds, q)
	})
}

// TestCredentials checks the configured credentials of a carrier and
// reduces the outcome to a display-friendly result.
func (d *Dispatcher) TestCredentials(ctx context.Context, c Carrier) CredentialCheck {
	_, err := dispatch(ctx, d, OpTestCredentials, c, func(ctx context.Context, s Shipper, creds Credentials) (struct{}, error) {
		return struct{}{}, s.TestCredentials(ctx, creds)
	})
	switch {
	case err == nil:
		return CredentialCheck{OK: true}
	case errors.Is(err, ErrAuthenticationFailed):
		return CredentialCheck{Error: "invalid credentials"}
	case errors.Is(err, ErrCredentialsNotFound):
		return CredentialCheck{Error: "credentials not configured"}
	}
	return CredentialCheck{Error: err.Error()}
}

// TestAllCredentials checks every registered carrier concurrently.
func (d *Dispatcher) TestAllCredentials(ctx context.Context) map[Carrier]CredentialCheck {
	carriers := d.registry.Carriers()
	results := make(map[Carrier]CredentialCheck, len(carriers))
	mu := &sync.Mutex{}

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range carriers {
		g.Go(func() error {
			check := d.TestCredentials(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			results[c] = check
			return nil // a failing carrier must not cancel the others
		})
	}
	_ = g.Wait()
	return results
}

func dispatch[T any](ctx context.Context, d *Dispatcher, op string, c Carrier, call func(context.Context, Shipper, Credentials) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	ctx, requestID := ensureRequestID(ctx)
	log := d.logger.Ctx(ctx)

	s, err := d.registry.Get(c)
	if err != nil {
		d.observe(log, requestID, op, c, start, err)
		return zero, err
	}

	creds, err := d.resolve(ctx, c)
	if err != nil {
		d.observe(log, requestID, op, c, start, err)
		return zero, err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := call(callCtx, s, creds)
	d.observe(log, requestID, op, c, start, err)
	if err != nil {
		return zero, err
	}
	return out, nil
}

func (d *Dispatcher) resolve(ctx context.Context, c Carrier) (Credentials, error) {
	if d.resolver == nil {
		return nil, NewConfigError(c, "MISSING_CREDENTIALS", "no credential resolver").
			WithCause(ErrCredentialsNotFound)
	}
	creds, err := d.resolver.Resolve(ctx, c)
	switch {
	case errors.Is(err, ErrCredentialsNotFound):
		return nil, NewConfigError(c, "MISSING_CREDENTIALS", "no credentials configured").WithCause(err)
	case err != nil:
		return nil, NewConfigError(c, "RESOLVER_FAILED", "resolving credentials").WithCause(err)
	case creds == nil:
		return nil, NewConfigError(c, "MISSING_CREDENTIALS", "no credentials configured").
			WithCause(ErrCredentialsNotFound)
	}
	return creds, nil
}

func (d *Dispatcher) observe(log otelzap.LoggerWithCtx, requestID, op string, c Carrier, start time.Time, err error) {
	duration := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
		kind := KindOf(err)
		errType := kind.String()
		switch {
		case errors.Is(err, ErrCarrierNotFound):
			errType = "carrier_not_found"
		case errors.Is(err, ErrUnsupportedOperation):
			errType = "unsupported"
		}
		d.metrics.RecordError(string(c), errType)
		log.Warn("Carrier call failed",
			zap.String("request_id", requestID),
			zap.String("operation", op),
			zap.String("carrier", string(c)),
			zap.String("error_type", errType),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	} else {
		log.Info("Carrier call succeeded",
			zap.String("request_id", requestID),
			zap.String("operation", op),
			zap.String("carrier", string(c)),
			zap.Duration("duration", duration),
		)
	}
	d.metrics.RecordRequest(op, string(c), status, duration.Seconds())
}

type requestIDKey struct{}

// WithRequestID attaches a correlation id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the correlation id carried by ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func ensureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFrom(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

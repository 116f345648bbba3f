package uart

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uartd/internal/domain/policy"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uartd/internal/shared/id"
)

// Policy attribute names.
const (
	AttrUART       = "uart"
	AttrBaudRate   = "baudrate"
	AttrDetectSize = "detect_size"
	AttrAccess     = "access"
)

// Request is a session creation request.
type Request struct {
	Label string
	Args  map[string]string
}

// Resolver creates sessions from labelled requests.
type Resolver struct {
	factory  DriverFactory
	policies atomic.Pointer[policy.Table]
	claims   *Claims
	registry *Registry
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	opts     []Option
}

// NewResolver creates a resolver over a driver factory and a policy table.
func NewResolver(factory DriverFactory, table *policy.Table, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		factory:  factory,
		claims:   NewClaims(),
		registry: NewRegistry(),
		logger:   logger,
	}
	r.policies.Store(table)
	return r
}

// WithMetrics adds metrics tracking to the resolver and its sessions
func (r *Resolver) WithMetrics(metrics *monitoring.Metrics) *Resolver {
	r.metrics = metrics
	return r
}

// WithSessionOptions sets options applied to every new session.
func (r *Resolver) WithSessionOptions(opts ...Option) *Resolver {
	r.opts = append(r.opts, opts...)
	return r
}

// Registry returns the live session registry.
func (r *Resolver) Registry() *Registry { return r.registry }

// Claims returns the device ownership table.
func (r *Resolver) Claims() *Claims { return r.claims }

// Policies returns the current policy table.
func (r *Resolver) Policies() *policy.Table { return r.policies.Load() }

// SetPolicies swaps the policy table. Existing sessions are unaffected.
func (r *Resolver) SetPolicies(table *policy.Table) {
	r.policies.Store(table)
}

// Reload loads a policy file and swaps it in. On error the current table is
// kept.
func (r *Resolver) Reload(path string) error {
	table, err := policy.LoadFile(path)
	if err != nil {
		r.logger.Error("policy reload failed", zap.String("path", path), zap.Error(err))
		return err
	}
	r.SetPolicies(table)
	r.logger.Info("policy reloaded",
		zap.String("path", path),
		zap.Int("policies", table.Len()),
		zap.Bool("default", table.HasDefault()))
	return nil
}

// Resolve derives session parameters and the access mode for label.
func (r *Resolver) Resolve(label string) (Params, Access, error) {
	p, err := r.policies.Load().Lookup(label)
	if err != nil {
		return Params{}, AccessShared, err
	}
	r.logger.Debug("policy matched",
		zap.String("label", label),
		zap.Any("attributes", p.Attributes()))
	return paramsFromPolicy(p)
}

func paramsFromPolicy(p *policy.Policy) (Params, Access, error) {
	var params Params

	v, err := p.Attribute(AttrUART)
	if err != nil {
		return params, AccessShared, ErrMissingAttribute
	}
	if params.Index, err = v.Uint(); err != nil {
		return params, AccessShared, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
	}

	if v, err := p.Attribute(AttrBaudRate); err == nil {
		if params.BaudRate, err = v.Uint(); err != nil {
			return params, AccessShared, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
		}
	}

	if v, err := p.Attribute(AttrDetectSize); err == nil {
		params.DetectSize = v.HasValue("yes")
	}

	access := AccessShared
	if v, err := p.Attribute(AttrAccess); err == nil {
		if access, err = ParseAccess(v.String()); err != nil {
			return params, AccessShared, err
		}
	}

	return params, access, nil
}

// Create resolves the request label, claims the device and constructs a
// registered session. Policy and ownership rejections are *UnavailableError;
// driver failures are returned as is.
func (r *Resolver) Create(ctx context.Context, req Request) (*Session, error) {
	params, access, err := r.Resolve(req.Label)
	if err != nil {
		return nil, r.reject(req.Label, err)
	}

	release, err := r.claims.Acquire(params.Index, access)
	if err != nil {
		return nil, r.reject(req.Label, err)
	}

	opts := make([]Option, 0, len(r.opts)+6)
	opts = append(opts, r.opts...)
	sid := id.NewSessionID()
	opts = append(opts,
		WithID(sid),
		WithLabel(req.Label),
		WithArgs(req.Args),
		WithLogger(r.logger),
		WithMetrics(r.metrics),
		WithCloseHook(release),
		WithCloseHook(func() { r.registry.Remove(sid) }),
	)

	sess, err := NewSession(ctx, r.factory, params, opts...)
	if err != nil {
		release()
		r.metrics.RecordRejection("driver_error")
		r.logger.Error("session construction failed",
			zap.String("label", req.Label),
			zap.Uint("uart", params.Index),
			zap.Error(err))
		return nil, err
	}

	r.registry.Add(sess)
	return sess, nil
}

func (r *Resolver) reject(label string, cause error) error {
	uerr := unavailable(label, cause)
	r.metrics.RecordRejection(uerr.Reason())

	switch {
	case errors.Is(cause, ErrNoPolicy):
		r.logger.Error("invalid session request, no matching policy", zap.String("label", label))
	case errors.Is(cause, ErrMissingAttribute):
		r.logger.Error(`missing "uart" attribute in policy definition`, zap.String("label", label))
	default:
		r.logger.Error("session request refused", zap.String("label", label), zap.Error(cause))
	}
	return uerr
}

// Close closes a registered session.
func (r *Resolver) Close(sid id.SessionID) error {
	return r.registry.Close(sid)
}

// Shutdown closes every live session.
func (r *Resolver) Shutdown() error {
	return r.registry.CloseAll()
}

package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Phase is a state of the reconciliation cycle.
//
//	Idle -> Discovering -> Resolving -> Comparing -> {NoOpSettled | Updating} -> Idle
//
// Discovering and Resolving are independent reads and run concurrently.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDiscovering
	PhaseResolving
	PhaseComparing
	PhaseNoOpSettled
	PhaseUpdating
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDiscovering:
		return "discovering"
	case PhaseResolving:
		return "resolving"
	case PhaseComparing:
		return "comparing"
	case PhaseNoOpSettled:
		return "settled"
	case PhaseUpdating:
		return "updating"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is returned by each cycle and passed into the next.
// LastKnownAddress is advisory and only used for diagnostics;
// every cycle re-derives the truth from discovery and the provider.
type State struct {
	LastKnownAddress netip.Addr
	LastCheckedAt    time.Time
}

// Outcome reports how a cycle ended.
type Outcome struct {
	// Phase is PhaseNoOpSettled when the record already held the address,
	// PhaseIdle after a successful update, and otherwise the phase that failed.
	Phase   Phase
	Address netip.Addr
	Record  Record // the record as found at the provider, before any update
	Updated bool
	Err     error
}

// Reconciler keeps one DNS record pointed at the discovered address.
// It is constructed with New.
type Reconciler struct {
	Resolver
	Provider

	domain     string
	subdomain  string
	recordType string
	interval   time.Duration
	retry      RetryPolicy
	logger     logr.Logger
	now        func() time.Time
}

// Run reconciles immediately and then on every tick of the configured interval
// until ctx is done. Failed cycles are logged and never stop the loop.
// A cycle always finishes, including its retries, before the next one starts.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var state State
	for {
		var out Outcome
		state, out = r.Cycle(ctx, state)
		if out.Err != nil && ctx.Err() == nil {
			r.logger.Error(out.Err, "reconciliation failed", "phase", out.Phase.String(), "kind", KindOf(out.Err).String())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunDDNS runs a single cycle and returns its error.
func (r *Reconciler) RunDDNS(ctx context.Context) error {
	_, out := r.Cycle(ctx, State{})
	return out.Err
}

// Cycle performs one discover, resolve, compare and update pass.
func (r *Reconciler) Cycle(ctx context.Context, prev State) (State, Outcome) {
	next := State{LastKnownAddress: prev.LastKnownAddress, LastCheckedAt: r.now()}
	lastCheckTimestamp.Set(float64(next.LastCheckedAt.Unix()))

	out := r.cycle(ctx)
	switch {
	case out.Err != nil:
		cyclesTotal.WithLabelValues("error").Inc()
	case out.Updated:
		cyclesTotal.WithLabelValues("updated").Inc()
	default:
		cyclesTotal.WithLabelValues("unchanged").Inc()
	}

	if out.Address.IsValid() {
		if prev.LastKnownAddress.IsValid() && prev.LastKnownAddress != out.Address {
			r.logger.Info("discovered address changed", "from", prev.LastKnownAddress.String(), "to", out.Address.String())
		}
		next.LastKnownAddress = out.Address
	}
	return next, out
}

func (r *Reconciler) cycle(ctx context.Context) Outcome {
	var (
		addr            netip.Addr
		candidates      []Record
		discErr, resErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		discErr = r.retry.Do(gctx, r.logger, "discover", func(ctx context.Context) error {
			a, err := r.Resolve(ctx)
			if err != nil {
				return err
			}
			if !a.IsValid() {
				return discoveryError("Resolve", errors.New("resolver returned no address"))
			}
			addr = a.Unmap()
			return nil
		})
		if discErr != nil && KindOf(discErr) == KindUnknown {
			discErr = discoveryError("discover", discErr)
		}
		return discErr
	})
	g.Go(func() error {
		resErr = r.retry.Do(gctx, r.logger, "resolve", func(ctx context.Context) (err error) {
			candidates, err = r.findRecords(ctx)
			return err
		})
		return resErr
	})
	if err := g.Wait(); err != nil {
		// the first failure cancels the other read, so report the one that failed first
		if err == discErr {
			return Outcome{Phase: PhaseDiscovering, Err: err}
		}
		return Outcome{Phase: PhaseResolving, Address: addr, Err: err}
	}

	// only a record of the discovered address family can hold it
	want := recordType(addr)
	if r.recordType != "" && !strings.EqualFold(r.recordType, want) {
		err := discoveryError("discover", fmt.Errorf("discovered %s cannot be written to a %s record", addr, r.recordType))
		return Outcome{Phase: PhaseDiscovering, Address: addr, Err: err}
	}
	rec, err := FindBySubdomain(candidates, r.subdomain, want)
	if err != nil {
		return Outcome{Phase: PhaseResolving, Address: addr, Err: err}
	}

	out := Outcome{Phase: PhaseComparing, Address: addr, Record: rec}
	if sameAddress(addr, rec.Value) {
		r.logger.V(1).Info("address unchanged", "name", r.fqdn(), "address", addr.String(), "record", rec.ID)
		out.Phase = PhaseNoOpSettled
		return out
	}

	out.Phase = PhaseUpdating
	updated := rec
	updated.Value = addr.String()
	r.logger.Info("updating record", "name", r.fqdn(), "record", rec.ID, "type", rec.Type, "from", rec.Value, "to", updated.Value)
	err = r.retry.Do(ctx, r.logger, "update", func(ctx context.Context) error {
		return r.ModifyRecord(ctx, r.domain, updated)
	})
	if err != nil {
		recordUpdatesTotal.WithLabelValues("error").Inc()
		out.Err = err
		return out
	}
	recordUpdatesTotal.WithLabelValues("success").Inc()
	r.logger.Info("record updated", "name", r.fqdn(), "address", updated.Value)
	out.Phase = PhaseIdle
	out.Updated = true
	return out
}

// findRecords returns the address records that may hold the discovered address.
func (r *Reconciler) findRecords(ctx context.Context) ([]Record, error) {
	records, err := r.ListRecords(ctx, r.domain, r.subdomain, r.recordType)
	if err != nil {
		return nil, err
	}
	candidates := addressRecords(records, r.subdomain, r.recordType)
	if len(candidates) == 0 {
		return nil, recordNotFound(r.subdomain, r.recordType, len(records))
	}
	return candidates, nil
}

func (r *Reconciler) fqdn() string {
	return absoluteName(r.subdomain, r.domain)
}

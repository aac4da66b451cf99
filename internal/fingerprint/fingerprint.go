// Package fingerprint selects servers eligible for the slow active
// identity-fingerprinting pass. This runs far less often than rescanning,
// so every eligible server is returned rather than a policy-shaped subset.
package fingerprint

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/Puyodead1/matscan/internal/errors"
	"github.com/Puyodead1/matscan/internal/logging"
	"github.com/Puyodead1/matscan/internal/metrics"
	"github.com/Puyodead1/matscan/internal/scanning"
	"github.com/Puyodead1/matscan/internal/storage"
)

const cursorBatchSize = 2000

// Policy holds the candidate selection windows.
type Policy struct {
	// OnlineWindow requires the server to have been seen this recently;
	// fingerprinting an offline host wastes the slow pass.
	OnlineWindow time.Duration

	// Cooldown is the minimum time between fingerprint passes for one
	// server. Servers never fingerprinted are always eligible.
	Cooldown time.Duration
}

// BuildFilter constructs the eligibility filter for the policy at the given
// instant.
func BuildFilter(p Policy, now time.Time) bson.M {
	return bson.M{
		"lastSeen": bson.M{"$gt": now.Add(-p.OnlineWindow)},
		"$or": bson.A{
			bson.M{"fingerprintTimestamp": bson.M{"$lt": now.Add(-p.Cooldown)}},
			bson.M{"fingerprintTimestamp": bson.M{"$exists": false}},
		},
	}
}

// targetFromDoc turns one stored document into a probe target, defaulting
// the protocol hint when the record carries none.
func targetFromDoc(doc bson.M) (scanning.Target, error) {
	addr, port, err := storage.ParseAddrPort(doc)
	if err != nil {
		return scanning.Target{}, err
	}
	return scanning.Target{
		Addr:         addr,
		Port:         port,
		ProtocolHint: storage.ParseProtocol(doc, scanning.DefaultProtocolHint),
	}, nil
}

// Selector produces fingerprint candidates from persisted state.
type Selector struct {
	store   *storage.Store
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// New creates a fingerprint candidate selector. metrics may be nil.
func New(store *storage.Store, logger *logging.Logger, m *metrics.Metrics) *Selector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Selector{
		store:   store,
		logger:  logger.WithComponent("fingerprint"),
		metrics: m,
	}
}

// Candidates returns every eligible (address, port, protocol hint) target.
// Malformed documents are counted and skipped, never fatal to the pass.
func (s *Selector) Candidates(ctx context.Context, p Policy) ([]scanning.Target, error) {
	filter := BuildFilter(p, time.Now())

	cursor, err := s.store.Servers().Find(ctx, filter,
		options.Find().
			SetProjection(bson.M{"ip": 1, "port": 1, "protocol": 1, "_id": 0}).
			SetBatchSize(cursorBatchSize))
	if err != nil {
		return nil, apperrors.ErrStoreQuery("fingerprint_select", err)
	}
	defer cursor.Close(ctx)

	var targets []scanning.Target
	var skipped int

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			s.logger.WarnSelect("undecodable server document", "error", err)
			skipped++
			continue
		}

		target, err := targetFromDoc(doc)
		if err != nil {
			s.logger.WarnSelect("skipping malformed server document", "error", err)
			skipped++
			continue
		}

		targets = append(targets, target)
	}

	if s.metrics != nil {
		s.metrics.SelectedTargets.WithLabelValues("fingerprint").Add(float64(len(targets)))
		s.metrics.SkippedDocuments.WithLabelValues("fingerprint").Add(float64(skipped))
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed documents during fingerprint selection", "count", skipped)
	}

	if err := cursor.Err(); err != nil {
		return targets, apperrors.ErrStoreQuery("fingerprint_select", err)
	}

	s.logger.Info("fingerprint selection complete", "candidates", len(targets))
	return targets, nil
}

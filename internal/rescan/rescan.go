// Package rescan selects previously seen servers that are due for another
// probe. Eligibility and ordering are expressed as an aggregation over the
// server collection; the scanning engine consumes the resulting ranges.
package rescan

import (
	"context"
	"net/netip"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/Puyodead1/matscan/internal/errors"
	"github.com/Puyodead1/matscan/internal/logging"
	"github.com/Puyodead1/matscan/internal/metrics"
	"github.com/Puyodead1/matscan/internal/scanning"
	"github.com/Puyodead1/matscan/internal/storage"
)

// Sort selects the ordering of rescan candidates.
type Sort string

const (
	// SortOldest returns the most overdue servers first.
	SortOldest Sort = "oldest"
	// SortRandom returns a uniform random sample of the eligible set.
	SortRandom Sort = "random"
)

// randomSampleCeiling bounds $sample when the caller sets no limit.
const randomSampleCeiling = 10_000_000

const cursorBatchSize = 2000

// Policy holds the rescan scheduling parameters. The core receives these
// already parsed; see config.RescanConfig for the file surface.
type Policy struct {
	// Interval is the minimum time between probes of the same server.
	Interval time.Duration

	// MaxStaleness drops servers unseen for longer than this; they are no
	// longer alive enough to bother.
	MaxStaleness time.Duration

	// ActivityWindow, when positive, additionally requires players to
	// have been seen within the window.
	ActivityWindow time.Duration

	// ExtraFilter is merged verbatim into the match stage.
	ExtraFilter map[string]interface{}

	// Limit caps the result size; zero means no cap.
	Limit int

	// Sort defaults to SortOldest.
	Sort Sort
}

// BuildPipeline constructs the aggregation for the policy at the given
// instant. Eligible servers were seen after (now - MaxStaleness) but not
// since (now - Interval).
func BuildPipeline(p Policy, now time.Time) mongo.Pipeline {
	filter := bson.M{
		"lastSeen": bson.M{
			"$gt": now.Add(-p.MaxStaleness),
			"$lt": now.Add(-p.Interval),
		},
	}
	if p.ActivityWindow > 0 {
		filter["lastActive"] = bson.M{"$gt": now.Add(-p.ActivityWindow)}
	}
	for key, value := range p.ExtraFilter {
		filter[key] = value
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: filter}},
	}

	switch p.Sort {
	case SortRandom:
		size := p.Limit
		if size <= 0 {
			size = randomSampleCeiling
		}
		pipeline = append(pipeline, bson.D{{Key: "$sample", Value: bson.M{"size": int64(size)}}})
	default:
		// Sort and truncate while lastSeen is still on the documents;
		// projecting it away first would leave the sort with no key and
		// the limit keeping an arbitrary subset.
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "lastSeen", Value: 1}}}})
		if p.Limit > 0 {
			pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(p.Limit)}})
		}
	}

	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.M{"ip": 1, "port": 1, "_id": 0}}})
	return pipeline
}

// Blocklist answers whether an address+port is currently blocked.
// *processing.Tracker implements it.
type Blocklist interface {
	Blocked(addr netip.Addr, port uint16) bool
}

// PortCleaner deletes the stored records an address block invalidates.
// *storage.Store implements it.
type PortCleaner interface {
	DeleteNonDefaultPorts(ctx context.Context, addr netip.Addr) (int64, error)
}

// candidateFilter applies the per-document checks of one selection pass:
// identity parsing, the blocklist post-filter, and lazy cleanup of records
// left behind by blocks added after they were stored.
type candidateFilter struct {
	blocklist Blocklist
	cleaner   PortCleaner
	logger    *logging.Logger

	// cleaned tracks addresses already handled this pass so a block
	// spanning many stored records triggers one delete, not one per
	// record.
	cleaned map[netip.Addr]struct{}

	ranges  []scanning.ScanRange
	skipped int
}

func newCandidateFilter(blocklist Blocklist, cleaner PortCleaner, logger *logging.Logger) *candidateFilter {
	return &candidateFilter{
		blocklist: blocklist,
		cleaner:   cleaner,
		logger:    logger,
		cleaned:   make(map[netip.Addr]struct{}),
	}
}

// take examines one decoded candidate document. Malformed documents are
// counted and skipped; blocked candidates trigger cleanup instead of
// selection.
func (f *candidateFilter) take(ctx context.Context, doc bson.M) {
	addr, port, err := storage.ParseAddrPort(doc)
	if err != nil {
		f.logger.WarnSelect("skipping malformed server document", "error", err)
		f.skipped++
		return
	}

	if f.blocklist.Blocked(addr, port) {
		if _, done := f.cleaned[addr]; !done {
			f.cleaned[addr] = struct{}{}
			if n, err := f.cleaner.DeleteNonDefaultPorts(ctx, addr); err != nil {
				f.logger.ErrorStore("cleanup of blocklisted address failed", err, "addr", addr.String())
			} else {
				f.logger.Info("deleted stale records for blocklisted address",
					"addr", addr.String(), "deleted", n)
			}
		}
		return
	}

	f.ranges = append(f.ranges, scanning.Single(addr, port))
}

// Selector produces rescan target ranges from persisted state.
type Selector struct {
	store     *storage.Store
	blocklist Blocklist
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// New creates a rescan selector. metrics may be nil.
func New(store *storage.Store, blocklist Blocklist, logger *logging.Logger, m *metrics.Metrics) *Selector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Selector{
		store:     store,
		blocklist: blocklist,
		logger:    logger.WithComponent("rescan"),
		metrics:   m,
	}
}

// Targets runs the selection query and returns the due targets. Malformed
// documents are skipped with a diagnostic; only a failing cursor aborts the
// pass, and even then the targets collected so far are returned.
func (s *Selector) Targets(ctx context.Context, p Policy) ([]scanning.ScanRange, error) {
	pipeline := BuildPipeline(p, time.Now())

	cursor, err := s.store.Servers().Aggregate(ctx, pipeline,
		options.Aggregate().SetBatchSize(cursorBatchSize))
	if err != nil {
		return nil, apperrors.ErrStoreQuery("rescan_select", err)
	}
	defer cursor.Close(ctx)

	filter := newCandidateFilter(s.blocklist, s.store, s.logger)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			s.logger.WarnSelect("undecodable server document", "error", err)
			filter.skipped++
			continue
		}
		filter.take(ctx, doc)
	}

	if s.metrics != nil {
		s.metrics.SelectedTargets.WithLabelValues("rescan").Add(float64(len(filter.ranges)))
		s.metrics.SkippedDocuments.WithLabelValues("rescan").Add(float64(filter.skipped))
	}
	if filter.skipped > 0 {
		s.logger.Warn("skipped malformed documents during rescan selection", "count", filter.skipped)
	}

	if err := cursor.Err(); err != nil {
		return filter.ranges, apperrors.ErrStoreQuery("rescan_select", err)
	}

	s.logger.Info("rescan selection complete", "targets", len(filter.ranges))
	return filter.ranges, nil
}

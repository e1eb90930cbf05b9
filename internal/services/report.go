// Package services – reporting
//
// Aggregate is a pure function over already-fetched complaint rows: running
// it twice on the same input yields the same report. Percentages are
// round(n/d*100) and 0 when d is 0. ReportService fetches the rows for an
// admin or an official and labels location buckets with geographic names.
package services

import (
	"context"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
)

// GroupBy selects the location level of a report.
type GroupBy string

const (
	GroupByWilaya GroupBy = "wilaya"
	GroupByDaira  GroupBy = "daira"
)

// AggregateOptions tunes Aggregate. Zero values pick defaults: wilaya
// grouping, top 10 locations, 6 trailing months, 7-day overdue threshold.
type AggregateOptions struct {
	Now          time.Time
	From         *time.Time
	To           *time.Time
	GroupBy      GroupBy
	TopN         int
	Months       int
	OverdueAfter time.Duration
}

// Bucket is one group of a report.
type Bucket struct {
	Key     string `json:"key"`
	Label   string `json:"label,omitempty"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// Report is the aggregated view of a set of complaints.
type Report struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Viewed     int `json:"viewed"`
	InCabinet  int `json:"in_cabinet"`
	Processing int `json:"processing"`
	Forwarded  int `json:"forwarded"`
	Replied    int `json:"replied"`
	Resolved   int `json:"resolved"`
	OutOfScope int `json:"out_of_scope"`
	Overdue    int `json:"overdue"`
	Urgent     int `json:"urgent"`
	Unassigned int `json:"unassigned"`

	ResponseRate int `json:"response_rate"`
	ForwardRate  int `json:"forward_rate"`

	ByLocation []Bucket `json:"by_location"`
	ByCategory []Bucket `json:"by_category"`
	ByMonth    []Bucket `json:"by_month"`

	GroupBy     GroupBy   `json:"group_by"`
	GeneratedAt time.Time `json:"generated_at"`
}

// percent returns round(n/d*100), or 0 when d is 0.
func percent(n, d int) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(d) * 100))
}

// Aggregate computes a report over rows. Rows outside [From, To) are
// ignored.
func Aggregate(rows []domain.Complaint, opt AggregateOptions) Report {
	if opt.Now.IsZero() {
		opt.Now = time.Now().UTC()
	}
	if opt.GroupBy != GroupByDaira {
		opt.GroupBy = GroupByWilaya
	}
	if opt.TopN <= 0 {
		opt.TopN = 10
	}
	if opt.Months <= 0 {
		opt.Months = 6
	}
	if opt.OverdueAfter <= 0 {
		opt.OverdueAfter = domain.DefaultOverdueAfter
	}

	r := Report{GroupBy: opt.GroupBy, GeneratedAt: opt.Now}
	byLoc := map[string]int{}
	byCat := map[string]int{}

	// Trailing months, oldest first, including the current one.
	cur := time.Date(opt.Now.Year(), opt.Now.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]string, opt.Months)
	monthIdx := make(map[string]int, opt.Months)
	for i := 0; i < opt.Months; i++ {
		k := cur.AddDate(0, -(opt.Months - 1 - i), 0).Format("2006-01")
		months[i] = k
		monthIdx[k] = i
	}
	monthCounts := make([]int, opt.Months)

	for i := range rows {
		c := &rows[i]
		if opt.From != nil && c.CreatedAt.Before(*opt.From) {
			continue
		}
		if opt.To != nil && !c.CreatedAt.Before(*opt.To) {
			continue
		}
		r.Total++
		switch c.Status {
		case domain.StatusPending:
			r.Pending++
		case domain.StatusViewed:
			r.Viewed++
		case domain.StatusInCabinet:
			r.InCabinet++
		case domain.StatusProcessing:
			r.Processing++
		case domain.StatusForwarded:
			r.Forwarded++
		case domain.StatusReplied:
			r.Replied++
		case domain.StatusResolved:
			r.Resolved++
		case domain.StatusOutOfScope:
			r.OutOfScope++
		}
		if c.IsOverdue(opt.Now, opt.OverdueAfter) {
			r.Overdue++
		}
		if c.IsUrgent() {
			r.Urgent++
		}
		if c.OfficialID() == "" {
			r.Unassigned++
		}

		loc := c.WilayaID
		if opt.GroupBy == GroupByDaira {
			loc = ""
			if c.DairaID != nil {
				loc = *c.DairaID
			}
		}
		byLoc[loc]++
		byCat[string(c.Category)]++
		if i, ok := monthIdx[c.CreatedAt.UTC().Format("2006-01")]; ok {
			monthCounts[i]++
		}
	}

	r.ResponseRate = percent(r.Replied+r.Resolved, r.Total)
	r.ForwardRate = percent(r.Forwarded, r.Total)
	r.ByLocation = buckets(byLoc, r.Total, opt.TopN)
	r.ByCategory = buckets(byCat, r.Total, 0)
	r.ByMonth = make([]Bucket, opt.Months)
	for i, k := range months {
		r.ByMonth[i] = Bucket{Key: k, Count: monthCounts[i], Percent: percent(monthCounts[i], r.Total)}
	}
	return r
}

// buckets sorts counts by volume (then key) and keeps the first top; top <= 0
// keeps all.
func buckets(counts map[string]int, total, top int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, Bucket{Key: k, Count: n, Percent: percent(n, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}

// ReportService loads complaint rows and aggregates them.
type ReportService struct {
	DB           *gorm.DB
	Geo          *GeoService
	Complaints   *ComplaintService
	OverdueAfter time.Duration
	Now          func() time.Time
}

// ReportQuery selects the rows of a report.
type ReportQuery struct {
	From     *time.Time
	To       *time.Time
	GroupBy  GroupBy
	TopN     int
	Months   int
	WilayaID string
	Category domain.Category
}

// AdminReport aggregates every complaint matching q. Admin only.
func (s *ReportService) AdminReport(ctx context.Context, sess *auth.Session, q ReportQuery) (*Report, error) {
	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.report(ctx, sess, q, ListFilter{WilayaID: q.WilayaID, Category: q.Category, From: q.From, To: q.To})
}

// OfficialReport aggregates the complaints of the session official.
func (s *ReportService) OfficialReport(ctx context.Context, sess *auth.Session, q ReportQuery) (*Report, error) {
	if !sess.IsOfficial() {
		return nil, ErrForbidden
	}
	if q.GroupBy == "" {
		q.GroupBy = GroupByDaira
	}
	return s.report(ctx, sess, q, ListFilter{Category: q.Category, From: q.From, To: q.To})
}

func (s *ReportService) report(ctx context.Context, sess *auth.Session, q ReportQuery, f ListFilter) (*Report, error) {
	ctx, span := observability.Tracer("services/ReportService").Start(ctx, "Report",
		trace.WithAttributes(attribute.String("role", string(sess.Role)), attribute.String("group_by", string(q.GroupBy))))
	defer span.End()

	rf, err := s.Complaints.ScopeFilter(sess, f)
	if err != nil {
		return nil, err
	}
	rows, err := repo.ListComplaints(ctx, s.DB, rf, 0, 0)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	r := Aggregate(rows, AggregateOptions{
		Now:          clock(s.Now),
		From:         q.From,
		To:           q.To,
		GroupBy:      q.GroupBy,
		TopN:         q.TopN,
		Months:       q.Months,
		OverdueAfter: s.OverdueAfter,
	})
	if s.Geo != nil {
		wn, dn, err := s.Geo.Names(ctx)
		if err != nil {
			return nil, err
		}
		names := wn
		if r.GroupBy == GroupByDaira {
			names = dn
		}
		for i := range r.ByLocation {
			r.ByLocation[i].Label = names[r.ByLocation[i].Key]
		}
	}
	for i := range r.ByCategory {
		r.ByCategory[i].Label = categoryLabel(domain.Category(r.ByCategory[i].Key))
	}
	span.SetAttributes(attribute.Int("report.total", r.Total))
	return &r, nil
}

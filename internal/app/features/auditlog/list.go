// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/memberhub/internal/app/features/errors"
	"github.com/dalemusser/memberhub/internal/app/store/audit"
	"github.com/dalemusser/memberhub/internal/app/system/formutil"
	"github.com/dalemusser/memberhub/internal/app/system/paging"
	"github.com/dalemusser/memberhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"golang.org/x/sync/errgroup"
)

// ServeList handles GET /audit.
//
// Filters: user_id, category (payment|membership|security|admin),
// event_type, since and until (RFC 3339). Paging: start (1-based), limit.
// Events are newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter, bad := parseFilter(r)
	if len(bad) > 0 {
		uierrors.RenderBadRequest(w, "invalid audit filter", bad...)
		return
	}
	page := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		events []audit.Event
		total  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f := filter
		f.Offset = page.Offset()
		f.Limit = page.LimitPlusOne()
		var err error
		events, err = h.Store.Query(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = h.Store.CountByFilter(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		uierrors.RenderError(w, r, h.Log, err)
		return
	}

	if events == nil {
		events = []audit.Event{}
	}
	res := paging.Trim(&events, page)
	uierrors.RenderJSON(w, http.StatusOK, listResponse{
		Events: events,
		Total:  total,
		Range:  paging.ComputeRange(page, len(events)),
		Result: res,
	})
}

// parseFilter returns the names of any malformed parameters.
func parseFilter(r *http.Request) (audit.QueryFilter, []string) {
	var (
		f   audit.QueryFilter
		bad []string
	)

	if v := query.Get(r, "user_id"); v != "" {
		if id, ok := formutil.ObjectID(v); ok {
			f.UserID = &id
		} else {
			bad = append(bad, "user_id")
		}
	}
	if v := query.Get(r, "category"); v != "" {
		if categories[v] {
			f.Category = v
		} else {
			bad = append(bad, "category")
		}
	}
	f.EventType = query.Get(r, "event_type")

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &f.StartTime}, {"until", &f.EndTime}} {
		v := query.Get(r, p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			bad = append(bad, p.name)
			continue
		}
		t = t.UTC()
		*p.dst = &t
	}
	return f, bad
}
